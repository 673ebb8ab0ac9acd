package alerts

import (
	"fmt"
	"strings"

	"ScribePilot/internal/oracle"
	"ScribePilot/internal/surface"
)

// Params — входные данные одного цикла вычисления алертов.
type Params struct {
	MaleTerms       []string
	FemaleTerms     []string
	ProtocolFlagged bool // одноразовая классификация при открытии исследования
}

// Evaluate вычисляет независимые условия по данным одного скрейпа.
func Evaluate(snap oracle.Snapshot, prm Params) surface.Flags {
	return surface.Flags{
		TemplateMismatch: templateMismatch(snap),
		GenderMismatch:   genderMismatch(snap, prm.MaleTerms, prm.FemaleTerms),
		Protocol:         prm.ProtocolFlagged,
	}
}

// Arbitrate выбирает единственное условие для показа по фиксированному
// приоритету: демографическое несоответствие > несоответствие шаблона > протокол.
func Arbitrate(f surface.Flags) (surface.AlertKind, string) {
	switch {
	case f.GenderMismatch:
		return surface.AlertGenderMismatch, "report text conflicts with patient gender"
	case f.TemplateMismatch:
		return surface.AlertTemplateMismatch, "loaded template does not match study description"
	case f.Protocol:
		return surface.AlertProtocol, "study is flagged by protocol classification"
	default:
		return surface.AlertNone, ""
	}
}

// templateMismatch: первый токен описания исследования (обычно модальность —
// CT, MR, US) должен встречаться в имени загруженного шаблона.
func templateMismatch(snap oracle.Snapshot) bool {
	if snap.TemplateName == "" || snap.Description == "" {
		return false
	}
	fields := strings.Fields(snap.Description)
	if len(fields) == 0 {
		return false
	}
	modality := strings.ToLower(fields[0])
	return !strings.Contains(strings.ToLower(snap.TemplateName), modality)
}

// genderMismatch: в отчёте встречается термин, анатомически несовместимый с
// полом пациента из ворклиста. Неизвестный пол — не несоответствие.
func genderMismatch(snap oracle.Snapshot, maleTerms, femaleTerms []string) bool {
	g := strings.ToLower(strings.TrimSpace(snap.PatientGender))
	if g == "" || snap.ReportText == "" {
		return false
	}
	var conflicting []string
	switch g[0] {
	case 'f':
		conflicting = maleTerms
	case 'm':
		conflicting = femaleTerms
	default:
		return false
	}
	report := strings.ToLower(snap.ReportText)
	for _, term := range conflicting {
		if term == "" {
			continue
		}
		if strings.Contains(report, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// KeywordClassifier — одноразовый классификатор протокольных исследований по
// ключевым словам описания. Запускается один раз при открытии исследования.
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	return &KeywordClassifier{keywords: keywords}
}

func (c *KeywordClassifier) Classify(snap oracle.Snapshot) bool {
	hay := strings.ToLower(snap.Description + " " + snap.ReportText)
	for _, kw := range c.keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(hay, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Details форматирует строку для индикаторов режима always.
func Details(f surface.Flags) string {
	return fmt.Sprintf("template=%v gender=%v protocol=%v", f.TemplateMismatch, f.GenderMismatch, f.Protocol)
}
