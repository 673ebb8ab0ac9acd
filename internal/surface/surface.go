package surface

import "time"

// AlertKind — вид алерта, выбранный арбитражем для показа.
type AlertKind int

const (
	AlertNone AlertKind = iota
	AlertGenderMismatch
	AlertTemplateMismatch
	AlertProtocol
)

func (k AlertKind) String() string {
	switch k {
	case AlertGenderMismatch:
		return "gender-mismatch"
	case AlertTemplateMismatch:
		return "template-mismatch"
	case AlertProtocol:
		return "protocol"
	default:
		return "none"
	}
}

// Flags — независимые условия, вычисленные в одном цикле опроса.
// Не персистятся между циклами.
type Flags struct {
	TemplateMismatch bool
	GenderMismatch   bool
	Protocol         bool
}

// Any сообщает, активно ли хотя бы одно условие.
func (f Flags) Any() bool { return f.TemplateMismatch || f.GenderMismatch || f.Protocol }

// Presenter — отрисовка плавающих окон/попапов. Сама отрисовка вне ядра;
// ядру нужны только эти операции.
type Presenter interface {
	ShowToast(message string, d time.Duration)
	// ShowNotice — блокирующее уведомление о некорректной ссылке конфигурации.
	ShowNotice(message string)
	ShowAlert(kind AlertKind, details string)
	HideAlert()
	// SetIndicators отображает все условия одновременно (режим always).
	SetIndicators(f Flags)
	// UpdateImpression заменяет текст на поверхности заключения.
	UpdateImpression(text string)
	ShowImpression()
	HideImpression()
	// RaiseOverlays повторно поднимает все оверлеи поверх внешних окон.
	RaiseOverlays()
}

// CaseOutcome — терминальный исход закрытого исследования.
type CaseOutcome int

const (
	OutcomeSigned CaseOutcome = iota + 1
	OutcomeClosedUnsigned
)

func (o CaseOutcome) String() string {
	if o == OutcomeClosedUnsigned {
		return "closed-unsigned"
	}
	return "signed"
}

// CaseEvent — уведомление о завершении исследования; испускается ровно один раз.
type CaseEvent struct {
	Accession string
	Outcome   CaseOutcome
}

// EventSink — потребитель терминальных уведомлений.
type EventSink interface {
	CaseClosed(ev CaseEvent)
}
