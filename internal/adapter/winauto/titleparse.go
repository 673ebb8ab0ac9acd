package winauto

import "strings"

// Заголовки окон — единственный дешёвый канал данных о текущем исследовании:
// отчётное приложение и ворклист дублируют ключевые поля прямо в title bar.
// Форматы:
//
//	отчётное:  "<приложение> - <accession> - <шаблон>[ - Draft]"
//	ворклист:  "<приложение> - <accession> - <описание> - <пол>"
//
// Сегменты разделены " - "; лишние сегменты в хвосте игнорируются.

type reportingTitle struct {
	Accession    string
	TemplateName string
	Drafted      bool
}

type worklistTitle struct {
	Accession   string
	Description string
	Gender      string
}

func parseReportingTitle(title string) reportingTitle {
	parts := splitTitle(title)
	var out reportingTitle
	if len(parts) > 0 && strings.EqualFold(parts[len(parts)-1], "Draft") {
		out.Drafted = true
		parts = parts[:len(parts)-1]
	}
	if len(parts) >= 2 {
		out.Accession = parts[1]
	}
	if len(parts) >= 3 {
		out.TemplateName = parts[2]
	}
	return out
}

func parseWorklistTitle(title string) worklistTitle {
	parts := splitTitle(title)
	var out worklistTitle
	if len(parts) >= 2 {
		out.Accession = parts[1]
	}
	if len(parts) >= 3 {
		out.Description = parts[2]
	}
	if len(parts) >= 4 {
		out.Gender = parts[3]
	}
	return out
}

func splitTitle(title string) []string {
	raw := strings.Split(title, " - ")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// titleContainsFold — регистронезависимое вхождение подстроки в заголовок.
func titleContainsFold(title, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(substr))
}
