package oracle

import "context"

// Snapshot — срез видимого состояния открытого исследования, собранный скрейпом.
// Поля не атомарны друг относительно друга и могут отставать от реального
// состояния на один интервал опроса. Пустая строка означает «не видно/неизвестно».
type Snapshot struct {
	Accession     string // Уникальный идентификатор открытого исследования
	ReportText    string // Полный видимый текст отчёта
	Drafted       bool   // Черновик сформирован (признак Draft в отчётном приложении)
	TemplateName  string // Имя загруженного шаблона отчёта
	Description   string // Описание исследования из ворклиста
	PatientGender string // Пол пациента, как его показывает ворклист
}

// Keystroke — логическое действие, транслируемое адаптером в реальные клавиши
// внешнего приложения.
type Keystroke int

const (
	KeyToggleRecord Keystroke = iota + 1
	KeySign
	KeyDiscard
	KeyProcess
	KeyPaste
	KeyCreateNote
)

func (k Keystroke) String() string {
	switch k {
	case KeyToggleRecord:
		return "toggle-record"
	case KeySign:
		return "sign"
	case KeyDiscard:
		return "discard"
	case KeyProcess:
		return "process"
	case KeyPaste:
		return "paste"
	case KeyCreateNote:
		return "create-note"
	default:
		return "unknown"
	}
}

// Probes — read-only зонды внешнего состояния. Каждый зонд может вернуть
// ошибку («неизвестно»); вызывающий обязан трактовать её как отсутствие данных,
// а не как фатальный сбой.
type Probes interface {
	// RecordingActive сообщает, активна ли запись диктовки прямо сейчас.
	RecordingActive(ctx context.Context) (bool, error)
	// CaseSnapshot возвращает срез текущего исследования.
	CaseSnapshot(ctx context.Context) (Snapshot, error)
	// DiscardDialogVisible сообщает, виден ли диалог отмены отчёта.
	DiscardDialogVisible(ctx context.Context) (bool, error)
}

// Automation — побочные эффекты над внешними приложениями. Все методы
// выполняются только из сериализованной очереди действий (плюс ручной toggle
// диктовки), поэтому сами по себе взаимного исключения не обеспечивают.
type Automation interface {
	EmitKeystroke(ctx context.Context, k Keystroke) error
	ActivateReportingApp(ctx context.Context) error
	ActivateWorklist(ctx context.Context) error
	// SaveFocus запоминает окно, активное в момент вызова.
	SaveFocus()
	// RestoreFocus возвращает фокус сохранённому окну.
	RestoreFocus(ctx context.Context) error
	SetClipboardText(ctx context.Context, text string) error
	GetClipboardText(ctx context.Context) (string, error)
}
