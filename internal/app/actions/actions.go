package actions

// Kind — вид запрошенного действия.
type Kind int

const (
	KindToggleRecord Kind = iota + 1
	KindSign
	KindDiscard
	KindProcess
	KindInsertMacro
	KindInsertPickList
	KindCreateCriticalNote
)

func (k Kind) String() string {
	switch k {
	case KindToggleRecord:
		return "toggle-record"
	case KindSign:
		return "sign"
	case KindDiscard:
		return "discard"
	case KindProcess:
		return "process"
	case KindInsertMacro:
		return "insert-macro"
	case KindInsertPickList:
		return "insert-pick-list"
	case KindCreateCriticalNote:
		return "create-critical-note"
	default:
		return "unknown"
	}
}

// Источники запросов. Источник влияет на политику исполнения: аппаратная
// кнопка микрофона уже переключила внешнее приложение нативно, и повторный
// синтетический кейстрок не нужен.
const (
	SourceUI     = "ui"
	SourceHotkey = "hotkey"
	SourceDevice = "device"
	SourcePoller = "poller"
)

// Request — неизменяемый запрос действия; создаётся при постановке в очередь
// и потребляется ровно один раз. Payload — имя макроса/пункта пик-листа или
// accession для создания заметки.
type Request struct {
	Kind    Kind
	Source  string
	Payload string
}
