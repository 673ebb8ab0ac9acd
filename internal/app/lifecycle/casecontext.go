package lifecycle

import "time"

// CaseContext — текущее открытое исследование. Живёт не более одного
// экземпляра; поля кроме Accession заполняются лениво по мере появления
// данных и очищаются при следующей смене accession.
type CaseContext struct {
	Accession   string
	Description string

	Signed           bool // явное действие подписи было исполнено
	DiscardRequested bool // диалог отмены наблюдался для этого исследования
	ProcessPressed   bool
	ProtocolFlagged  bool // одноразовая классификация при открытии
	NoteScheduled    bool // critical-note действие уже поставлено в очередь

	BaselineReport string
	HasBaseline    bool
}

// SearchMode — режим суб-автомата поиска заключения.
type SearchMode int

const (
	SearchIdle SearchMode = iota
	SearchFast
	SearchFound
)

func (m SearchMode) String() string {
	switch m {
	case SearchFast:
		return "fast"
	case SearchFound:
		return "found"
	default:
		return "idle"
	}
}

// ImpressionSearch — состояние поиска заключения после действия Process.
type ImpressionSearch struct {
	Mode      SearchMode
	StartedAt time.Time
	// Pinned: поверхность показана быстрым поиском и не прячется до явной
	// подписи/отмены/смены исследования.
	Pinned bool
	// autoShown: поверхность показана автоматически по признаку Drafted и
	// прячется, когда признак пропадает.
	autoShown bool
}
