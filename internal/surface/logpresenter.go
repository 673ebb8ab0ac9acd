package surface

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogPresenter — headless-реализация Presenter/EventSink поверх логгера.
// Используется, пока нативные оверлеи не подключены, и в тестах интеграции.
type LogPresenter struct {
	logger *zap.SugaredLogger

	mu         sync.Mutex
	alertShown AlertKind
	impression string
	impShown   bool
}

func NewLogPresenter(logger *zap.SugaredLogger) *LogPresenter {
	return &LogPresenter{logger: logger}
}

func (p *LogPresenter) ShowToast(message string, d time.Duration) {
	p.logger.Infow("Toast", "message", message, "duration", d.String())
}

func (p *LogPresenter) ShowNotice(message string) {
	p.logger.Warnw("Notice", "message", message)
}

func (p *LogPresenter) ShowAlert(kind AlertKind, details string) {
	p.mu.Lock()
	changed := p.alertShown != kind
	p.alertShown = kind
	p.mu.Unlock()
	if changed {
		p.logger.Warnw("Alert shown", "kind", kind.String(), "details", details)
	}
}

func (p *LogPresenter) HideAlert() {
	p.mu.Lock()
	shown := p.alertShown != AlertNone
	p.alertShown = AlertNone
	p.mu.Unlock()
	if shown {
		p.logger.Infow("Alert hidden")
	}
}

func (p *LogPresenter) SetIndicators(f Flags) {
	p.logger.Debugw("Indicators", "template", f.TemplateMismatch, "gender", f.GenderMismatch, "protocol", f.Protocol)
}

func (p *LogPresenter) UpdateImpression(text string) {
	p.mu.Lock()
	p.impression = text
	p.mu.Unlock()
	p.logger.Infow("Impression updated", "len", len(text))
}

func (p *LogPresenter) ShowImpression() {
	p.mu.Lock()
	already := p.impShown
	p.impShown = true
	p.mu.Unlock()
	if !already {
		p.logger.Infow("Impression surface shown")
	}
}

func (p *LogPresenter) HideImpression() {
	p.mu.Lock()
	shown := p.impShown
	p.impShown = false
	p.mu.Unlock()
	if shown {
		p.logger.Infow("Impression surface hidden")
	}
}

func (p *LogPresenter) RaiseOverlays() {}

func (p *LogPresenter) CaseClosed(ev CaseEvent) {
	p.logger.Infow("Case closed", "accession", ev.Accession, "outcome", ev.Outcome.String())
}
