package lifecycle

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ScribePilot/internal/app/actions"
	"ScribePilot/internal/app/alerts"
	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
	"ScribePilot/internal/surface"
)

// ActionSink — срез очереди действий, нужный поллеру: проверка занятости и
// постановка critical-note действия.
type ActionSink interface {
	Busy() bool
	Enqueue(req actions.Request) bool
}

// Classifier — одноразовая классификация исследования при открытии.
type Classifier interface {
	Classify(snap oracle.Snapshot) bool
}

// NoteLedger — учёт критических заметок: сброс при смене исследования и
// проверка факта создания, чтобы повторить действие после сбоя.
type NoteLedger interface {
	Reset()
	HasNoteFor(accession string) bool
}

// Poller — периодическая сверка жизненного цикла исследования: детекция смены
// accession, отложенный снапшот отчёта, вычисление алертов и суб-автомат
// поиска заключения. Цикл целиком пропускается, пока очередь исполняет
// действие: скрейп не должен гоняться с инъекцией кейстроков.
type Poller struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	probes    oracle.Probes
	queue     ActionSink
	presenter surface.Presenter
	events    surface.EventSink
	classify  Classifier
	notes     NoteLedger

	kick chan struct{}
	now  func() time.Time

	mu         sync.Mutex
	cur        CaseContext
	search     ImpressionSearch
	alertShown bool
}

func NewPoller(
	cfg *config.Config,
	probes oracle.Probes,
	queue ActionSink,
	presenter surface.Presenter,
	events surface.EventSink,
	classify Classifier,
	notes NoteLedger,
	logger *zap.SugaredLogger,
) *Poller {
	return &Poller{
		cfg:       cfg,
		logger:    logger,
		probes:    probes,
		queue:     queue,
		presenter: presenter,
		events:    events,
		classify:  classify,
		notes:     notes,
		kick:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Run — цикл опроса до отмены контекста. Интервал перевзводится каждый
// проход: быстрый во время поиска заключения, медленный после находки.
// Канал kick даёт ранний тик сразу после действия Process.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Infow("Lifecycle poller started",
		"base", p.baseInterval().String(),
		"fast", p.cfg.PollFastInterval.String(),
	)
	for {
		t := time.NewTimer(p.currentInterval())
		select {
		case <-ctx.Done():
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			p.logger.Infow("Lifecycle poller stopped", "reason", ctx.Err())
			return context.Cause(ctx)
		case <-t.C:
		case <-p.kick:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		p.cycle(ctx)
	}
}

func (p *Poller) baseInterval() time.Duration {
	base := time.Duration(p.cfg.PollIntervalSeconds) * time.Second
	if base <= 0 {
		base = 4 * time.Second
	}
	return base
}

func (p *Poller) currentInterval() time.Duration {
	p.mu.Lock()
	mode := p.search.Mode
	p.mu.Unlock()
	switch mode {
	case SearchFast:
		if p.cfg.PollFastInterval > 0 {
			return p.cfg.PollFastInterval
		}
	case SearchFound:
		if slow := time.Duration(p.cfg.PollSlowIntervalSeconds) * time.Second; slow > 0 {
			return slow
		}
	}
	return p.baseInterval()
}

// cycle — один цикл сверки. Любая ошибка зонда прерывает цикл без мутации
// состояния; следующий цикл начнёт с чистого листа.
func (p *Poller) cycle(ctx context.Context) {
	if p.queue.Busy() {
		// Цикл именно пропускается, а не откладывается
		p.logger.Debugw("Poll cycle skipped: action in flight")
		return
	}

	snap, err := p.probes.CaseSnapshot(ctx)
	if err != nil {
		p.logger.Debugw("Poll cycle abandoned: snapshot probe failed", "error", err)
		return
	}
	discardVisible, err := p.probes.DiscardDialogVisible(ctx)
	if err != nil {
		p.logger.Debugw("Poll cycle abandoned: discard probe failed", "error", err)
		return
	}
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if discardVisible && p.cur.Accession != "" {
		p.cur.DiscardRequested = true
	}

	if snap.Accession != p.cur.Accession {
		p.switchCase(snap)
	}
	if p.cur.Accession == "" {
		return
	}

	p.captureBaseline(snap)

	flags := alerts.Evaluate(snap, alerts.Params{
		MaleTerms:       p.cfg.MaleTerms,
		FemaleTerms:     p.cfg.FemaleTerms,
		ProtocolFlagged: p.cur.ProtocolFlagged,
	})
	p.presentAlerts(flags)

	// Ставим действие, пока трекер не подтвердил заметку: упавшее действие
	// так повторяется на следующем цикле. Сам трекер гарантирует не-более-одного,
	// поэтому лишняя постановка после успеха — no-op.
	if p.cur.ProtocolFlagged && !p.notes.HasNoteFor(p.cur.Accession) {
		ok := p.queue.Enqueue(actions.Request{
			Kind:    actions.KindCreateCriticalNote,
			Source:  actions.SourcePoller,
			Payload: p.cur.Accession,
		})
		if ok {
			if p.cur.NoteScheduled {
				p.logger.Warnw("Critical note still missing, retrying", "accession", p.cur.Accession)
			}
			p.cur.NoteScheduled = true
		}
	}

	p.stepImpression(snap, now)
}

// switchCase закрывает предыдущее исследование (ровно одно терминальное
// уведомление) и заводит новый контекст. Вызывается под mu.
func (p *Poller) switchCase(snap oracle.Snapshot) {
	prev := p.cur
	if prev.Accession != "" {
		outcome := surface.OutcomeSigned
		if !prev.Signed && prev.DiscardRequested {
			outcome = surface.OutcomeClosedUnsigned
		}
		// Ни подписи, ни диалога отмены не наблюдалось — считаем, что
		// пользователь подписал через UI внешнего приложения. Эвристика,
		// сознательно не усиливаем.
		p.events.CaseClosed(surface.CaseEvent{Accession: prev.Accession, Outcome: outcome})
		p.logger.Infow("Case closed", "accession", prev.Accession, "outcome", outcome.String())
	}

	if p.alertShown {
		p.presenter.HideAlert()
		p.alertShown = false
	}
	if p.search.Pinned || p.search.autoShown {
		p.presenter.HideImpression()
	}
	p.search = ImpressionSearch{}
	p.notes.Reset()

	p.cur = CaseContext{Accession: snap.Accession, Description: snap.Description}
	if snap.Accession != "" {
		if p.classify != nil {
			p.cur.ProtocolFlagged = p.classify.Classify(snap)
		}
		p.logger.Infow("Case opened", "accession", snap.Accession, "description", snap.Description, "protocol", p.cur.ProtocolFlagged)
	}
}

// captureBaseline снимает базовый снапшот отчёта — отложенно, только когда в
// тексте появился маркер полностью сгенерированного отчёта: внешнее
// приложение наполняет отчёт постепенно сразу после открытия исследования.
func (p *Poller) captureBaseline(snap oracle.Snapshot) {
	if !p.cfg.TrackReportChanges || p.cur.HasBaseline || snap.ReportText == "" {
		return
	}
	if !containsFold(snap.ReportText, p.cfg.ReportCompleteMarker) {
		return
	}
	p.cur.BaselineReport = snap.ReportText
	p.cur.HasBaseline = true
	p.logger.Infow("Report baseline captured", "accession", p.cur.Accession, "len", len(snap.ReportText))
}

func (p *Poller) presentAlerts(flags surface.Flags) {
	if p.cfg.AlertMode == "always" {
		// Без арбитража: все условия рисуются одновременно как индикаторы
		p.presenter.SetIndicators(flags)
		return
	}
	kind, details := alerts.Arbitrate(flags)
	if kind == surface.AlertNone {
		if p.alertShown {
			p.presenter.HideAlert()
			p.alertShown = false
		}
		return
	}
	p.presenter.ShowAlert(kind, details)
	p.alertShown = true
}

// stepImpression — суб-автомат поиска заключения. Вызывается под mu.
func (p *Poller) stepImpression(snap oracle.Snapshot, now time.Time) {
	imp := extractImpression(snap.ReportText, p.cfg.ReportCompleteMarker)
	switch p.search.Mode {
	case SearchFast:
		if imp == "" {
			return
		}
		// Текст найден, но должен устаканиться: приложение дописывает
		// заключение ещё какое-то время после первого непустого чтения
		if now.Sub(p.search.StartedAt) < p.cfg.ImpressionSettle {
			return
		}
		p.search.Mode = SearchFound
		p.search.Pinned = true
		p.presenter.UpdateImpression(imp)
		p.presenter.ShowImpression()
		p.logger.Infow("Impression found", "accession", p.cur.Accession, "elapsed", now.Sub(p.search.StartedAt).String())
	case SearchFound:
		// Закреплено до явной подписи/отмены/смены исследования
	default: // SearchIdle
		if snap.Drafted && imp != "" {
			if !p.search.autoShown {
				// Идемпотентный показ: существующий контент не сбрасываем
				p.presenter.ShowImpression()
				p.search.autoShown = true
			}
		} else if !snap.Drafted && p.search.autoShown {
			p.presenter.HideImpression()
			p.search.autoShown = false
		}
	}
}

// MarkSigned вызывается исполнителем после успешного действия подписи.
func (p *Poller) MarkSigned() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.Signed = true
	p.releaseImpression()
}

// MarkDiscardRequested вызывается исполнителем после действия отмены.
func (p *Poller) MarkDiscardRequested() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.DiscardRequested = true
	p.releaseImpression()
}

// MarkProcessPressed запускает быстрый поиск заключения и ранний тик.
func (p *Poller) MarkProcessPressed() {
	p.mu.Lock()
	p.cur.ProcessPressed = true
	if p.cfg.TrackImpression {
		p.search = ImpressionSearch{Mode: SearchFast, StartedAt: p.now()}
	}
	p.mu.Unlock()
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// releaseImpression прячет поверхность заключения и сбрасывает автомат.
// Вызывается под mu.
func (p *Poller) releaseImpression() {
	if p.search.Pinned || p.search.autoShown {
		p.presenter.HideImpression()
	}
	p.search = ImpressionSearch{}
}

// IsCaseOpen сообщает, открыто ли сейчас исследование.
func (p *Poller) IsCaseOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.Accession != ""
}

// CurrentAccession возвращает accession текущего исследования ("" — закрыто).
func (p *Poller) CurrentAccession() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur.Accession
}

// Case возвращает копию контекста текущего исследования.
func (p *Poller) Case() CaseContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// extractImpression возвращает текст после маркера секции заключения.
func extractImpression(report, marker string) string {
	if report == "" || marker == "" {
		return ""
	}
	idx := strings.Index(strings.ToUpper(report), strings.ToUpper(marker))
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(report[idx+len(marker):])
}

// containsFold — регистронезависимый поиск подстроки.
func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}
