package dictation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
)

// RecordingProbe — зонд «активна ли запись». Может вернуть ошибку (неизвестно).
type RecordingProbe interface {
	RecordingActive(ctx context.Context) (bool, error)
}

// KeystrokeEmitter шлёт кейстрок переключения записи во внешнее приложение.
type KeystrokeEmitter interface {
	EmitKeystroke(ctx context.Context, k oracle.Keystroke) error
}

// CuePlayer проигрывает звуковое подтверждение.
type CuePlayer interface {
	PlayCue(freqHz int, d time.Duration, volumeDB float64) error
}

// State — снимок внутреннего состояния сверки (для дебага и тестов).
type State struct {
	Believed             bool
	ConsecutiveFalseOffs int
	LastManualToggle     time.Time
}

// Reconciler держит булеву веру «запись идёт» в синхроне с оракулом.
// Оракул надёжен для «on» (почти мгновенно) и шумен для «off» (кратковременные
// провалы при буферизации аудио), отсюда асимметричный дебаунс: одно true
// включает веру сразу, false принимается только после N подряд чтений.
type Reconciler struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	probe  RecordingProbe
	emit   KeystrokeEmitter
	cue    CuePlayer

	mu         sync.Mutex
	believed   bool
	falseReads int
	lastManual time.Time

	now   func() time.Time
	after func(d time.Duration, f func())
}

func NewReconciler(cfg *config.Config, probe RecordingProbe, emit KeystrokeEmitter, cue CuePlayer, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		cfg:    cfg,
		logger: logger,
		probe:  probe,
		emit:   emit,
		cue:    cue,
		now:    time.Now,
		after:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// Believed возвращает текущую веру без обращения к оракулу.
func (r *Reconciler) Believed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.believed
}

// Snapshot возвращает копию внутреннего состояния.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{Believed: r.believed, ConsecutiveFalseOffs: r.falseReads, LastManualToggle: r.lastManual}
}

// Run — фоновая сверка на быстром тикере до отмены контекста.
func (r *Reconciler) Run(ctx context.Context) error {
	interval := r.cfg.DictationSyncInterval
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	r.logger.Infow("Dictation reconciler started", "interval", interval.String(), "offThreshold", r.cfg.DictationOffThreshold)
	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("Dictation reconciler stopped", "reason", ctx.Err())
			return context.Cause(ctx)
		case <-t.C:
			r.SyncOnce(ctx)
		}
	}
}

// SyncOnce — один шаг фоновой сверки. Ошибка зонда = «неизвестно»: счётчик не
// трогаем, шаг пропускаем.
func (r *Reconciler) SyncOnce(ctx context.Context) {
	active, err := r.probe.RecordingActive(ctx)
	if err != nil {
		r.logger.Debugw("Recording probe unavailable", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Локаут после ручного переключения: свежий оптимистичный прогноз не
	// должен быть немедленно перетёрт устаревшим чтением оракула.
	if !r.lastManual.IsZero() && r.now().Sub(r.lastManual) < r.cfg.ToggleLockout {
		return
	}

	if active {
		r.falseReads = 0
		if !r.believed {
			r.logger.Infow("Recording detected", "source", "oracle")
		}
		r.believed = true
		return
	}

	r.falseReads++
	if r.believed && r.falseReads >= max(1, r.cfg.DictationOffThreshold) {
		r.believed = false
		r.logger.Infow("Recording stopped", "source", "oracle", "falseReads", r.falseReads)
	}
}

// Toggle — ручное переключение записи.
// Если desired задан и оракул уже согласен — кейстрок не шлём (идемпотентный
// no-op), но звуковое подтверждение всё равно даём. Иначе шлём кейстрок
// (кроме suppressKeystroke: аппаратная кнопка уже переключила приложение) и
// ставим веру оптимистично: в desired, либо в отрицание свежего чтения
// оракула — не устаревшей веры, чтобы не копить дрейф.
func (r *Reconciler) Toggle(ctx context.Context, desired *bool, suppressKeystroke bool) error {
	cur, curErr := r.probe.RecordingActive(ctx)

	if desired != nil && curErr == nil && cur == *desired {
		r.commit(*desired)
		r.scheduleCue(*desired)
		return nil
	}

	if !suppressKeystroke {
		if err := r.emit.EmitKeystroke(ctx, oracle.KeyToggleRecord); err != nil {
			return err
		}
	}

	var newBelief bool
	switch {
	case desired != nil:
		newBelief = *desired
	case curErr == nil:
		newBelief = !cur
	default:
		// Оракул недоступен — последний вариант, отрицаем собственную веру
		newBelief = !r.Believed()
	}
	r.commit(newBelief)
	r.scheduleCue(newBelief)
	return nil
}

// EnsureStopped гасит запись, если по нашей вере она идёт.
func (r *Reconciler) EnsureStopped(ctx context.Context) error {
	if !r.Believed() {
		return nil
	}
	off := false
	return r.Toggle(ctx, &off, false)
}

func (r *Reconciler) commit(believed bool) {
	r.mu.Lock()
	r.believed = believed
	r.falseReads = 0
	r.lastManual = r.now()
	r.mu.Unlock()
}

// scheduleCue: сигнал старта задерживается, чтобы замаскировать латентность
// запуска записи во внешнем приложении; сигнал остановки — немедленно.
func (r *Reconciler) scheduleCue(starting bool) {
	if r.cue == nil {
		return
	}
	freq := r.cfg.CueStopFreq
	delay := time.Duration(0)
	if starting {
		freq = r.cfg.CueStartFreq
		delay = r.cfg.CueStartDelay
	}
	r.after(delay, func() {
		if err := r.cue.PlayCue(freq, r.cfg.CueDuration, r.cfg.CueVolumeDB); err != nil {
			r.logger.Debugw("Cue playback failed", "freq", freq, "error", err)
		}
	})
}
