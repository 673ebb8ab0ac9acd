package autopilot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ScribePilot/internal/app/actions"
	"ScribePilot/internal/config"
)

// Runner — долгоживущий цикл, работающий до отмены контекста.
type Runner interface {
	Run(ctx context.Context) error
}

// CaseSource — срез поллера жизненного цикла для внешних потребителей.
type CaseSource interface {
	IsCaseOpen() bool
	CurrentAccession() string
}

// NoteLookup — срез трекера заметок.
type NoteLookup interface {
	HasNoteFor(accession string) bool
}

// Bridge — опциональный приёмник аппаратных кнопок.
type Bridge interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ActionQueue — срез очереди, который фасад отдаёт наружу.
type ActionQueue interface {
	Enqueue(req actions.Request) bool
	Busy() bool
}

// Autopilot — фасад ядра: владеет фоновыми циклами и даёт внешним слоям
// (трей, хоткеи, UI) единую точку постановки действий и опроса состояния.
type Autopilot struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	queue   ActionQueue
	cases   CaseSource
	notes   NoteLookup
	runners []Runner
	bridge  Bridge // может быть nil

	running atomic.Bool
	cancel  context.CancelCauseFunc
	group   *errgroup.Group
}

func New(
	cfg *config.Config,
	queue ActionQueue,
	cases CaseSource,
	notes NoteLookup,
	bridge Bridge,
	logger *zap.SugaredLogger,
	runners ...Runner,
) *Autopilot {
	return &Autopilot{
		cfg:     cfg,
		logger:  logger,
		queue:   queue,
		cases:   cases,
		notes:   notes,
		bridge:  bridge,
		runners: runners,
	}
}

// Start запускает фоновые циклы и немедленно возвращается.
func (a *Autopilot) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("autopilot: already started")
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	a.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	a.group = g
	for _, r := range a.runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	if a.bridge != nil {
		if err := a.bridge.Start(gctx); err != nil {
			cancel(err)
			return err
		}
	}
	a.logger.Infow("Autopilot started", "runners", len(a.runners), "bridge", a.bridge != nil)
	return nil
}

// Stop останавливает циклы и ждёт их завершения, но не дольше
// ActionJoinTimeout: действие в полёте доводится до конца, зависшее —
// бросается с предупреждением.
func (a *Autopilot) Stop(ctx context.Context) error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}
	a.cancel(errors.New("autopilot stopped"))
	if a.bridge != nil {
		_ = a.bridge.Stop(ctx)
	}

	join := a.cfg.ActionJoinTimeout
	if join <= 0 {
		join = 5 * time.Second
	}
	done := make(chan error, 1)
	go func() { done <- a.group.Wait() }()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warnw("Autopilot stopped with error", "error", err)
			return err
		}
		a.logger.Infow("Autopilot stopped")
		return nil
	case <-time.After(join):
		a.logger.Warnw("Autopilot join timed out, abandoning in-flight work", "timeout", join.String())
		return errors.New("autopilot: join timeout")
	}
}

// Enqueue ставит действие в сериализованную очередь.
func (a *Autopilot) Enqueue(req actions.Request) bool { return a.queue.Enqueue(req) }

// Busy сообщает, исполняется ли действие прямо сейчас.
func (a *Autopilot) Busy() bool { return a.queue.Busy() }

// IsCaseOpen сообщает, открыто ли исследование.
func (a *Autopilot) IsCaseOpen() bool { return a.cases.IsCaseOpen() }

// CurrentAccession возвращает accession открытого исследования ("" — закрыто).
func (a *Autopilot) CurrentAccession() string { return a.cases.CurrentAccession() }

// HasCriticalNoteFor сообщает, создана ли заметка для accession.
func (a *Autopilot) HasCriticalNoteFor(accession string) bool { return a.notes.HasNoteFor(accession) }
