package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ScribePilot/internal/adapter/devicebridge"
	"ScribePilot/internal/adapter/winauto"
	"ScribePilot/internal/app/actions"
	"ScribePilot/internal/app/alerts"
	"ScribePilot/internal/app/diagshot"
	"ScribePilot/internal/app/dictation"
	"ScribePilot/internal/app/lifecycle"
	"ScribePilot/internal/app/notes"
	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
	"ScribePilot/internal/service/autopilot"
	"ScribePilot/internal/service/notify"
	"ScribePilot/internal/surface"
)

func main() {
	cfg := config.NewConfig()
	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	sugar.Infow(
		"Starting app",
		"DebugMode", cfg.DebugMode,
		"PollIntervalSeconds", cfg.PollIntervalSeconds,
		"AlertMode", cfg.AlertMode,
	)

	driver, err := winauto.New(cfg, sugar)
	if err != nil {
		sugar.Errorw("Window automation unavailable", "error", err)
		os.Exit(1)
	}

	presenter := surface.NewLogPresenter(sugar)
	cues := notify.NewTonePlayer(sugar)
	shooter := diagshot.New(cfg, sugar)

	// Создание critical-note: активировать ворклист и отдать горячую клавишу;
	// ворклист сам открывает форму заметки для выделенного исследования.
	tracker := notes.NewTracker(notes.CreatorFunc(func(ctx context.Context, accession string) error {
		if err := driver.ActivateWorklist(ctx); err != nil {
			return err
		}
		return driver.EmitKeystroke(ctx, oracle.KeyCreateNote)
	}), sugar)

	reconciler := dictation.NewReconciler(cfg, driver, driver, cues, sugar)

	// Очередь и поллер ссылаются друг на друга (busy-флаг / постановка
	// действий), поэтому исполнитель собирается в два шага.
	var poller *lifecycle.Poller
	executor := actions.NewExecutor(cfg, driver, reconciler, &lazyRecorder{p: &poller}, tracker, presenter, shooter, cues, sugar)
	queue := actions.NewQueue(executor, presenter, cfg.WorkerIdleWake, time.Duration(cfg.ToastDurationMS)*time.Millisecond, sugar)

	classifier := alerts.NewKeywordClassifier(cfg.ProtocolKeywords)
	poller = lifecycle.NewPoller(cfg, driver, queue, presenter, presenter, classifier, tracker, sugar)

	var bridge autopilot.Bridge
	if cfg.DeviceBridge.Enabled {
		bridge = devicebridge.NewBridge(cfg.DeviceBridge, queue, sugar)
	}

	pilot := autopilot.New(cfg, queue, poller, tracker, bridge, sugar, queue, poller, reconciler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pilot.Start(ctx); err != nil {
		sugar.Errorw("Failed to start autopilot", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	sugar.Infow("Shutdown signal received")
	if err := pilot.Stop(context.WithoutCancel(ctx)); err != nil {
		sugar.Warnw("Shutdown finished with error", "error", err)
	}
}

// lazyRecorder разрывает цикл инициализации исполнитель→поллер: к моменту
// первого действия поллер уже собран.
type lazyRecorder struct {
	p **lifecycle.Poller
}

func (l *lazyRecorder) MarkSigned()              { (*l.p).MarkSigned() }
func (l *lazyRecorder) MarkDiscardRequested()    { (*l.p).MarkDiscardRequested() }
func (l *lazyRecorder) MarkProcessPressed()      { (*l.p).MarkProcessPressed() }
func (l *lazyRecorder) CurrentAccession() string { return (*l.p).CurrentAccession() }
