package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ScribePilot/internal/config"
	"ScribePilot/internal/oracle"
	"ScribePilot/internal/surface"
)

// Dictation — срез сверщика диктовки, нужный действиям.
type Dictation interface {
	Toggle(ctx context.Context, desired *bool, suppressKeystroke bool) error
	// EnsureStopped останавливает запись перед действиями, которые меняют
	// состояние отчёта (sign/discard).
	EnsureStopped(ctx context.Context) error
}

// CaseRecorder — обратная связь в поллер жизненного цикла: какие действия
// были исполнены для текущего исследования.
type CaseRecorder interface {
	MarkSigned()
	MarkDiscardRequested()
	MarkProcessPressed()
	CurrentAccession() string
}

// NoteTracker создаёт follow-up заметку не более одного раза на accession.
type NoteTracker interface {
	EnsureNoteForAccession(ctx context.Context, accession string) error
}

// Diagnostics снимает диагностический скриншот при ошибке действия.
type Diagnostics interface {
	CaptureFailure(reason string)
}

// CuePlayer проигрывает предупреждающий сигнал при ошибке действия.
type CuePlayer interface {
	PlayCue(freqHz int, d time.Duration, volumeDB float64) error
}

// DefaultExecutor исполняет действия над внешними приложениями.
type DefaultExecutor struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	auto      oracle.Automation
	dict      Dictation
	rec       CaseRecorder
	notes     NoteTracker
	presenter surface.Presenter
	diag      Diagnostics // может быть nil
	cue       CuePlayer   // может быть nil

	macros   map[string]string
	pickList map[string]string

	// Эксклюзив буфера обмена: макрос и пик-лист — разные пути вставки,
	// обоим нужен буфер целиком.
	pasteMu sync.Mutex

	sleep func(time.Duration)
}

func NewExecutor(
	cfg *config.Config,
	auto oracle.Automation,
	dict Dictation,
	rec CaseRecorder,
	notes NoteTracker,
	presenter surface.Presenter,
	diag Diagnostics,
	cue CuePlayer,
	logger *zap.SugaredLogger,
) *DefaultExecutor {
	return &DefaultExecutor{
		cfg:       cfg,
		logger:    logger,
		auto:      auto,
		dict:      dict,
		rec:       rec,
		notes:     notes,
		presenter: presenter,
		diag:      diag,
		cue:       cue,
		macros:    config.ParsePairs(cfg.Macros),
		pickList:  config.ParsePairs(cfg.PickListEntries),
		sleep:     time.Sleep,
	}
}

func (e *DefaultExecutor) Execute(ctx context.Context, req Request) error {
	if e.cfg.RestoreFocus {
		e.auto.SaveFocus()
	}

	err := e.dispatch(ctx, req)
	if err != nil {
		if e.diag != nil {
			e.diag.CaptureFailure(req.Kind.String())
		}
		if e.cue != nil {
			// Асинхронно: сигнал не должен удлинять окно busy
			go func() {
				if cueErr := e.cue.PlayCue(e.cfg.CueWarnFreq, e.cfg.CueDuration, e.cfg.CueVolumeDB); cueErr != nil {
					e.logger.Debugw("Warn cue playback failed", "error", cueErr)
				}
			}()
		}
	}
	return err
}

func (e *DefaultExecutor) dispatch(ctx context.Context, req Request) error {
	switch req.Kind {
	case KindToggleRecord:
		// Аппаратная кнопка уже переключила приложение нативно — кейстрок лишний
		return e.dict.Toggle(ctx, nil, req.Source == SourceDevice)
	case KindSign:
		return e.signOrDiscard(ctx, oracle.KeySign)
	case KindDiscard:
		return e.signOrDiscard(ctx, oracle.KeyDiscard)
	case KindProcess:
		if err := e.auto.ActivateReportingApp(ctx); err != nil {
			return err
		}
		if err := e.auto.EmitKeystroke(ctx, oracle.KeyProcess); err != nil {
			return err
		}
		e.rec.MarkProcessPressed()
		return nil
	case KindInsertMacro:
		return e.insertNamed(ctx, e.macros, req.Payload, "macro")
	case KindInsertPickList:
		return e.insertNamed(ctx, e.pickList, req.Payload, "pick-list entry")
	case KindCreateCriticalNote:
		accession := req.Payload
		if accession == "" {
			accession = e.rec.CurrentAccession()
		}
		return e.notes.EnsureNoteForAccession(ctx, accession)
	default:
		return fmt.Errorf("unknown action kind %d", req.Kind)
	}
}

func (e *DefaultExecutor) signOrDiscard(ctx context.Context, k oracle.Keystroke) error {
	// Запись должна быть остановлена до подписи/отмены, иначе внешнее
	// приложение проглотит кейстрок как диктовку.
	if err := e.dict.EnsureStopped(ctx); err != nil {
		return err
	}
	if err := e.auto.ActivateReportingApp(ctx); err != nil {
		return err
	}
	if err := e.auto.EmitKeystroke(ctx, k); err != nil {
		return err
	}
	switch k {
	case oracle.KeySign:
		e.rec.MarkSigned()
	case oracle.KeyDiscard:
		e.rec.MarkDiscardRequested()
	}
	return nil
}

// insertNamed вставляет сконфигурированный текст через буфер обмена.
// Отсутствующее имя — некорректная ссылка конфигурации: блокирующее
// уведомление, действие прерывается чисто, без частичных эффектов.
func (e *DefaultExecutor) insertNamed(ctx context.Context, table map[string]string, name, what string) error {
	text, ok := table[strings.ToLower(strings.TrimSpace(name))]
	if !ok || text == "" {
		e.presenter.ShowNotice(fmt.Sprintf("Configured %s %q does not exist or is disabled", what, name))
		return nil
	}
	return e.pasteText(ctx, text)
}

// pasteText — единственный путь «вставить текст» в системе; лочится целиком,
// чтобы два разных вида действий не перемежали работу с буфером.
func (e *DefaultExecutor) pasteText(ctx context.Context, text string) error {
	e.pasteMu.Lock()
	defer e.pasteMu.Unlock()

	prev, prevErr := e.auto.GetClipboardText(ctx)
	if err := e.auto.SetClipboardText(ctx, text); err != nil {
		return err
	}
	if err := e.auto.ActivateReportingApp(ctx); err != nil {
		return err
	}
	if err := e.auto.EmitKeystroke(ctx, oracle.KeyPaste); err != nil {
		return err
	}
	// Пауза, пока внешнее приложение заберёт буфер
	e.sleep(e.cfg.PasteSettle)

	if prevErr == nil {
		if err := e.auto.SetClipboardText(ctx, prev); err != nil {
			e.logger.Warnw("Failed to restore clipboard", "error", err)
		}
	}
	return nil
}

// Cleanup выполняется после каждого действия: вернуть фокус и поднять оверлеи.
func (e *DefaultExecutor) Cleanup(ctx context.Context) {
	if e.cfg.RestoreFocus {
		if err := e.auto.RestoreFocus(ctx); err != nil {
			e.logger.Debugw("Failed to restore focus", "error", err)
		}
	}
	e.presenter.RaiseOverlays()
}
