package actions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Executor выполняет одно действие целиком. Cleanup вызывается после каждого
// действия независимо от исхода.
type Executor interface {
	Execute(ctx context.Context, req Request) error
	Cleanup(ctx context.Context)
}

// Notifier — срез презентера, нужный самой очереди.
type Notifier interface {
	ShowToast(message string, d time.Duration)
	RaiseOverlays()
}

// Queue — сериализованная FIFO-очередь действий с единственным воркером.
// Enqueue неблокирующий и потокобезопасный; во всей системе одновременно
// исполняется не более одного действия.
type Queue struct {
	logger   *zap.SugaredLogger
	exec     Executor
	notifier Notifier
	idleWake time.Duration
	toastDur time.Duration

	mu        sync.Mutex
	items     []Request
	accepting bool
	notify    chan struct{}

	busy atomic.Bool
}

func NewQueue(exec Executor, notifier Notifier, idleWake, toastDur time.Duration, logger *zap.SugaredLogger) *Queue {
	if idleWake <= 0 {
		idleWake = 2 * time.Second
	}
	return &Queue{
		logger:    logger,
		exec:      exec,
		notifier:  notifier,
		idleWake:  idleWake,
		toastDur:  toastDur,
		notify:    make(chan struct{}, 1),
		accepting: true,
	}
}

// Enqueue ставит запрос в очередь и будит воркера. Возвращает false, если
// очередь уже остановлена; запрос в этом случае отбрасывается.
func (q *Queue) Enqueue(req Request) bool {
	q.mu.Lock()
	if !q.accepting {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, req)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Busy сообщает, исполняется ли действие прямо сейчас. Поллер жизненного
// цикла пропускает цикл целиком, пока флаг взведён.
func (q *Queue) Busy() bool { return q.busy.Load() }

// Pending возвращает размер очереди (для дебага).
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run — цикл воркера. Блокируется до отмены контекста; действие в полёте
// всегда доводится до конца. Периодическое пробуждение позволяет выполнять
// сервисную уборку (повторный подъём оверлеев) и на пустой очереди.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Infow("Action queue started", "idleWake", q.idleWake.String())
	for {
		t := time.NewTimer(q.idleWake)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			q.shutdown()
			return context.Cause(ctx)
		case <-t.C:
			// пробуждение по таймеру: уборка + страховка от пропущенного сигнала
			q.notifier.RaiseOverlays()
			q.drainAll(ctx)
		case <-q.notify:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			q.drainAll(ctx)
		}
	}
}

func (q *Queue) shutdown() {
	q.mu.Lock()
	q.accepting = false
	dropped := len(q.items)
	q.items = nil
	q.mu.Unlock()
	if dropped > 0 {
		q.logger.Warnw("Action queue stopped with pending items", "dropped", dropped)
	} else {
		q.logger.Infow("Action queue stopped")
	}
}

// drainAll выкачивает очередь по одному элементу строго в порядке постановки.
func (q *Queue) drainAll(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		req, ok := q.pop()
		if !ok {
			return
		}
		q.runOne(ctx, req)
	}
}

func (q *Queue) pop() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Request{}, false
	}
	req := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return req, true
}

func (q *Queue) runOne(ctx context.Context, req Request) {
	q.busy.Store(true)
	start := time.Now()
	err := q.execute(ctx, req)
	// Уборка выполняется под флагом busy: восстановление фокуса не должно
	// гоняться со скрейпом поллера.
	q.exec.Cleanup(ctx)
	q.busy.Store(false)

	if err != nil {
		q.logger.Errorw("Action failed", "kind", req.Kind.String(), "source", req.Source, "error", err)
		q.notifier.ShowToast(fmt.Sprintf("Action %s failed: %v", req.Kind, err), q.toastDur)
		return
	}
	q.logger.Infow("Action done", "kind", req.Kind.String(), "source", req.Source, "duration", time.Since(start).String())
}

// execute изолирует панику тела действия: воркер переживает любой сбой.
func (q *Queue) execute(ctx context.Context, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return q.exec.Execute(ctx, req)
}
