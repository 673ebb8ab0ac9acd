package devicebridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ScribePilot/internal/app/actions"
	"ScribePilot/internal/config"
)

// ActionSink — срез очереди, нужный мосту.
type ActionSink interface {
	Enqueue(req actions.Request) bool
}

// buttonEvent — сообщение от драйвера аппаратного микрофона. Драйвер уже
// переключил само устройство; мост лишь превращает нажатие в действие.
type buttonEvent struct {
	Button string `json:"button"`
	State  string `json:"state,omitempty"` // down|up, пусто = down
}

var buttonKinds = map[string]actions.Kind{
	"record":  actions.KindToggleRecord,
	"sign":    actions.KindSign,
	"discard": actions.KindDiscard,
	"process": actions.KindProcess,
	"note":    actions.KindCreateCriticalNote,
}

// Bridge принимает кнопочные события микрофона по WebSocket с localhost.
type Bridge struct {
	cfg      config.DeviceBridgeConfig
	logger   *zap.SugaredLogger
	sink     ActionSink
	srv      *http.Server
	upgrader websocket.Upgrader
	running  atomic.Bool

	// Shutdown сервера не видит перехваченные после Upgrade соединения,
	// поэтому мост ведёт их сам и закрывает при остановке.
	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

func NewBridge(cfg config.DeviceBridgeConfig, sink ActionSink, logger *zap.SugaredLogger) *Bridge {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:3999"
	}
	if cfg.Path == "" {
		cfg.Path = "/buttons"
	}
	b := &Bridge{
		cfg:    cfg,
		logger: logger,
		sink:   sink,
		conns:  map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			// Мост слушает только loopback, Origin не проверяем
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, b.handleButtons)

	b.srv = &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return b
}

// Start запускает сервер в отдельной горутине и немедленно возвращается.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		b.logger.Infow("DeviceBridge listening", "addr", b.srv.Addr, "path", b.cfg.Path)
		if err := b.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			b.logger.Errorw("DeviceBridge stopped with error", "error", err)
		} else {
			b.logger.Infow("DeviceBridge stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = b.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

// Stop инициирует graceful shutdown.
func (b *Bridge) Stop(ctx context.Context) error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("device-bridge shutdown timeout"))
	defer cancel()
	err := b.srv.Shutdown(shutdownCtx)
	b.closeConns()
	if err != nil {
		b.logger.Warnw("graceful shutdown error", "error", err)
		return b.srv.Close()
	}
	return nil
}

func (b *Bridge) trackConn(conn *websocket.Conn) {
	b.connMu.Lock()
	b.conns[conn] = struct{}{}
	b.connMu.Unlock()
}

func (b *Bridge) untrackConn(conn *websocket.Conn) {
	b.connMu.Lock()
	delete(b.conns, conn)
	b.connMu.Unlock()
}

// closeConns рвёт активные соединения, чтобы читающие горутины завершились
// вместе с мостом, а не висели до отключения клиента.
func (b *Bridge) closeConns() {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	for conn := range b.conns {
		_ = conn.Close()
	}
}

// Addr возвращает адрес, на котором слушает мост.
func (b *Bridge) Addr() string { return b.cfg.BindAddr }

func (b *Bridge) handleButtons(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warnw("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	b.trackConn(conn)
	defer b.untrackConn(conn)
	b.logger.Infow("Device connected", "remote", r.RemoteAddr)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Warnw("Device connection lost", "remote", r.RemoteAddr, "error", err)
			} else {
				b.logger.Infow("Device disconnected", "remote", r.RemoteAddr)
			}
			return
		}

		var ev buttonEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			b.logger.Debugw("Malformed button event", "raw", string(raw), "error", err)
			continue
		}
		if ev.State == "up" {
			continue
		}
		kind, ok := buttonKinds[strings.ToLower(strings.TrimSpace(ev.Button))]
		if !ok {
			b.logger.Debugw("Unknown button", "button", ev.Button)
			continue
		}
		if !b.sink.Enqueue(actions.Request{Kind: kind, Source: actions.SourceDevice}) {
			b.logger.Warnw("Action queue rejected device event", "button", ev.Button)
		}
	}
}

// authorized проверяет токен из заголовка Authorization (Bearer) либо из
// query-параметра token — не всякий драйвер умеет ставить заголовки.
func (b *Bridge) authorized(r *http.Request) bool {
	if b.cfg.AuthToken == "" {
		return true
	}
	if h := r.Header.Get("Authorization"); strings.TrimPrefix(h, "Bearer ") == b.cfg.AuthToken {
		return true
	}
	return r.URL.Query().Get("token") == b.cfg.AuthToken
}
