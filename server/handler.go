package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/touka-aoi/duplex/endpoint"
	"github.com/touka-aoi/duplex/internal/logger"
	"github.com/touka-aoi/duplex/transport/coderws"
)

// DefaultCloseTimeout はクライアントを正常にクローズする際の待ち時間の上限です。
const DefaultCloseTimeout = 5 * time.Second

// Mode は受信したメッセージの扱い方です。
type Mode string

const (
	// ModeEcho は受信したメッセージを送信元へ返します。
	ModeEcho Mode = "echo"
	// ModeBroadcast は受信したメッセージを送信元以外の全クライアントへ配信します。
	ModeBroadcast Mode = "broadcast"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeEcho, ModeBroadcast:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want echo or broadcast)", s)
	}
}

type ClientSet map[uuid.UUID]*endpoint.Endpoint

// Handler はWebSocket接続ごとにエンドポイントを作成し、modeに従ってメッセージを処理します。
type Handler struct {
	mode          Mode
	hub           *Hub
	cfg           endpoint.Config
	logger        *slog.Logger
	acceptOptions *websocket.AcceptOptions
	closeTimeout  time.Duration

	mu      sync.RWMutex
	clients ClientSet
	wg      sync.WaitGroup
}

// Option はHandlerの設定を変更します。
type Option func(*Handler)

// WithAcceptOptions はアップグレード時のオプションを設定します。
func WithAcceptOptions(opts *websocket.AcceptOptions) Option {
	return func(h *Handler) { h.acceptOptions = opts }
}

func WithCloseTimeout(d time.Duration) Option {
	return func(h *Handler) { h.closeTimeout = d }
}

// NewHandler はmodeとエンドポイントの設定を受け取り、WebSocket ハンドラを構築する。
func NewHandler(mode Mode, cfg endpoint.Config, opts ...Option) *Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.Logger("server")
	}
	if mode == ModeBroadcast {
		// Hubは他のクライアントのgoroutineから各Senderへ書き込む
		cfg.MultiSender = true
	}
	h := &Handler{
		mode:         mode,
		hub:          NewHub(l),
		cfg:          cfg,
		logger:       l,
		closeTimeout: DefaultCloseTimeout,
		clients:      make(ClientSet),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tr, err := coderws.Accept(w, r, h.acceptOptions)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to accept websocket connection", "error", err)
		return
	}
	e, err := endpoint.New(tr, h.cfg)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start endpoint", "error", err)
		_ = tr.Close()
		return
	}

	h.addClient(e)
	defer h.removeClient(e)
	h.serve(ctx, e)
}

// Clients は接続中のクライアント数を返します。
func (h *Handler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown は接続中の全クライアントを正常にクローズし、処理の終了を待ちます。
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	targets := make([]*endpoint.Endpoint, 0, len(h.clients))
	for _, e := range h.clients {
		targets = append(targets, e)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, e := range targets {
		wg.Go(func() { h.closeClient(ctx, e) })
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) serve(ctx context.Context, e *endpoint.Endpoint) {
	l := h.logger.With("client", e.ID())
	if h.mode == ModeBroadcast {
		h.hub.Subscribe(e.ID(), e.Sender())
		defer h.hub.Unsubscribe(e.ID())
	}

	for msg, err := range e.Messages(ctx) {
		if err != nil {
			l.DebugContext(ctx, "inbound completed with error", "error", err)
			break
		}
		switch h.mode {
		case ModeEcho:
			e.Sender().TryWrite(msg)
		case ModeBroadcast:
			h.hub.Publish(ctx, e.ID(), msg)
		}
	}

	h.closeClient(context.WithoutCancel(ctx), e)
	if err := e.Dispose(); err != nil {
		l.WarnContext(ctx, "dispose failed", "error", err)
	}
	l.DebugContext(ctx, "client finished", "state", e.State())
}

// closeClient は送信を締め切って書き出しを待ち、可能ならクローズハンドシェイクを行います。
func (h *Handler) closeClient(ctx context.Context, e *endpoint.Endpoint) {
	ctx, cancel := context.WithTimeout(ctx, h.closeTimeout)
	defer cancel()

	e.Sender().Complete(nil)
	if err := e.SendCompletion().Wait(ctx); err != nil {
		return
	}
	if err := e.Close(ctx); err != nil {
		h.logger.DebugContext(ctx, "close failed", "client", e.ID(), "error", err)
	}
}

func (h *Handler) addClient(e *endpoint.Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[e.ID()] = e
	h.wg.Add(1)
}

func (h *Handler) removeClient(e *endpoint.Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, e.ID())
	h.wg.Done()
}
