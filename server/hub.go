package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/queue"
)

// Hub はクライアント間でメッセージを配送するインメモリのPubSubです。
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[uuid.UUID]queue.Writer[domain.Message]
}

// NewHub は新しいHubを作成します。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[uuid.UUID]queue.Writer[domain.Message]),
	}
}

// Subscribe はidの購読者としてwを登録します。
func (h *Hub) Subscribe(id uuid.UUID, w queue.Writer[domain.Message]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = w
}

// Unsubscribe は購読を解除します。
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish はfrom以外のすべての購読者へmsgを配信し、配信できた数を返します。
// 配送はbest-effort: 完了済みの購読者はスキップして継続します。
func (h *Hub) Publish(ctx context.Context, from uuid.UUID, msg domain.Message) int {
	h.mu.RLock()
	targets := make([]queue.Writer[domain.Message], 0, len(h.subscribers))
	for id, w := range h.subscribers {
		if id == from {
			continue
		}
		targets = append(targets, w)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, w := range targets {
		if w.TryWrite(msg) {
			delivered++
			continue
		}
		h.logger.DebugContext(ctx, "hub: subscriber completed, message dropped", "from", from)
	}
	return delivered
}
