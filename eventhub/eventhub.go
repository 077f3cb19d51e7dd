// Package eventhub is the in-process publish/subscribe bus decoupling
// score processing, registration, chat, and replay-download producers from
// whichever consumers (cache invalidation, notifications, activity feed)
// care about them.
package eventhub

import (
	"sync"

	"github.com/Laisky/zap"

	"github.com/aquareto/aquareto-server/common/logger"
)

// Topic names. Handlers are registered per topic and receive whatever
// payload the publisher sent; callers on both sides agree on the
// payload type out of band (this package does not enforce it).
const (
	TopicUserRegistered    = "user.registered"
	TopicScoreProcessed    = "score.processed"
	TopicMessageSent       = "chat.message.sent"
	TopicReplayDownloaded  = "replay.downloaded"
	TopicRequestHandled    = "request.handled"
	TopicAchievementEarned = "achievement.earned"
)

// Handler receives a published payload. Handlers run synchronously on the
// publishing goroutine's call to Publish; a handler that needs to do slow
// work should hand off to its own goroutine immediately.
type Handler func(payload any)

// Hub is a typed-by-convention pub/sub bus. The zero value is not usable;
// construct with New.
type Hub struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{handlers: make(map[string][]Handler)}
}

// Subscribe registers fn to run whenever topic is published. Subscriptions
// are typically made once at startup by each consumer package.
func (h *Hub) Subscribe(topic string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[topic] = append(h.handlers[topic], fn)
}

// Publish invokes every handler registered for topic. A handler panic is
// recovered and logged so one misbehaving subscriber cannot break the
// publisher's request; this mirrors the score pipeline's rule that
// post-processing failures never fail the originating request.
func (h *Hub) Publish(topic string, payload any) {
	h.mu.RLock()
	handlers := append([]Handler(nil), h.handlers[topic]...)
	h.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Logger.Error("eventhub handler panicked",
						zap.String("topic", topic), zap.Any("panic", r))
				}
			}()
			fn(payload)
		}()
	}
}

// Default is the process-wide hub wired up in main; components that are
// constructed before the application context is assembled (e.g. package
// init-time registration) can subscribe against it directly.
var Default = New()
