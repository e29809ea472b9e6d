// Package announce delivers rendered notifications to connected clients
// over an in-process pub/sub hub. The hub is the concrete announcer behind
// the notification framework's fire-and-forget boundary: delivery is
// best-effort, slow subscribers are skipped, and nothing here can fail the
// mutation that produced a notification.
package announce

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/notifications"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts dropping messages.
const subscriberBuffer = 16

// Subscriber is one client connection's view of the hub.
type Subscriber struct {
	userID string
	ch     chan *domain.NotificationMessage
}

// Messages returns the channel delivery events arrive on. It is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) Messages() <-chan *domain.NotificationMessage { return s.ch }

// Hub fans rendered notification messages out to subscribers keyed by
// delivery user id. It implements notifications.Announcer.
type Hub struct {
	registry *notifications.Registry
	log      zerolog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

// NewHub returns an empty hub rendering through registry.
func NewHub(registry *notifications.Registry, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		log:      log,
		subs:     map[string]map[*Subscriber]struct{}{},
	}
}

// Subscribe registers a new subscriber for the given user.
func (h *Hub) Subscribe(userID string) *Subscriber {
	s := &Subscriber{userID: userID, ch: make(chan *domain.NotificationMessage, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = map[*Subscriber]struct{}{}
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call once per
// subscriber.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[s.userID]; ok {
		if _, ok := set[s]; ok {
			delete(set, s)
			close(s.ch)
		}
		if len(set) == 0 {
			delete(h.subs, s.userID)
		}
	}
	h.mu.Unlock()
}

// Announce renders full and publishes exactly one delivery event to the
// delivery user's subscribers. Notifications without a delivery user (an
// email-only collaborator recipient), and notifications the registry
// declines to render, are skipped silently.
func (h *Hub) Announce(_ context.Context, full *domain.FullNotification) error {
	if full.DeliveryUserID == nil {
		return nil
	}
	msg, err := h.registry.Message(full)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[*full.DeliveryUserID] {
		select {
		case s.ch <- msg:
		default:
			h.log.Debug().
				Str("user_id", *full.DeliveryUserID).
				Str("notification_id", full.ID).
				Msg("dropping delivery for slow subscriber")
		}
	}
	return nil
}
