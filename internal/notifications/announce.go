// Package notifications implements the notification component framework.
// This file contains the post-commit announcement queue: the single
// deliberate fire-and-forget boundary in the system. Rows are queued while
// the transaction is open and announced only after it commits, so an
// announcer failure can never roll back the mutation that produced the
// notification.
package notifications

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/repo"
)

// Announcer pushes a persisted notification to a real-time delivery
// channel. Implementations convert the notification to a message via the
// component registry and publish one delivery event to the recipient user;
// when there is no recipient user or the message builder returns nil they
// do nothing. The core wraps every call: an announcer error is logged and
// never propagated.
type Announcer interface {
	Announce(ctx context.Context, full *domain.FullNotification) error
}

type pendingKey struct{}

// Pending collects the ids of notifications created inside one mutation's
// transaction, for announcement after commit. Each orchestrating caller
// creates its own queue, so pending ids never leak across transactions.
type Pending struct {
	mu  sync.Mutex
	ids []string
}

// WithPending returns a context carrying a fresh announcement queue. The
// orchestrator installs it before opening the transaction; Send picks it up
// through the transaction's context.
func WithPending(ctx context.Context) (context.Context, *Pending) {
	p := &Pending{}
	return context.WithValue(ctx, pendingKey{}, p), p
}

// PendingFrom returns the queue carried by ctx, or nil.
func PendingFrom(ctx context.Context) *Pending {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(pendingKey{}).(*Pending)
	return p
}

// Add queues a notification id for post-commit announcement.
func (p *Pending) Add(id string) {
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.mu.Unlock()
}

func (p *Pending) take() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.ids
	p.ids = nil
	return ids
}

// FlushAnnouncements announces every queued notification. It must be called
// only after the producing transaction has committed, with a handle to the
// committed database. All failures (a row deleted in the meantime, a
// rendering error, an announcer error) are logged and swallowed.
func (n *Notifier) FlushAnnouncements(ctx context.Context, db *gorm.DB, p *Pending) {
	if p == nil || n.Announcer == nil {
		if p != nil {
			p.take()
		}
		return
	}
	for _, id := range p.take() {
		full, err := repo.GetFullNotification(db, id)
		if err != nil {
			n.Log.Warn().Err(err).Str("notification_id", id).Msg("announce: load failed")
			continue
		}
		n.announce(ctx, full)
	}
}

// announce invokes the announcer, isolating the caller from any failure.
func (n *Notifier) announce(ctx context.Context, full *domain.FullNotification) {
	defer func() {
		if r := recover(); r != nil {
			n.Log.Error().
				Interface("panic", r).
				Str("notification_id", full.ID).
				Msg("announcer panicked")
		}
	}()
	if err := n.Announcer.Announce(ctx, full); err != nil {
		n.Log.Warn().Err(err).
			Str("notification_id", full.ID).
			Str("type", string(full.Type)).
			Msg("announce failed")
	}
}
