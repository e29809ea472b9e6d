// Package notifications implements the notification component framework.
// This file contains the transactional Send operation and its
// dedup-before-insert guarantee.
package notifications

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/repo"
)

// ErrInvalidRecipient indicates a recipient descriptor that does not name
// exactly one of user, collaborator, or team-user.
var ErrInvalidRecipient = errors.New("exactly one recipient identifier must be set")

// DefaultDedupWindow is the span within which two otherwise-identical,
// not-yet-emailed notifications collapse to one. It is deliberately a
// separate knob from the outstanding-email delay used by the digest job.
const DefaultDedupWindow = 5 * time.Minute

// Notifier is the notification framework's entry point. One instance is
// shared by all listeners; it is safe for concurrent use.
type Notifier struct {
	Registry    *Registry
	Announcer   Announcer
	DedupWindow time.Duration
	Log         zerolog.Logger
}

// NewNotifier wires a notifier with the default dedup window.
func NewNotifier(registry *Registry, announcer Announcer, log zerolog.Logger) *Notifier {
	return &Notifier{
		Registry:    registry,
		Announcer:   announcer,
		DedupWindow: DefaultDedupWindow,
		Log:         log,
	}
}

// Send creates a notification of the given type inside tx.
//
// Behavior:
//   - Returns (nil, nil) without effect when the recipient user is the actor;
//     a notification is never created for its own actor.
//   - Validates data against the type's schema before building the row; a
//     missing required field fails here, never at storage.
//   - Soft-deletes recent unsent duplicates (per FindRecentDuplicates) before
//     inserting, so bursts of near-identical events collapse to the newest
//     row. Combined with running inside the caller's transaction this makes
//     whole-mutation retries safe: a retry within the window replaces the
//     prior attempt's row instead of stacking a duplicate.
//   - Queues the new row for post-commit announcement when the caller set up
//     a pending queue on the transaction context.
func (n *Notifier) Send(tx *gorm.DB, typ domain.NotificationType, actorUserID string, rcpt domain.Recipient, data Data) (*domain.Notification, error) {
	if err := validateRecipient(rcpt); err != nil {
		return nil, err
	}
	if rcpt.UserID != nil && *rcpt.UserID == actorUserID {
		return nil, nil
	}

	comp, ok := n.Registry.Component(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
	if err := comp.Schema.Validate(typ, data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &domain.Notification{
		ID:                      uuid.NewString(),
		Type:                    typ,
		ActorUserID:             actorUserID,
		RecipientUserID:         rcpt.UserID,
		RecipientCollaboratorID: rcpt.CollaboratorID,
		RecipientTeamUserID:     rcpt.TeamUserID,
		CreatedAt:               now,
	}
	apply(row, data)

	dups, err := repo.FindRecentDuplicates(tx, row, n.DedupWindow, now)
	if err != nil {
		return nil, err
	}
	if len(dups) > 0 {
		ids := make([]string, len(dups))
		for i, d := range dups {
			ids[i] = d.ID
		}
		if err := repo.DeleteNotifications(tx, ids); err != nil {
			return nil, err
		}
	}

	if err := repo.CreateNotification(tx, row); err != nil {
		return nil, err
	}

	if p := PendingFrom(tx.Statement.Context); p != nil {
		p.Add(row.ID)
	}
	return row, nil
}

func validateRecipient(r domain.Recipient) error {
	set := 0
	if r.UserID != nil {
		set++
	}
	if r.CollaboratorID != nil {
		set++
	}
	if r.TeamUserID != nil {
		set++
	}
	if set != 1 {
		return ErrInvalidRecipient
	}
	return nil
}
