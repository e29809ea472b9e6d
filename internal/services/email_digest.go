// Package services provides application-level orchestration. This file
// implements the email digest job.
//
// Notifications that sit unread past the outstanding delay are collected and
// handed to a Mailer, then stamped sentEmailAt so the dedup query stops
// treating them as collapsible and the next digest run skips them.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/notifications"
	"github.com/ca-la/studio-backend/internal/repo"
)

// Mailer delivers a rendered notification message to an address. The digest
// does not retry; an erroring notification is left unsent for the next run.
type Mailer interface {
	SendMail(ctx context.Context, to string, msg *domain.NotificationMessage) error
}

// LogMailer writes outgoing mail to the log instead of an SMTP relay.
// Useful in development and as the default until a relay is configured.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) SendMail(_ context.Context, to string, msg *domain.NotificationMessage) error {
	m.Log.Info().Str("to", to).Str("title", msg.Title).Msg("email digest (log only)")
	return nil
}

// EmailDigestService periodically emails notifications that have been
// outstanding (unread, unsent, unarchived) longer than Delay.
type EmailDigestService struct {
	DB       *gorm.DB
	Registry *notifications.Registry
	Mailer   Mailer
	Delay    time.Duration
	Log      zerolog.Logger
}

func NewEmailDigestService(db *gorm.DB, registry *notifications.Registry, mailer Mailer, delay time.Duration, log zerolog.Logger) *EmailDigestService {
	return &EmailDigestService{DB: db, Registry: registry, Mailer: mailer, Delay: delay, Log: log}
}

// Run executes RunOnce on every tick until ctx is cancelled.
func (s *EmailDigestService) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := s.RunOnce(ctx); err != nil {
				s.Log.Error().Err(err).Msg("email digest run failed")
			} else if n > 0 {
				s.Log.Info().Int("sent", n).Msg("email digest run complete")
			}
		}
	}
}

// RunOnce emails every outstanding notification older than Delay and returns
// how many were marked sent. Notifications whose recipient has no resolvable
// address, or whose message renders nil (deleted resources, retired types),
// are stamped sent as well so they do not pile up.
func (s *EmailDigestService) RunOnce(ctx context.Context) (int, error) {
	db := s.DB.WithContext(ctx)
	cutoff := time.Now().UTC().Add(-s.Delay)

	rows, err := repo.ListOutstandingNotifications(db, cutoff)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	sent := make([]string, 0, len(rows))
	for i := range rows {
		id := rows[i].ID
		if err := s.sendOne(ctx, db, id); err != nil {
			s.Log.Warn().Err(err).Str("notification_id", id).Msg("digest delivery failed, will retry")
			continue
		}
		sent = append(sent, id)
	}
	if len(sent) == 0 {
		return 0, nil
	}
	if err := repo.MarkNotificationsEmailSent(db, sent, time.Now().UTC()); err != nil {
		return 0, err
	}
	return len(sent), nil
}

func (s *EmailDigestService) sendOne(ctx context.Context, db *gorm.DB, id string) error {
	full, err := repo.GetFullNotification(db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}

	addr, err := s.recipientEmail(db, &full.Notification)
	if err != nil {
		return err
	}
	if addr == "" {
		return nil
	}

	msg, err := s.Registry.Message(full)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	return s.Mailer.SendMail(ctx, addr, msg)
}

// recipientEmail resolves the delivery address for a notification. Returns
// "" when the recipient no longer resolves to an address.
func (s *EmailDigestService) recipientEmail(db *gorm.DB, n *domain.Notification) (string, error) {
	switch {
	case n.RecipientUserID != nil:
		u, err := repo.GetUser(db, *n.RecipientUserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		return u.Email, nil
	case n.RecipientCollaboratorID != nil:
		c, err := repo.GetCollaborator(db, *n.RecipientCollaboratorID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		if c.UserEmail != nil {
			return *c.UserEmail, nil
		}
		return "", nil
	case n.RecipientTeamUserID != nil:
		tu, err := repo.GetTeamUser(db, *n.RecipientTeamUserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		u, err := repo.GetUser(db, tu.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		return u.Email, nil
	}
	return "", nil
}
