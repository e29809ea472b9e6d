// Package services provides application-level orchestration. This file
// implements the recipient-facing notification feed: listing,
// unread counts, and the read/archive lifecycle marks. Creation goes
// through the notifications framework, never through this service.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/repo"
)

// NotificationPage is one page of a user's notification feed.
type NotificationPage struct {
	Data     []domain.Notification `json:"data"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int64                 `json:"total"`
}

// NotificationFeedService reads and marks a user's notifications.
type NotificationFeedService struct {
	DB *gorm.DB
}

// List returns a page of the user's notifications, newest first.
func (s *NotificationFeedService) List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) (*NotificationPage, error) {
	db := s.DB.WithContext(ctx)
	total, err := repo.CountNotifications(db, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	rows, err := repo.ListNotificationsPage(db, userID, unreadOnly, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Notification{}
	}
	return &NotificationPage{Data: rows, Page: page, PageSize: pageSize, Total: total}, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationFeedService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountNotifications(s.DB.WithContext(ctx), userID, true)
}

// MarkRead stamps one notification read. The notification must belong to
// the user; marking an already-read row is a no-op.
func (s *NotificationFeedService) MarkRead(ctx context.Context, userID, id string) error {
	db := s.DB.WithContext(ctx)
	n, err := repo.GetNotification(db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	if err := ownedBy(db, n, userID); err != nil {
		return err
	}
	return repo.MarkNotificationRead(db, id, time.Now().UTC())
}

// MarkAllRead stamps every unread notification of the user.
func (s *NotificationFeedService) MarkAllRead(ctx context.Context, userID string) error {
	return repo.MarkAllNotificationsRead(s.DB.WithContext(ctx), userID, time.Now().UTC())
}

// Archive stamps one notification archived, removing it from the feed and
// from the outstanding-email set.
func (s *NotificationFeedService) Archive(ctx context.Context, userID, id string) error {
	db := s.DB.WithContext(ctx)
	n, err := repo.GetNotification(db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	if err := ownedBy(db, n, userID); err != nil {
		return err
	}
	return repo.ArchiveNotification(db, id, time.Now().UTC())
}

// ownedBy reports whether the notification is deliverable to the user:
// addressed to them directly, or to a team membership of theirs. Anything
// else is indistinguishable from a missing row.
func ownedBy(db *gorm.DB, n *domain.Notification, userID string) error {
	if n.RecipientUserID != nil && *n.RecipientUserID == userID {
		return nil
	}
	if n.RecipientTeamUserID != nil {
		tu, err := repo.GetTeamUser(db, *n.RecipientTeamUserID)
		if err == nil && tu.UserID == userID {
			return nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}
	return ErrNotificationNotFound
}
