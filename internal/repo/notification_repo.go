// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model, including the recent-duplicate scan backing the
// notification framework's dedup-before-insert guarantee.
package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
)

// CreateNotification inserts a notification row.
func CreateNotification(db *gorm.DB, n *domain.Notification) error {
	return db.Create(n).Error
}

// GetNotification fetches a notification by ID, or ErrNotFound.
func GetNotification(db *gorm.DB, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.Where("id = ?", id).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// FindRecentDuplicates returns notifications equal to the candidate on every
// field except ID and CreatedAt, still unsent (and unread, unarchived; a
// marked row is no longer equal to a fresh candidate), created within the
// trailing window. These are the rows the framework collapses on send.
func FindRecentDuplicates(db *gorm.DB, cand *domain.Notification, window time.Duration, now time.Time) ([]domain.Notification, error) {
	// gorm renders nil map values as IS NULL, which is exactly the
	// "same recipient, same foreign keys" equality the dedup rule needs.
	match := map[string]any{
		"type":                      cand.Type,
		"actor_user_id":             cand.ActorUserID,
		"recipient_user_id":         cand.RecipientUserID,
		"recipient_collaborator_id": cand.RecipientCollaboratorID,
		"recipient_team_user_id":    cand.RecipientTeamUserID,
		"design_id":                 cand.DesignID,
		"collection_id":             cand.CollectionID,
		"approval_step_id":          cand.ApprovalStepID,
		"comment_id":                cand.CommentID,
		"annotation_id":             cand.AnnotationID,
		"measurement_id":            cand.MeasurementID,
		"task_id":                   cand.TaskID,
		"team_id":                   cand.TeamID,
		"collaborator_id":           cand.CollaboratorID,
		"read_at":                   nil,
		"sent_email_at":             nil,
		"archived_at":               nil,
	}

	var out []domain.Notification
	err := db.Where(match).
		Where("created_at > ?", now.Add(-window)).
		Where("id <> ?", cand.ID).
		Find(&out).Error
	return out, err
}

// DeleteNotifications soft-deletes the given notification rows.
func DeleteNotifications(db *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Delete(&domain.Notification{}, "id IN ?", ids).Error
}

// GetFullNotification fetches a notification together with the joined data
// message builders render from. Joined titles stay nil when the referenced
// row is missing or soft-deleted; only a missing actor is an error, since
// every notification records the user who caused it.
func GetFullNotification(db *gorm.DB, id string) (*domain.FullNotification, error) {
	n, err := GetNotification(db, id)
	if err != nil {
		return nil, err
	}

	actor, err := GetUser(db, n.ActorUserID)
	if err != nil {
		return nil, err
	}

	full := &domain.FullNotification{Notification: *n, ActorName: actor.Name}

	switch {
	case n.RecipientUserID != nil:
		full.DeliveryUserID = n.RecipientUserID
	case n.RecipientTeamUserID != nil:
		if tu, err := GetTeamUser(db, *n.RecipientTeamUserID); err == nil {
			full.DeliveryUserID = &tu.UserID
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if n.DesignID != nil {
		if d, err := GetDesign(db, *n.DesignID); err == nil {
			full.DesignTitle = &d.Title
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if n.CollectionID != nil {
		if c, err := GetCollection(db, *n.CollectionID); err == nil {
			full.CollectionTitle = &c.Title
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if n.ApprovalStepID != nil {
		if s, err := GetApprovalStep(db, *n.ApprovalStepID); err == nil {
			full.StepTitle = &s.Title
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if n.CommentID != nil {
		if c, err := GetComment(db, *n.CommentID); err == nil {
			full.CommentText = &c.Text
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if n.TaskID != nil {
		if tk, err := GetTask(db, *n.TaskID); err == nil {
			full.TaskTitle = &tk.Title
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if n.TeamID != nil {
		if tm, err := GetTeam(db, *n.TeamID); err == nil {
			full.TeamTitle = &tm.Title
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return full, nil
}

// forRecipientUser matches notifications delivered to the user: addressed
// to them directly, or to a team membership of theirs.
func forRecipientUser(db *gorm.DB, userID string) *gorm.DB {
	memberships := db.Session(&gorm.Session{NewDB: true}).
		Model(&domain.TeamUser{}).
		Select("id").
		Where("user_id = ?", userID)
	return db.Where("recipient_user_id = ? OR recipient_team_user_id IN (?)", userID, memberships)
}

// ListNotificationsPage returns a recipient user's notifications, newest
// first, with offset/limit pagination.
func ListNotificationsPage(db *gorm.DB, recipientUserID string, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	q := forRecipientUser(db, recipientUserID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var out []domain.Notification
	err := q.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountNotifications returns the total (and optionally unread-only) count of
// a recipient user's notifications.
func CountNotifications(db *gorm.DB, recipientUserID string, unreadOnly bool) (int64, error) {
	q := forRecipientUser(db.Model(&domain.Notification{}), recipientUserID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListOutstandingNotifications returns unsent, unarchived notifications
// created before the cutoff. The email digest job uses this with the
// outstanding-email delay, which is a separate knob from the dedup window.
func ListOutstandingNotifications(db *gorm.DB, cutoff time.Time) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.Where("sent_email_at IS NULL AND archived_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// MarkNotificationRead stamps ReadAt, or ErrNotFound. Already-read rows are
// left untouched.
func MarkNotificationRead(db *gorm.DB, id string, now time.Time) error {
	res := db.Model(&domain.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish "missing" from "already read".
		if _, err := GetNotification(db, id); err != nil {
			return err
		}
	}
	return nil
}

// MarkAllNotificationsRead stamps ReadAt on every unread notification of the
// recipient user.
func MarkAllNotificationsRead(db *gorm.DB, recipientUserID string, now time.Time) error {
	return forRecipientUser(db.Model(&domain.Notification{}), recipientUserID).
		Where("read_at IS NULL").
		Update("read_at", now).Error
}

// MarkNotificationsEmailSent stamps SentEmailAt on the given rows. A sent
// notification leaves the dedup candidate set for good.
func MarkNotificationsEmailSent(db *gorm.DB, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(&domain.Notification{}).
		Where("id IN ?", ids).
		Update("sent_email_at", now).Error
}

// ArchiveNotification stamps ArchivedAt, or ErrNotFound.
func ArchiveNotification(db *gorm.DB, id string, now time.Time) error {
	res := db.Model(&domain.Notification{}).
		Where("id = ? AND archived_at IS NULL", id).
		Update("archived_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetNotification(db, id); err != nil {
			return err
		}
	}
	return nil
}
