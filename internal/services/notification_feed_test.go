package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/repo"
)

func TestNotificationFeed_TeamUserOwnership(t *testing.T) {
	db := newTestDB(t)
	feed := &NotificationFeedService{DB: db}

	if err := db.Create(&domain.TeamUser{ID: "tu1", TeamID: "t1", UserID: "u1"}).Error; err != nil {
		t.Fatalf("seed team user: %v", err)
	}
	teamUser := "tu1"
	n := &domain.Notification{
		ID:                  "n1",
		Type:                domain.NotificationApprovalStepAssignment,
		ActorUserID:         "actor",
		RecipientTeamUserID: &teamUser,
		CreatedAt:           time.Now().UTC(),
	}
	if err := repo.CreateNotification(db, n); err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	// a foreign user cannot see the row at all
	if err := feed.MarkRead(context.Background(), "u2", "n1"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound for foreign user, got %v", err)
	}

	// the member behind the membership can
	if err := feed.MarkRead(context.Background(), "u1", "n1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	got, err := repo.GetNotification(db, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReadAt == nil {
		t.Fatalf("read_at not stamped")
	}

	if err := feed.Archive(context.Background(), "u1", "n1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err = repo.GetNotification(db, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ArchivedAt == nil {
		t.Fatalf("archived_at not stamped")
	}
}
