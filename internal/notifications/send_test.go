package notifications

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("notif_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// recordingAnnouncer captures every announced notification.
type recordingAnnouncer struct {
	seen []*domain.FullNotification
	err  error
}

func (a *recordingAnnouncer) Announce(_ context.Context, full *domain.FullNotification) error {
	a.seen = append(a.seen, full)
	return a.err
}

func newTestNotifier(announcer Announcer) *Notifier {
	reg := NewRegistry("https://studio.example.com", zerolog.Nop())
	return NewNotifier(reg, announcer, zerolog.Nop())
}

func assignmentData() Data {
	return Data{FieldDesign: "d1", FieldApprovalStep: "s1"}
}

func TestSend_SelfNotificationIsSuppressed(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	row, err := n.Send(db, domain.NotificationApprovalStepAssignment, "u1",
		domain.RecipientUser("u1"), assignmentData())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if row != nil {
		t.Fatalf("self-notification must return nil, got %+v", row)
	}
	var count int64
	if err := db.Model(&domain.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("self-notification must not create a row, found %d", count)
	}
}

func TestSend_ActorMatchingOtherRecipientKindsIsNotSuppressed(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	// suppression compares recipient *user* ids only; a collaborator id equal
	// to the actor's user id is a different identity
	row, err := n.Send(db, domain.NotificationApprovalStepAssignment, "u1",
		domain.RecipientCollaborator("u1"), assignmentData())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if row == nil {
		t.Fatalf("collaborator recipient must not be suppressed")
	}
}

func TestSend_InvalidRecipient(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	u, c := "u1", "c1"
	_, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.Recipient{UserID: &u, CollaboratorID: &c}, assignmentData())
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}

	_, err = n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.Recipient{}, assignmentData())
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient for empty recipient, got %v", err)
	}
}

func TestSend_SchemaValidation(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	_, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), Data{FieldDesign: "d1"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	bad := assignmentData()
	bad[FieldTask] = "t1"
	_, err = n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), bad)
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}

	var count int64
	if err := db.Model(&domain.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("schema violations must not reach storage, found %d rows", count)
	}
}

func TestSend_UnknownType(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	_, err := n.Send(db, "NO_SUCH_TYPE", "actor", domain.RecipientUser("u1"), Data{})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestSend_RetiredTypeIsUnsupported(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	_, err := n.Send(db, domain.NotificationAnnotationCreate, "actor",
		domain.RecipientUser("u1"), Data{})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("retired types must not be sendable, got %v", err)
	}
}

func TestSend_DedupCollapsesToNewestRow(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	first, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), assignmentData())
	if err != nil {
		t.Fatalf("first Send: %v", err)
	}
	second, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), assignmentData())
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("second send must create a new row")
	}

	var live []domain.Notification
	if err := db.Find(&live).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(live) != 1 || live[0].ID != second.ID {
		t.Fatalf("expected exactly the newest row, got %+v", live)
	}

	// the superseded row is soft-deleted, not gone
	var total int64
	if err := db.Unscoped().Model(&domain.Notification{}).Count(&total).Error; err != nil {
		t.Fatalf("unscoped count: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected superseded row to survive soft-deleted, total=%d", total)
	}
}

func TestSend_EmailedRowIsNotCollapsed(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	first, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), assignmentData())
	if err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := repo.MarkNotificationsEmailSent(db, []string{first.ID}, time.Now().UTC()); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	if _, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), assignmentData()); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	var live []domain.Notification
	if err := db.Order("created_at ASC").Find(&live).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("emailed row must coexist with the new one, got %+v", live)
	}
}

func TestSend_DifferentDataDoesNotCollapse(t *testing.T) {
	db := newTestDB(t)
	n := newTestNotifier(&recordingAnnouncer{})

	if _, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), assignmentData()); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	other := Data{FieldDesign: "d1", FieldApprovalStep: "s2"}
	if _, err := n.Send(db, domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), other); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	var count int64
	if err := db.Model(&domain.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("different approval steps must not dedup, got %d rows", count)
	}
}

func TestSend_QueuesForPostCommitAnnounce(t *testing.T) {
	db := newTestDB(t)
	announcer := &recordingAnnouncer{}
	n := newTestNotifier(announcer)

	if err := db.Create(&domain.User{ID: "actor", Name: "Ann", Email: "ann@example.com"}).Error; err != nil {
		t.Fatalf("seed actor: %v", err)
	}

	ctx, pending := WithPending(context.Background())
	var rowID string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := n.Send(tx, domain.NotificationApprovalStepAssignment, "actor",
			domain.RecipientUser("u1"), assignmentData())
		if err != nil {
			return err
		}
		rowID = row.ID
		if len(announcer.seen) != 0 {
			t.Fatalf("announced before commit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	n.FlushAnnouncements(ctx, db, pending)
	if len(announcer.seen) != 1 || announcer.seen[0].ID != rowID {
		t.Fatalf("expected one post-commit announcement for %s, got %+v", rowID, announcer.seen)
	}

	// flushing twice must not re-announce
	n.FlushAnnouncements(ctx, db, pending)
	if len(announcer.seen) != 1 {
		t.Fatalf("queue not drained after flush")
	}
}

func TestFlushAnnouncements_SwallowsAnnouncerFailures(t *testing.T) {
	db := newTestDB(t)
	announcer := &recordingAnnouncer{err: errors.New("socket closed")}
	n := newTestNotifier(announcer)

	if err := db.Create(&domain.User{ID: "actor", Name: "Ann", Email: "ann@example.com"}).Error; err != nil {
		t.Fatalf("seed actor: %v", err)
	}

	ctx, pending := WithPending(context.Background())
	row, err := n.Send(db.WithContext(ctx), domain.NotificationApprovalStepAssignment, "actor",
		domain.RecipientUser("u1"), assignmentData())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	n.FlushAnnouncements(ctx, db, pending) // must not panic or propagate
	if len(announcer.seen) != 1 || announcer.seen[0].ID != row.ID {
		t.Fatalf("announcer not invoked: %+v", announcer.seen)
	}
}

func TestValidateSchemaErrorNamesTypeAndField(t *testing.T) {
	s := Schema{Required: []Field{FieldDesign}}
	err := s.Validate(domain.NotificationApprovalStepAssignment, Data{})
	if err == nil || !strings.Contains(err.Error(), "APPROVAL_STEP_ASSIGNMENT") ||
		!strings.Contains(err.Error(), "designId") {
		t.Fatalf("error must name type and field: %v", err)
	}
}
