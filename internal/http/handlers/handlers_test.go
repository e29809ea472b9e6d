package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/notifications"
	"github.com/ca-la/studio-backend/internal/repo"
	"github.com/ca-la/studio-backend/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("api_%d.db", time.Now().UnixNano()))
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

	registry := notifications.NewRegistry("https://studio.example.com", zerolog.Nop())
	notifier := notifications.NewNotifier(registry, nil, zerolog.Nop())
	steps := services.NewApprovalStepService(db, notifier, zerolog.Nop())
	feed := &services.NotificationFeedService{DB: db}
	h := New(steps, feed)

	r := gin.New()
	r.PATCH("/approval-steps/:id", h.UpdateApprovalStep)
	r.GET("/notifications", h.ListNotifications)
	r.GET("/notifications/unread-count", h.UnreadNotificationCount)
	r.PUT("/notifications/read", h.MarkAllNotificationsRead)
	r.PUT("/notifications/:id/read", h.MarkNotificationRead)
	r.PUT("/notifications/:id/archive", h.ArchiveNotification)
	return r, db
}

func seedWorkflow(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, u := range []domain.User{
		{ID: "owner", Name: "Olive", Email: "olive@example.com"},
		{ID: "actor", Name: "Ann", Email: "ann@example.com"},
	} {
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if err := db.Create(&domain.Design{ID: "d1", Title: "Silk Jacket", UserID: "owner"}).Error; err != nil {
		t.Fatalf("seed design: %v", err)
	}
	started := time.Now().UTC().Add(-time.Hour)
	if err := db.Create(&domain.ApprovalStep{
		ID: "s1", DesignID: "d1", Title: "Checkout", Ordering: 0,
		Type: domain.StepTypeCheckout, State: domain.StepCurrent, StartedAt: &started,
	}).Error; err != nil {
		t.Fatalf("seed step: %v", err)
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateApprovalStep_RequiresActor(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPatch, "/approval-steps/s1", "", gin.H{"state": "COMPLETED"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUpdateApprovalStep_HappyPath(t *testing.T) {
	r, db := newTestRouter(t)
	seedWorkflow(t, db)

	w := doJSON(t, r, http.MethodPatch, "/approval-steps/s1", "actor", gin.H{"state": "COMPLETED"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got domain.ApprovalStep
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != domain.StepCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected step: %+v", got)
	}
}

func TestUpdateApprovalStep_ErrorMapping(t *testing.T) {
	r, db := newTestRouter(t)
	seedWorkflow(t, db)

	cases := []struct {
		name   string
		path   string
		body   gin.H
		status int
		code   string
	}{
		{"unknown step", "/approval-steps/missing", gin.H{"state": "CURRENT"}, http.StatusNotFound, ErrCodeNotFound},
		{"empty patch", "/approval-steps/s1", gin.H{}, http.StatusBadRequest, ErrCodeInvalidPatch},
		{"invalid state", "/approval-steps/s1", gin.H{"state": "NONSENSE"}, http.StatusBadRequest, ErrCodeInvalidPatch},
		{"blocked without reason", "/approval-steps/s1", gin.H{"state": "BLOCKED"}, http.StatusBadRequest, ErrCodeInvalidPatch},
		{"dangling collaborator", "/approval-steps/s1", gin.H{"collaborator_id": "nope"}, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPatch, tc.path, "actor", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.status, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.code {
				t.Fatalf("code = %q, want %q", resp.Code, tc.code)
			}
		})
	}
}

func TestNotificationFeedEndpoints(t *testing.T) {
	r, db := newTestRouter(t)
	seedWorkflow(t, db)

	uid := "u1"
	now := time.Now().UTC()
	for i, id := range []string{"n1", "n2"} {
		n := &domain.Notification{
			ID:              id,
			Type:            domain.NotificationApprovalStepCompletion,
			ActorUserID:     "actor",
			RecipientUserID: &uid,
			CreatedAt:       now.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateNotification(db, n); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	w := doJSON(t, r, http.MethodGet, "/notifications", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var page services.NotificationPage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 2 || page.Data[0].ID != "n2" {
		t.Fatalf("unexpected page: %+v", page)
	}

	w = doJSON(t, r, http.MethodPut, "/notifications/n1/read", "u1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("mark read status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/notifications/unread-count", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unread-count status = %d", w.Code)
	}
	var count struct {
		Unread int64 `json:"unread"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Unread != 1 {
		t.Fatalf("unread = %d, want 1", count.Unread)
	}

	// another user cannot touch u1's notifications
	w = doJSON(t, r, http.MethodPut, "/notifications/n2/read", "intruder", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign mark read status = %d, want 404", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/notifications/read", "u1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("mark all status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/notifications/unread-count", "u1", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Unread != 0 {
		t.Fatalf("unread after mark-all = %d, want 0", count.Unread)
	}

	w = doJSON(t, r, http.MethodPut, "/notifications/n1/archive", "u1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("archive status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPut, "/notifications/missing/archive", "u1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("archive missing status = %d, want 404", w.Code)
	}
}
