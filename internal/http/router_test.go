package httpapi

import (
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

	"github.com/ca-la/studio-backend/internal/announce"
	"github.com/ca-la/studio-backend/internal/config"
	"github.com/ca-la/studio-backend/internal/notifications"
	"github.com/ca-la/studio-backend/internal/repo"
	"github.com/ca-la/studio-backend/internal/services"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_%d.db", time.Now().UnixNano()))
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
	hub := announce.NewHub(registry, zerolog.Nop())
	notifier := notifications.NewNotifier(registry, hub, zerolog.Nop())
	return Deps{
		Steps: services.NewApprovalStepService(db, notifier, zerolog.Nop()),
		Feed:  &services.NotificationFeedService{DB: db},
		Hub:   hub,
	}
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_HealthMetricsAndFallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDeps(t), testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("request id header not set")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute fallback uses the error envelope
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != "not_found" {
		t.Fatalf("fallback envelope wrong: %s (%v)", w.Body.String(), err)
	}

	// NoMethod fallback
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health = %d", w.Code)
	}
}

func TestRegisterRoutes_APIEndpointsMounted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDeps(t), testConfig())

	// wrong base path misses
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unprefixed path should 404, got %d", w.Code)
	}

	// mounted path reaches the handler (401: no actor header)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/v1/notifications = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authorized list = %d, body %s", w.Code, w.Body.String())
	}
}
