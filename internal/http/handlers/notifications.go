// Package handlers provides HTTP handler implementations for the public API.
// This file implements the notification feed endpoints and the real-time
// delivery stream.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ca-la/studio-backend/internal/announce"
	"github.com/ca-la/studio-backend/internal/services"
	"github.com/ca-la/studio-backend/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListNotifications handles GET /notifications?unread=true&page=&page_size=.
func (h *Handler) ListNotifications(c *gin.Context) {
	uid, okID := actorID(c)
	if !okID {
		return
	}

	page := utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	size := utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	unreadOnly := c.Query("unread") == "true"

	out, err := h.Feed.List(c.Request.Context(), uid, unreadOnly, page, size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list notifications")
		return
	}
	ok(c, http.StatusOK, out)
}

// UnreadNotificationCount handles GET /notifications/unread-count.
func (h *Handler) UnreadNotificationCount(c *gin.Context) {
	uid, okID := actorID(c)
	if !okID {
		return
	}
	n, err := h.Feed.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not count notifications")
		return
	}
	ok(c, http.StatusOK, gin.H{"unread": n})
}

// MarkNotificationRead handles PUT /notifications/:id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	uid, okID := actorID(c)
	if !okID {
		return
	}
	err := h.Feed.MarkRead(c.Request.Context(), uid, c.Param("id"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not mark notification read")
	}
}

// MarkAllNotificationsRead handles PUT /notifications/read.
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	uid, okID := actorID(c)
	if !okID {
		return
	}
	if err := h.Feed.MarkAllRead(c.Request.Context(), uid); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not mark notifications read")
		return
	}
	noContent(c)
}

// ArchiveNotification handles PUT /notifications/:id/archive.
func (h *Handler) ArchiveNotification(c *gin.Context) {
	uid, okID := actorID(c)
	if !okID {
		return
	}
	err := h.Feed.Archive(c.Request.Context(), uid, c.Param("id"))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not archive notification")
	}
}

// StreamNotifications handles GET /notifications/stream: a server-sent
// events stream of delivery messages for the acting user, fed by the
// announce hub. The connection stays open until the client goes away.
func StreamNotifications(hub *announce.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, okID := actorID(c)
		if !okID {
			return
		}

		sub := hub.Subscribe(uid)
		defer hub.Unsubscribe(sub)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		c.Stream(func(io.Writer) bool {
			select {
			case msg, open := <-sub.Messages():
				if !open {
					return false
				}
				c.SSEvent("notification", msg)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
