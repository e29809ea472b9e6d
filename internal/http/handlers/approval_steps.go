// Package handlers provides HTTP handler implementations for the public API.
// This file implements the approval-step endpoints. The acting user is
// taken from the X-User-ID header set by the auth proxy; every mutation
// funnels through the approval-step service so the event listeners run.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/services"
)

// Handler bundles the services the API endpoints depend on.
type Handler struct {
	Steps *services.ApprovalStepService
	Feed  *services.NotificationFeedService
}

// New constructs the handler set.
func New(steps *services.ApprovalStepService, feed *services.NotificationFeedService) *Handler {
	return &Handler{Steps: steps, Feed: feed}
}

// actorID extracts the acting user from the request, or fails with 401.
func actorID(c *gin.Context) (string, bool) {
	uid := c.GetHeader("X-User-ID")
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return uid, true
}

// UpdateApprovalStep handles PATCH /approval-steps/:id.
//
// The body is a partial update; a present-but-null collaborator_id or
// team_user_id means "unassign". Listener failures map to:
//   - invalid state / missing BLOCKED reason / empty patch → 400
//   - unknown step → 404
//   - dangling collaborator or team-user reference → 400
func (h *Handler) UpdateApprovalStep(c *gin.Context) {
	actor, okID := actorID(c)
	if !okID {
		return
	}

	var patch domain.StepPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	step, err := h.Steps.UpdateApprovalStep(c.Request.Context(), actor, c.Param("id"), &patch)
	switch {
	case err == nil:
		ok(c, http.StatusOK, step)
	case errors.Is(err, services.ErrStepNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "approval step not found")
	case errors.Is(err, services.ErrEmptyPatch),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrBlockedReasonRequired):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPatch, err.Error())
	case errors.Is(err, services.ErrCollaboratorNotFound),
		errors.Is(err, services.ErrTeamUserNotFound):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "could not update approval step")
	}
}
