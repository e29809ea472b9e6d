// Package services provides application-level orchestration. This file
// implements the approval-step state machine. All business rules
// live in listeners on the step's event registry: a pre-persist listener
// normalizes StartedAt/CompletedAt from the requested state, post-persist
// listeners run the system-side completion and reopen effects, and
// route-level listeners handle user-triggered completion, reopening, and
// assignment. The service orchestrates one transaction per mutation:
// updating → persist → updated → route.updated, with announcements flushed
// only after commit.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
	"github.com/ca-la/studio-backend/internal/events"
	"github.com/ca-la/studio-backend/internal/notifications"
	"github.com/ca-la/studio-backend/internal/repo"
)

// StepRegistry dispatches approval-step domain events.
type StepRegistry = events.Registry[domain.ApprovalStep, *domain.StepPatch]

// ApprovalStepService owns the approval-step mutation path. Every write to
// a step goes through UpdateApprovalStep (or ApplyStepPatch for system
// writes) so that the registered listeners always run.
type ApprovalStepService struct {
	DB       *gorm.DB
	Registry *StepRegistry
	Notifier *notifications.Notifier
	Log      zerolog.Logger
}

// NewApprovalStepService builds the service and registers its listeners on
// a fresh registry.
func NewApprovalStepService(db *gorm.DB, notifier *notifications.Notifier, log zerolog.Logger) *ApprovalStepService {
	s := &ApprovalStepService{
		DB:       db,
		Registry: events.NewRegistry[domain.ApprovalStep, *domain.StepPatch]("approvalStep"),
		Notifier: notifier,
		Log:      log,
	}
	s.registerListeners()
	return s
}

func (s *ApprovalStepService) registerListeners() {
	s.Registry.OnUpdating(s.normalizeStateListener)
	s.Registry.OnUpdatedField(domain.FieldState, s.statePersisted)
	s.Registry.OnRouteUpdatedField(domain.FieldState, s.stateChangedByUser)
	s.Registry.OnRouteUpdatedField(domain.FieldCollaboratorID, s.collaboratorAssigned)
	s.Registry.OnRouteUpdatedField(domain.FieldTeamUserID, s.teamUserAssigned)
}

// NormalizeStatePatch derives StartedAt/CompletedAt from the state carried
// by the patch, preserving the step timestamp invariants. It is pure given
// (before, patch, now): CURRENT keeps an existing StartedAt or stamps now
// and clears CompletedAt; COMPLETED keeps an existing StartedAt or stamps
// now and stamps CompletedAt; every other state clears both. A patch
// without a state is left untouched.
func NormalizeStatePatch(before *domain.ApprovalStep, patch *domain.StepPatch, now time.Time) {
	if patch.State == nil {
		return
	}
	switch *patch.State {
	case domain.StepCurrent:
		started := now
		if before.StartedAt != nil {
			started = *before.StartedAt
		}
		patch.StartedAt = domain.NullableOf(started)
		patch.CompletedAt = domain.NullableNull[time.Time]()
	case domain.StepCompleted:
		started := now
		if before.StartedAt != nil {
			started = *before.StartedAt
		}
		patch.StartedAt = domain.NullableOf(started)
		patch.CompletedAt = domain.NullableOf(now)
	default:
		patch.StartedAt = domain.NullableNull[time.Time]()
		patch.CompletedAt = domain.NullableNull[time.Time]()
	}
}

// normalizeStateListener validates and normalizes a state-carrying patch
// before it is persisted. This runs on dao.updating, the only point where
// the patch is still mutable.
func (s *ApprovalStepService) normalizeStateListener(_ *gorm.DB, before domain.ApprovalStep, patch *domain.StepPatch) error {
	if patch.State == nil {
		return nil
	}
	if !patch.State.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, *patch.State)
	}
	if *patch.State == domain.StepBlocked {
		reason := before.Reason
		if patch.Reason != nil {
			reason = *patch.Reason
		}
		if reason == "" {
			return ErrBlockedReasonRequired
		}
	}
	NormalizeStatePatch(&before, patch, time.Now().UTC())
	return nil
}

// statePersisted runs on dao.updated.state, regardless of actor: completing
// a step advances the design's workflow, reopening a completed step winds
// it back.
func (s *ApprovalStepService) statePersisted(tx *gorm.DB, before, updated domain.ApprovalStep) error {
	if updated.State == domain.StepCompleted {
		return s.advanceDependents(tx, updated)
	}
	if before.State == domain.StepCompleted && updated.State == domain.StepCurrent {
		return s.rewindDependents(tx, updated)
	}
	return nil
}

// advanceDependents moves the next unstarted (or blocked) step of the
// design to CURRENT through the dao-level path, so its own listeners run.
func (s *ApprovalStepService) advanceDependents(tx *gorm.DB, completed domain.ApprovalStep) error {
	next, err := repo.NextUnstartedStep(tx, completed.DesignID, completed.Ordering)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	state := domain.StepCurrent
	_, err = s.ApplyStepPatch(tx, next.ID, &domain.StepPatch{State: &state})
	return err
}

// rewindDependents reverts any CURRENT step after the reopened one back to
// UNSTARTED.
func (s *ApprovalStepService) rewindDependents(tx *gorm.DB, reopened domain.ApprovalStep) error {
	current, err := repo.CurrentStepsAfter(tx, reopened.DesignID, reopened.Ordering)
	if err != nil {
		return err
	}
	for _, step := range current {
		state := domain.StepUnstarted
		if _, err := s.ApplyStepPatch(tx, step.ID, &domain.StepPatch{State: &state}); err != nil {
			return err
		}
	}
	return nil
}

// stateChangedByUser runs on route.updated.state. Unlike the dao-level
// listener it only treats an explicit CURRENT→COMPLETED transition as a
// user completion (a replayed or system-written COMPLETED does not notify)
// and mirrors the COMPLETED→CURRENT reopen with the actor recorded.
func (s *ApprovalStepService) stateChangedByUser(tx *gorm.DB, actorID string, before, updated domain.ApprovalStep) error {
	switch {
	case before.State == domain.StepCurrent && updated.State == domain.StepCompleted:
		return s.userCompletedStep(tx, actorID, updated)
	case before.State == domain.StepCompleted && updated.State == domain.StepCurrent:
		return s.userReopenedStep(tx, actorID, updated)
	}
	return nil
}

func (s *ApprovalStepService) userCompletedStep(tx *gorm.DB, actorID string, step domain.ApprovalStep) error {
	if _, err := repo.CreateDesignEvent(tx, &domain.DesignEvent{
		Type:           domain.EventStepComplete,
		ActorID:        actorID,
		DesignID:       step.DesignID,
		ApprovalStepID: &step.ID,
	}); err != nil {
		return err
	}

	design, err := repo.GetDesign(tx, step.DesignID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.Notifier.Send(tx, domain.NotificationApprovalStepCompletion, actorID,
		domain.RecipientUser(design.UserID),
		notifications.Data{
			notifications.FieldDesign:       step.DesignID,
			notifications.FieldApprovalStep: step.ID,
		})
	return err
}

func (s *ApprovalStepService) userReopenedStep(tx *gorm.DB, actorID string, step domain.ApprovalStep) error {
	_, err := repo.CreateDesignEvent(tx, &domain.DesignEvent{
		Type:           domain.EventStepReopen,
		ActorID:        actorID,
		DesignID:       step.DesignID,
		ApprovalStepID: &step.ID,
	})
	return err
}

// collaboratorAssigned runs on route.updated.collaboratorId. The referenced
// collaborator is resolved inside the same transaction; a dangling id fails
// the whole mutation. An audit event is written even for an unassignment;
// the assignment notification is sent only when a concrete assignee was
// resolved.
func (s *ApprovalStepService) collaboratorAssigned(tx *gorm.DB, actorID string, _, updated domain.ApprovalStep) error {
	var collab *domain.Collaborator
	if updated.CollaboratorID != nil {
		var err error
		collab, err = repo.GetCollaborator(tx, *updated.CollaboratorID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrCollaboratorNotFound, *updated.CollaboratorID)
		}
		if err != nil {
			return err
		}
	}

	ev := &domain.DesignEvent{
		Type:           domain.EventStepAssignment,
		ActorID:        actorID,
		DesignID:       updated.DesignID,
		ApprovalStepID: &updated.ID,
	}
	if collab != nil {
		ev.TargetID = collab.UserID
	}
	if _, err := repo.CreateDesignEvent(tx, ev); err != nil {
		return err
	}

	if collab == nil {
		return nil
	}
	rcpt := domain.RecipientCollaborator(collab.ID)
	if collab.UserID != nil {
		rcpt = domain.RecipientUser(*collab.UserID)
	}
	_, err := s.Notifier.Send(tx, domain.NotificationApprovalStepAssignment, actorID, rcpt,
		notifications.Data{
			notifications.FieldDesign:       updated.DesignID,
			notifications.FieldApprovalStep: updated.ID,
			notifications.FieldCollaborator: collab.ID,
		})
	return err
}

// teamUserAssigned mirrors collaboratorAssigned for team-user assignment.
func (s *ApprovalStepService) teamUserAssigned(tx *gorm.DB, actorID string, _, updated domain.ApprovalStep) error {
	var teamUser *domain.TeamUser
	if updated.TeamUserID != nil {
		var err error
		teamUser, err = repo.GetTeamUser(tx, *updated.TeamUserID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrTeamUserNotFound, *updated.TeamUserID)
		}
		if err != nil {
			return err
		}
	}

	ev := &domain.DesignEvent{
		Type:           domain.EventStepAssignment,
		ActorID:        actorID,
		DesignID:       updated.DesignID,
		ApprovalStepID: &updated.ID,
	}
	if teamUser != nil {
		ev.TargetID = &teamUser.UserID
	}
	if _, err := repo.CreateDesignEvent(tx, ev); err != nil {
		return err
	}

	if teamUser == nil {
		return nil
	}
	_, err := s.Notifier.Send(tx, domain.NotificationApprovalStepAssignment, actorID,
		domain.RecipientTeamUser(teamUser.ID),
		notifications.Data{
			notifications.FieldDesign:       updated.DesignID,
			notifications.FieldApprovalStep: updated.ID,
		})
	return err
}

// ApplyStepPatch runs the dao-level mutation path inside an existing
// transaction: updating listeners, persistence, then updated listeners with
// the frozen patch. System-side effects use this path so their writes run
// the same rules as user writes, minus the route-level listeners.
func (s *ApprovalStepService) ApplyStepPatch(tx *gorm.DB, stepID string, patch *domain.StepPatch) (*domain.ApprovalStep, error) {
	before, err := repo.GetApprovalStep(tx, stepID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStepNotFound
		}
		return nil, err
	}

	if err := s.Registry.FireUpdating(tx, *before, patch); err != nil {
		return nil, err
	}
	updated, err := repo.UpdateApprovalStep(tx, stepID, patch)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStepNotFound
		}
		return nil, err
	}
	if err := s.Registry.FireUpdated(tx, *before, *updated, patch.FieldNames()); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateApprovalStep applies a user-requested patch to a step.
//
// The whole mutation (normalization, persistence, dao-level and
// route-level listeners, audit rows, notification rows) runs in one
// transaction; any listener error rolls everything back. Announcements for
// notifications created along the way are flushed only after the commit.
func (s *ApprovalStepService) UpdateApprovalStep(ctx context.Context, actorID, stepID string, patch *domain.StepPatch) (*domain.ApprovalStep, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	ctx, pending := notifications.WithPending(ctx)

	var out *domain.ApprovalStep
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := repo.GetApprovalStep(tx, stepID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrStepNotFound
			}
			return err
		}

		out, err = s.ApplyStepPatch(tx, stepID, patch)
		if err != nil {
			return err
		}
		return s.Registry.FireRouteUpdated(tx, actorID, *before, *out, patch.FieldNames())
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.FlushAnnouncements(ctx, s.DB, pending)
	return out, nil
}
