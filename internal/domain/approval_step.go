// Package domain defines the persistence models for designs, approval steps,
// notifications, and their collaborators. These types are mapped with GORM
// and form the core data layer of the studio backend.
package domain

import (
	"encoding/json"
	"time"
)

// StepState enumerates the lifecycle states of an approval step.
type StepState string

// Approval step states. BLOCKED additionally requires a non-empty Reason.
const (
	StepBlocked   StepState = "BLOCKED"
	StepUnstarted StepState = "UNSTARTED"
	StepCurrent   StepState = "CURRENT"
	StepCompleted StepState = "COMPLETED"
	StepSkip      StepState = "SKIP"
)

// IsValid reports whether s is a known step state.
func (s StepState) IsValid() bool {
	switch s {
	case StepBlocked, StepUnstarted, StepCurrent, StepCompleted, StepSkip:
		return true
	}
	return false
}

// StepType enumerates the kinds of approval steps a design goes through.
type StepType string

// Approval step types, in the order they typically occur.
const (
	StepTypeCheckout        StepType = "CHECKOUT"
	StepTypeTechnicalDesign StepType = "TECHNICAL_DESIGN"
	StepTypeSample          StepType = "SAMPLE"
	StepTypeProduction      StepType = "PRODUCTION"
)

// ApprovalStep represents one stage in a design's review workflow.
//
// Timestamp invariants, maintained by the pre-persist normalization listener:
//   - BLOCKED/UNSTARTED/SKIP: StartedAt and CompletedAt are both null.
//   - CURRENT: StartedAt is set, CompletedAt is null.
//   - COMPLETED: both StartedAt and CompletedAt are set.
type ApprovalStep struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	DesignID       string     `json:"design_id"       gorm:"type:char(36);not null;index:idx_design_steps,priority:1"`
	Title          string     `json:"title"           gorm:"type:varchar(255);not null"`
	Ordering       int        `json:"ordering"        gorm:"not null;index:idx_design_steps,priority:2"`
	Type           StepType   `json:"type"            gorm:"type:varchar(32);not null"`
	CollaboratorID *string    `json:"collaborator_id" gorm:"type:char(36)"`
	TeamUserID     *string    `json:"team_user_id"    gorm:"type:char(36)"`
	State          StepState  `json:"state"           gorm:"type:varchar(16);not null;default:'UNSTARTED'"`
	Reason         string     `json:"reason"          gorm:"type:text;not null;default:''"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName returns the database table name for ApprovalStep.
func (ApprovalStep) TableName() string { return "design_approval_steps" }

// Nullable distinguishes "absent from the patch" from "explicitly set to
// null" in partial updates. Set reports whether the field was supplied at
// all; Valid reports whether a non-null value was supplied.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// NullableOf returns a Nullable carrying v.
func NullableOf[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Valid: true, Value: v}
}

// NullableNull returns a Nullable that was explicitly set to null.
func NullableNull[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// Ptr returns the value as a pointer, or nil when absent or null.
func (n Nullable[T]) Ptr() *T {
	if !n.Set || !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// UnmarshalJSON implements json.Unmarshaler. A present key always marks the
// field Set; a JSON null leaves Valid false.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Patch field names, as used for field-narrowed event dispatch.
const (
	FieldTitle          = "title"
	FieldOrdering       = "ordering"
	FieldState          = "state"
	FieldReason         = "reason"
	FieldDueAt          = "dueAt"
	FieldStartedAt      = "startedAt"
	FieldCompletedAt    = "completedAt"
	FieldCollaboratorID = "collaboratorId"
	FieldTeamUserID     = "teamUserId"
)

// StepPatch is a partial update to an approval step. Nil / unset fields are
// left untouched by the persistence layer. StartedAt and CompletedAt are
// derived fields: callers should leave them unset and let the pre-persist
// normalization listener fill them in from State.
type StepPatch struct {
	Title          *string              `json:"title,omitempty"`
	Ordering       *int                 `json:"ordering,omitempty"`
	State          *StepState           `json:"state,omitempty"`
	Reason         *string              `json:"reason,omitempty"`
	DueAt          Nullable[time.Time] `json:"due_at"`
	StartedAt      Nullable[time.Time] `json:"-"`
	CompletedAt    Nullable[time.Time] `json:"-"`
	CollaboratorID Nullable[string]    `json:"collaborator_id"`
	TeamUserID     Nullable[string]    `json:"team_user_id"`
}

// FieldNames lists the fields present in the patch, in a stable order. The
// event registry uses this to fire field-narrowed listeners.
func (p *StepPatch) FieldNames() []string {
	var out []string
	if p.Title != nil {
		out = append(out, FieldTitle)
	}
	if p.Ordering != nil {
		out = append(out, FieldOrdering)
	}
	if p.State != nil {
		out = append(out, FieldState)
	}
	if p.Reason != nil {
		out = append(out, FieldReason)
	}
	if p.DueAt.Set {
		out = append(out, FieldDueAt)
	}
	if p.StartedAt.Set {
		out = append(out, FieldStartedAt)
	}
	if p.CompletedAt.Set {
		out = append(out, FieldCompletedAt)
	}
	if p.CollaboratorID.Set {
		out = append(out, FieldCollaboratorID)
	}
	if p.TeamUserID.Set {
		out = append(out, FieldTeamUserID)
	}
	return out
}

// IsEmpty reports whether the patch carries no fields at all.
func (p *StepPatch) IsEmpty() bool { return len(p.FieldNames()) == 0 }

// Columns converts the patch into a column→value map suitable for
// gorm.DB.Updates. Only fields present in the patch appear in the map.
func (p *StepPatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Ordering != nil {
		cols["ordering"] = *p.Ordering
	}
	if p.State != nil {
		cols["state"] = *p.State
	}
	if p.Reason != nil {
		cols["reason"] = *p.Reason
	}
	if p.DueAt.Set {
		cols["due_at"] = p.DueAt.Ptr()
	}
	if p.StartedAt.Set {
		cols["started_at"] = p.StartedAt.Ptr()
	}
	if p.CompletedAt.Set {
		cols["completed_at"] = p.CompletedAt.Ptr()
	}
	if p.CollaboratorID.Set {
		cols["collaborator_id"] = p.CollaboratorID.Ptr()
	}
	if p.TeamUserID.Set {
		cols["team_user_id"] = p.TeamUserID.Ptr()
	}
	return cols
}
