// Package domain defines the persistence models for the studio backend.
// This file contains the supporting entities the event and notification
// core joins against: users, collaborators, designs, collections, comments,
// and the immutable design audit trail.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User is an account holder. Only the fields the core needs for joining and
// rendering are modeled here.
type User struct {
	ID        string         `json:"id"    gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"  gorm:"type:varchar(255);not null"`
	Email     string         `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Collaborator grants a person access to a design or collection. A
// collaborator either maps to a registered user (UserID set) or is known
// only by invitation email (UserEmail set).
type Collaborator struct {
	ID           string         `json:"id" gorm:"type:char(36);primaryKey"`
	DesignID     *string        `json:"design_id,omitempty"     gorm:"type:char(36);index"`
	CollectionID *string        `json:"collection_id,omitempty" gorm:"type:char(36);index"`
	UserID       *string        `json:"user_id,omitempty"       gorm:"type:char(36);index"`
	UserEmail    *string        `json:"user_email,omitempty"    gorm:"type:varchar(255)"`
	Role         string         `json:"role" gorm:"type:varchar(16);not null;default:'VIEW'"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Collaborator.
func (Collaborator) TableName() string { return "collaborators" }

// TeamUser is a user's membership in a team. Unlike a Collaborator it always
// references a registered user.
type TeamUser struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	TeamID    string         `json:"team_id" gorm:"type:char(36);not null;index"`
	UserID    string         `json:"user_id" gorm:"type:char(36);not null;index"`
	Role      string         `json:"role"    gorm:"type:varchar(16);not null;default:'VIEWER'"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for TeamUser.
func (TeamUser) TableName() string { return "team_users" }

// Team groups users collaborating across designs.
type Team struct {
	ID        string         `json:"id"    gorm:"type:char(36);primaryKey"`
	Title     string         `json:"title" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Team.
func (Team) TableName() string { return "teams" }

// Design is an apparel design under review. Its approval steps are rows in
// design_approval_steps ordered by Ordering.
type Design struct {
	ID           string         `json:"id" gorm:"type:char(36);primaryKey"`
	Title        string         `json:"title" gorm:"type:varchar(255);not null"`
	UserID       string         `json:"user_id" gorm:"type:char(36);not null;index"`
	CollectionID *string        `json:"collection_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Design.
func (Design) TableName() string { return "designs" }

// Collection groups designs for submission and costing.
type Collection struct {
	ID        string         `json:"id" gorm:"type:char(36);primaryKey"`
	Title     string         `json:"title" gorm:"type:varchar(255);not null"`
	CreatedBy string         `json:"created_by" gorm:"type:char(36);not null"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Collection.
func (Collection) TableName() string { return "collections" }

// Comment is a threaded remark on a design, annotation, or approval step.
type Comment struct {
	ID        string         `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id" gorm:"type:char(36);not null;index"`
	Text      string         `json:"text" gorm:"type:text;not null"`
	ParentID  *string        `json:"parent_id,omitempty" gorm:"type:char(36)"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Task is a unit of work attached to a design.
type Task struct {
	ID        string         `json:"id" gorm:"type:char(36);primaryKey"`
	Title     string         `json:"title" gorm:"type:varchar(255);not null"`
	DesignID  *string        `json:"design_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tasks" }

// DesignEventType discriminates audit trail entries.
type DesignEventType string

// Audit event types written by the approval step listeners.
const (
	EventStepAssignment DesignEventType = "STEP_ASSIGNMENT"
	EventStepComplete   DesignEventType = "STEP_COMPLETE"
	EventStepReopen     DesignEventType = "STEP_REOPEN"
)

// DesignEvent is an immutable audit trail entry. Assignment events are
// written even when a step is unassigned, in which case TargetID is null.
type DesignEvent struct {
	ID             string          `json:"id" gorm:"type:char(36);primaryKey"`
	Type           DesignEventType `json:"type" gorm:"type:varchar(32);not null;index"`
	ActorID        string          `json:"actor_id" gorm:"type:char(36);not null;index"`
	TargetID       *string         `json:"target_id,omitempty" gorm:"type:char(36)"`
	DesignID       string          `json:"design_id" gorm:"type:char(36);not null;index"`
	ApprovalStepID *string         `json:"approval_step_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName returns the database table name for DesignEvent.
func (DesignEvent) TableName() string { return "design_events" }
