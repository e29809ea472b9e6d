// Package domain defines the persistence models for the studio backend.
// This file contains the notification envelope shared by every concrete
// notification type, plus the rendered message contract.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType is the discriminant of the notification tagged union.
type NotificationType string

// Active notification types.
const (
	NotificationAnnotationComment      NotificationType = "ANNOTATION_COMMENT_CREATE"
	NotificationApprovalStepAssignment NotificationType = "APPROVAL_STEP_ASSIGNMENT"
	NotificationApprovalStepComment    NotificationType = "APPROVAL_STEP_COMMENT_CREATE"
	NotificationApprovalStepCompletion NotificationType = "APPROVAL_STEP_COMPLETION"
	NotificationCollectionSubmit       NotificationType = "COLLECTION_SUBMIT"
	NotificationCommitCostInputs       NotificationType = "COMMIT_COST_INPUTS"
	NotificationInviteCollaborator     NotificationType = "INVITE_COLLABORATOR"
	NotificationTaskAssignment         NotificationType = "TASK_ASSIGNMENT"
)

// Retired notification types. Rows of these types may still exist; they are
// no longer renderable and no longer produced.
const (
	NotificationAnnotationCreate  NotificationType = "ANNOTATION_CREATE"
	NotificationMeasurementCreate NotificationType = "MEASUREMENT_CREATE"
	NotificationSectionCreate     NotificationType = "create-section"
	NotificationSectionUpdate     NotificationType = "update-section"
	NotificationSectionDelete     NotificationType = "delete-section"
)

// Notification is the shared envelope of every concrete notification type.
// Exactly one of RecipientUserID, RecipientCollaboratorID, RecipientTeamUserID
// is populated; which foreign keys are required is dictated by the type's
// schema in the notifications package.
//
// Fields:
//   - ID: UUID primary key.
//   - Type: discriminant selecting the rendering component.
//   - ActorUserID: the user whose action produced the notification; never
//     equal to RecipientUserID.
//   - ReadAt / SentEmailAt / ArchivedAt: recipient-side lifecycle marks.
//   - DeletedAt: soft-delete marker; dedup collapsing soft-deletes the
//     superseded row.
type Notification struct {
	ID          string           `json:"id"   gorm:"type:char(36);primaryKey"`
	Type        NotificationType `json:"type" gorm:"type:varchar(64);not null;index"`
	ActorUserID string           `json:"actor_user_id" gorm:"type:char(36);not null;index"`

	RecipientUserID         *string `json:"recipient_user_id,omitempty"         gorm:"type:char(36);index:idx_notifications_recipient"`
	RecipientCollaboratorID *string `json:"recipient_collaborator_id,omitempty" gorm:"type:char(36)"`
	RecipientTeamUserID     *string `json:"recipient_team_user_id,omitempty"    gorm:"type:char(36)"`

	DesignID       *string `json:"design_id,omitempty"        gorm:"type:char(36);index"`
	CollectionID   *string `json:"collection_id,omitempty"    gorm:"type:char(36)"`
	ApprovalStepID *string `json:"approval_step_id,omitempty" gorm:"type:char(36)"`
	CommentID      *string `json:"comment_id,omitempty"       gorm:"type:char(36)"`
	AnnotationID   *string `json:"annotation_id,omitempty"    gorm:"type:char(36)"`
	MeasurementID  *string `json:"measurement_id,omitempty"   gorm:"type:char(36)"`
	TaskID         *string `json:"task_id,omitempty"          gorm:"type:char(36)"`
	TeamID         *string `json:"team_id,omitempty"          gorm:"type:char(36)"`
	CollaboratorID *string `json:"collaborator_id,omitempty"  gorm:"type:char(36)"`

	ReadAt      *time.Time     `json:"read_at,omitempty"`
	SentEmailAt *time.Time     `json:"sent_email_at,omitempty"`
	ArchivedAt  *time.Time     `json:"archived_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
	DeletedAt   gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Recipient addresses a notification by exactly one of the three recipient
// identifiers. The zero value is invalid.
type Recipient struct {
	UserID         *string
	CollaboratorID *string
	TeamUserID     *string
}

// RecipientUser addresses a recipient by user id.
func RecipientUser(id string) Recipient { return Recipient{UserID: &id} }

// RecipientCollaborator addresses a recipient by collaborator id, for
// collaborators known only by email.
func RecipientCollaborator(id string) Recipient { return Recipient{CollaboratorID: &id} }

// RecipientTeamUser addresses a recipient by team-user id.
func RecipientTeamUser(id string) Recipient { return Recipient{TeamUserID: &id} }

// FullNotification is a notification with the joined data the message
// builders need, denormalized by the persistence layer. Joined titles are
// nil when the referenced row is absent or soft-deleted, which the builders
// treat as "no longer renderable".
type FullNotification struct {
	Notification

	// DeliveryUserID is the user the notification reaches in-app: the
	// recipient user directly, or the member behind a team-user recipient.
	// Nil for email-only collaborator recipients.
	DeliveryUserID *string

	ActorName       string
	DesignTitle     *string
	CollectionTitle *string
	StepTitle       *string
	CommentText     *string
	TaskTitle       *string
	TeamTitle       *string
}

// MessageAttachment is an excerpt attached to a rendered notification,
// e.g. the comment text a comment notification refers to.
type MessageAttachment struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// NotificationMessage is the rendered, delivery-ready form of a
// notification, produced by the notification component registry.
type NotificationMessage struct {
	Title       string              `json:"title"`
	Text        string              `json:"text"`
	HTML        string              `json:"html"`
	Attachments []MessageAttachment `json:"attachments"`
	Location    []string            `json:"location"`
	Link        string              `json:"link"`
	ImageURL    string              `json:"image_url,omitempty"`
	Type        NotificationType    `json:"type"`
}
