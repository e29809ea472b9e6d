// Package notifications implements the notification component framework.
// This file defines the per-type components and the registry that maps a
// notification type to its schema and message builder.
package notifications

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ca-la/studio-backend/internal/domain"
)

// ErrUnsupportedType indicates a notification whose type has no registered
// component and is not a known retired type: a configuration defect, not a
// data condition.
var ErrUnsupportedType = errors.New("unsupported notification type")

// MessageFunc renders a joined notification into its delivery-ready message.
// It must be pure: no I/O beyond the data already joined onto full. A nil
// result means the notification is no longer renderable (e.g. its design was
// deleted) and should be skipped, not treated as a failure.
type MessageFunc func(l Links, full *domain.FullNotification) *domain.NotificationMessage

// Component couples one notification type's field schema with its message
// builder.
type Component struct {
	Type    domain.NotificationType
	Schema  Schema
	Message MessageFunc
}

// Registry maps notification types to components. It is constructed once at
// process start and passed by reference wherever notifications are sent or
// rendered; there is no load-order-dependent global registration.
type Registry struct {
	links      Links
	log        zerolog.Logger
	components map[domain.NotificationType]Component
	deprecated map[domain.NotificationType]struct{}
}

// NewRegistry builds the component registry. appHost is the externally
// reachable base URL used for message links.
func NewRegistry(appHost string, log zerolog.Logger) *Registry {
	r := &Registry{
		links:      Links{Host: appHost},
		log:        log,
		components: map[domain.NotificationType]Component{},
		deprecated: map[domain.NotificationType]struct{}{
			domain.NotificationAnnotationCreate:  {},
			domain.NotificationMeasurementCreate: {},
			domain.NotificationSectionCreate:     {},
			domain.NotificationSectionUpdate:     {},
			domain.NotificationSectionDelete:     {},
		},
	}

	for _, c := range []Component{
		{
			Type:    domain.NotificationApprovalStepAssignment,
			Schema:  Schema{Required: []Field{FieldDesign, FieldApprovalStep}, Optional: []Field{FieldCollaborator}},
			Message: stepAssignmentMessage,
		},
		{
			Type:    domain.NotificationApprovalStepCompletion,
			Schema:  Schema{Required: []Field{FieldDesign, FieldApprovalStep}},
			Message: stepCompletionMessage,
		},
		{
			Type:    domain.NotificationApprovalStepComment,
			Schema:  Schema{Required: []Field{FieldDesign, FieldApprovalStep, FieldComment}},
			Message: stepCommentMessage,
		},
		{
			Type:    domain.NotificationAnnotationComment,
			Schema:  Schema{Required: []Field{FieldDesign, FieldAnnotation, FieldComment}},
			Message: annotationCommentMessage,
		},
		{
			Type:    domain.NotificationCollectionSubmit,
			Schema:  Schema{Required: []Field{FieldCollection}},
			Message: collectionSubmitMessage,
		},
		{
			Type:    domain.NotificationCommitCostInputs,
			Schema:  Schema{Required: []Field{FieldCollection}},
			Message: commitCostInputsMessage,
		},
		{
			Type:    domain.NotificationInviteCollaborator,
			Schema:  Schema{Required: []Field{FieldCollaborator}, Optional: []Field{FieldDesign, FieldCollection, FieldTeam}},
			Message: inviteCollaboratorMessage,
		},
		{
			Type:    domain.NotificationTaskAssignment,
			Schema:  Schema{Required: []Field{FieldTask}, Optional: []Field{FieldDesign}},
			Message: taskAssignmentMessage,
		},
	} {
		r.components[c.Type] = c
	}
	return r
}

// Component returns the component for typ, if registered.
func (r *Registry) Component(typ domain.NotificationType) (Component, bool) {
	c, ok := r.components[typ]
	return c, ok
}

// Deprecated reports whether typ is a known retired type.
func (r *Registry) Deprecated(typ domain.NotificationType) bool {
	_, ok := r.deprecated[typ]
	return ok
}

// Message renders full through its type's component.
//
// A nil message with a nil error means "nothing to deliver": either the
// type is retired (logged as a warning) or the component found the joined
// data it needs missing. An unrecognized type returns ErrUnsupportedType
// naming the notification id and type.
func (r *Registry) Message(full *domain.FullNotification) (*domain.NotificationMessage, error) {
	if r.Deprecated(full.Type) {
		r.log.Warn().
			Str("notification_id", full.ID).
			Str("type", string(full.Type)).
			Msg("skipping deprecated notification type")
		return nil, nil
	}
	c, ok := r.components[full.Type]
	if !ok {
		return nil, fmt.Errorf("%w: notification %s has type %q", ErrUnsupportedType, full.ID, full.Type)
	}
	return c.Message(r.links, full), nil
}
