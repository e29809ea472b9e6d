// Package notifications implements the notification component framework:
// per-type field schemas checked at construction time, the transactional
// Send operation with its dedup-before-insert guarantee, message rendering,
// and the post-commit announcement queue.
package notifications

import (
	"errors"
	"fmt"

	"github.com/ca-la/studio-backend/internal/domain"
)

// Field names the foreign keys a notification type may carry. The schema of
// each type declares which of these are required and which are optional.
type Field string

// The common notification field vocabulary.
const (
	FieldDesign       Field = "designId"
	FieldCollection   Field = "collectionId"
	FieldApprovalStep Field = "approvalStepId"
	FieldComment      Field = "commentId"
	FieldAnnotation   Field = "annotationId"
	FieldMeasurement  Field = "measurementId"
	FieldTask         Field = "taskId"
	FieldTeam         Field = "teamId"
	FieldCollaborator Field = "collaboratorId"
)

// Data carries the foreign keys supplied for one notification, keyed by
// field name. Values are entity ids.
type Data map[Field]string

// Schema declares the required and optional fields of one notification type.
// Send validates supplied Data against the type's schema before any row is
// built, so a schema violation never reaches storage.
type Schema struct {
	Required []Field
	Optional []Field
}

// Schema violation errors. Both wrap enough context to name the offending
// type and field.
var (
	ErrMissingField = errors.New("missing required notification field")
	ErrUnknownField = errors.New("field not in notification schema")
)

// Validate checks d against the schema for the named type.
func (s Schema) Validate(typ domain.NotificationType, d Data) error {
	for _, f := range s.Required {
		if d[f] == "" {
			return fmt.Errorf("%w: %s requires %s", ErrMissingField, typ, f)
		}
	}
	for f := range d {
		if !s.allows(f) {
			return fmt.Errorf("%w: %s does not accept %s", ErrUnknownField, typ, f)
		}
	}
	return nil
}

func (s Schema) allows(f Field) bool {
	for _, r := range s.Required {
		if r == f {
			return true
		}
	}
	for _, o := range s.Optional {
		if o == f {
			return true
		}
	}
	return false
}

// apply copies the supplied data onto the notification row.
func apply(n *domain.Notification, d Data) {
	for f, v := range d {
		v := v
		switch f {
		case FieldDesign:
			n.DesignID = &v
		case FieldCollection:
			n.CollectionID = &v
		case FieldApprovalStep:
			n.ApprovalStepID = &v
		case FieldComment:
			n.CommentID = &v
		case FieldAnnotation:
			n.AnnotationID = &v
		case FieldMeasurement:
			n.MeasurementID = &v
		case FieldTask:
			n.TaskID = &v
		case FieldTeam:
			n.TeamID = &v
		case FieldCollaborator:
			n.CollaboratorID = &v
		}
	}
}
