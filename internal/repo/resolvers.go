// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the narrow lookups the event listeners
// use to validate foreign keys and denormalize titles, plus the immutable
// design audit trail.
package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
)

func first[T any](db *gorm.DB, id string) (*T, error) {
	var row T
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// GetUser fetches a user by ID, or ErrNotFound.
func GetUser(db *gorm.DB, id string) (*domain.User, error) {
	return first[domain.User](db, id)
}

// GetCollaborator fetches a collaborator by ID, or ErrNotFound.
func GetCollaborator(db *gorm.DB, id string) (*domain.Collaborator, error) {
	return first[domain.Collaborator](db, id)
}

// GetTeamUser fetches a team membership by ID, or ErrNotFound.
func GetTeamUser(db *gorm.DB, id string) (*domain.TeamUser, error) {
	return first[domain.TeamUser](db, id)
}

// GetTeam fetches a team by ID, or ErrNotFound.
func GetTeam(db *gorm.DB, id string) (*domain.Team, error) {
	return first[domain.Team](db, id)
}

// GetDesign fetches a design by ID, or ErrNotFound.
func GetDesign(db *gorm.DB, id string) (*domain.Design, error) {
	return first[domain.Design](db, id)
}

// GetCollection fetches a collection by ID, or ErrNotFound.
func GetCollection(db *gorm.DB, id string) (*domain.Collection, error) {
	return first[domain.Collection](db, id)
}

// GetComment fetches a comment by ID, or ErrNotFound.
func GetComment(db *gorm.DB, id string) (*domain.Comment, error) {
	return first[domain.Comment](db, id)
}

// GetTask fetches a task by ID, or ErrNotFound.
func GetTask(db *gorm.DB, id string) (*domain.Task, error) {
	return first[domain.Task](db, id)
}

// CreateDesignEvent appends an audit trail entry. Audit rows are immutable;
// there is no update or delete counterpart.
func CreateDesignEvent(db *gorm.DB, ev *domain.DesignEvent) (*domain.DesignEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := db.Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListDesignEvents returns a design's audit trail, oldest first.
func ListDesignEvents(db *gorm.DB, designID string) ([]domain.DesignEvent, error) {
	var out []domain.DesignEvent
	err := db.Where("design_id = ?", designID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
