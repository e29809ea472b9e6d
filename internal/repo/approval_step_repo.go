// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ApprovalStep model. All functions accept a *gorm.DB handle that may be a
// plain connection or a transaction-bound handle; the event orchestration
// layer always passes the latter.
package repo

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ca-la/studio-backend/internal/domain"
)

// GetApprovalStep fetches a step by ID, or ErrNotFound.
func GetApprovalStep(db *gorm.DB, id string) (*domain.ApprovalStep, error) {
	var step domain.ApprovalStep
	if err := db.Where("id = ?", id).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &step, nil
}

// UpdateApprovalStep applies a partial update and returns the resolved row.
// Only columns present in the patch are written.
func UpdateApprovalStep(db *gorm.DB, id string, patch *domain.StepPatch) (*domain.ApprovalStep, error) {
	cols := patch.Columns()
	if len(cols) > 0 {
		res := db.Model(&domain.ApprovalStep{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return GetApprovalStep(db, id)
}

// ListApprovalStepsByDesign returns a design's steps ordered by Ordering.
func ListApprovalStepsByDesign(db *gorm.DB, designID string) ([]domain.ApprovalStep, error) {
	var out []domain.ApprovalStep
	err := db.Where("design_id = ?", designID).
		Order("ordering ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// NextUnstartedStep returns the first step after ordering whose state is
// UNSTARTED or BLOCKED, or ErrNotFound when the design has none left.
func NextUnstartedStep(db *gorm.DB, designID string, ordering int) (*domain.ApprovalStep, error) {
	var step domain.ApprovalStep
	err := db.Where("design_id = ? AND ordering > ? AND state IN ?",
		designID, ordering, []domain.StepState{domain.StepUnstarted, domain.StepBlocked}).
		Order("ordering ASC").
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// CurrentStepsAfter returns the steps after ordering that are CURRENT,
// ordered ascending. Used when a completed step is reopened.
func CurrentStepsAfter(db *gorm.DB, designID string, ordering int) ([]domain.ApprovalStep, error) {
	var out []domain.ApprovalStep
	err := db.Where("design_id = ? AND ordering > ? AND state = ?",
		designID, ordering, domain.StepCurrent).
		Order("ordering ASC").
		Find(&out).Error
	return out, err
}
