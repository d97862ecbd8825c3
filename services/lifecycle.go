package services

import (
	"fmt"
	"math"
	"time"

	"fieldops-backend/models"
)

// ValidateStageTemplate enforces the stage-weight invariant: every weight in
// (0,1] and the template summing to 1.0 within tolerance. A violation is a
// programming or template error, not user input, hence InvariantViolation.
func ValidateStageTemplate(stages []models.Stage) error {
	if len(stages) == 0 {
		return models.NewAppError(models.ErrInvariantViolation, "stage template must contain at least one stage")
	}

	seen := make(map[string]bool, len(stages))
	var sum float64
	for _, s := range stages {
		if s.Name == "" {
			return models.NewAppError(models.ErrInvariantViolation, "stage template contains an unnamed stage")
		}
		if seen[s.Name] {
			return models.NewAppError(models.ErrInvariantViolation,
				fmt.Sprintf("stage template contains duplicate stage %q", s.Name))
		}
		seen[s.Name] = true
		if s.Weight <= 0 || s.Weight > 1 {
			return models.NewAppError(models.ErrInvariantViolation,
				fmt.Sprintf("stage %q has weight %v outside (0,1]", s.Name, s.Weight))
		}
		sum += s.Weight
	}

	if math.Abs(sum-1.0) > models.StageWeightEpsilon {
		return models.NewAppError(models.ErrInvariantViolation,
			fmt.Sprintf("stage weights sum to %v, expected 1.0", sum))
	}
	return nil
}

// CompleteStage returns a new work order with the named stage marked
// complete and the evidence attached. The input snapshot is never mutated.
// Status and completed date are re-derived; the completed date is set only
// on the transition into finalized.
func CompleteStage(wo *models.WorkOrder, stageName string, evidence []models.Photo, now time.Time) (*models.WorkOrder, error) {
	idx := wo.StageByName(stageName)
	if idx < 0 {
		return nil, models.NewFieldError(models.ErrNotFound,
			fmt.Sprintf("stage %q does not exist on this work order", stageName), "stageName")
	}
	if len(evidence) == 0 {
		return nil, models.NewFieldError(models.ErrEvidenceRequired,
			"completing a stage requires at least one photo", "photos")
	}
	if wo.Stages[idx].Completed {
		return nil, models.NewFieldError(models.ErrConflict,
			fmt.Sprintf("stage %q is already completed", stageName), "stageName")
	}

	updated := wo.Clone()
	stage := &updated.Stages[idx]
	stage.Completed = true
	completedAt := now
	stage.CompletedAt = &completedAt
	stage.Photos = append(stage.Photos, evidence...)

	wasFinalized := wo.DeriveStatus() == models.WorkOrderStatusFinalized
	updated.Status = updated.DeriveStatus()
	if updated.Status == models.WorkOrderStatusFinalized && !wasFinalized {
		updated.CompletedDate = &completedAt
	}
	return updated, nil
}
