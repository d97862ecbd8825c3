package repository

import (
	"context"

	"fieldops-backend/dal"
	"fieldops-backend/models"
	"fieldops-backend/utils/logger"
)

// ReferenceResolver resolves project/point links against the tables owned by
// the external reference-data services. Read-only from this side.
type ReferenceResolver struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewReferenceResolver(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *ReferenceResolver {
	return &ReferenceResolver{
		db:     db,
		config: cfg,
		logger: log,
	}
}

// ResolveProject returns the denormalized link copy for a project, or
// ReferenceNotFound when the project does not exist.
func (r *ReferenceResolver) ResolveProject(ctx context.Context, projectID string) (*models.ProjectRef, error) {
	var project models.Project
	err := r.db.GetItem(ctx, r.config.DynamoDBTablePrefix+"_projects", "projectID", projectID, &project)
	if err != nil {
		return nil, err
	}
	if project.ProjectID == "" {
		return nil, models.NewFieldError(models.ErrReferenceNotFound, "project does not exist", "projectID")
	}
	return &models.ProjectRef{
		ProjectID: project.ProjectID,
		Name:      project.Name,
	}, nil
}

// ResolvePoint returns the denormalized link copy for a point, or
// ReferenceNotFound when the point does not exist.
func (r *ReferenceResolver) ResolvePoint(ctx context.Context, pointID string) (*models.PointRef, error) {
	var point models.Point
	err := r.db.GetItem(ctx, r.config.DynamoDBTablePrefix+"_points", "pointID", pointID, &point)
	if err != nil {
		return nil, err
	}
	if point.PointID == "" {
		return nil, models.NewFieldError(models.ErrReferenceNotFound, "point does not exist", "pointID")
	}
	return &models.PointRef{
		PointID:   point.PointID,
		Type:      point.Type,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
	}, nil
}
