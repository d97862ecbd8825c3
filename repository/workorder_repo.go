package repository

import (
	"context"
	"errors"

	"fieldops-backend/dal"
	"fieldops-backend/models"
	"fieldops-backend/utils/logger"
)

type WorkOrderRepository struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewWorkOrderRepository(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *WorkOrderRepository {
	return &WorkOrderRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *WorkOrderRepository) tableName() string {
	return r.config.DynamoDBTablePrefix + "_workorders"
}

// GetWorkOrder returns the stored entity or nil when absent.
func (r *WorkOrderRepository) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	if id == "" {
		return nil, errors.New("work order ID is required")
	}

	var wo models.WorkOrder
	err := r.db.GetItem(ctx, r.tableName(), "workOrderID", id, &wo)
	if err != nil {
		r.logger.Errorf("Failed to get work order %s: %v", id, err)
		return nil, err
	}
	if wo.WorkOrderID == "" {
		return nil, nil
	}
	return &wo, nil
}

// ListWorkOrders scans the full collection. Filtering, search and paging
// happen in the query service; the collection is bounded by tenant size.
func (r *WorkOrderRepository) ListWorkOrders(ctx context.Context) ([]*models.WorkOrder, error) {
	var workOrders []*models.WorkOrder
	err := r.db.Scan(ctx, r.tableName(), &workOrders)
	if err != nil {
		r.logger.Errorf("Failed to list work orders: %v", err)
		return nil, err
	}
	return workOrders, nil
}
