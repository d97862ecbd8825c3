package services

import (
	"context"

	"fieldops-backend/models"
)

// WorkOrderServiceInterface defines the contract for work order commands.
// Every operation validates, computes the new state and writes it together
// with its audit record through the ledger.
type WorkOrderServiceInterface interface {
	CreateWorkOrder(ctx context.Context, req *models.CreateWorkOrderRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, id string, req *models.UpdateWorkOrderRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error)
	CompleteStage(ctx context.Context, id string, req *models.CompleteStageRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error)
	RequestSupport(ctx context.Context, id string, req *models.RequestSupportRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error)
	RegisterReport(ctx context.Context, id string, req *models.RegisterReportRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error)
	CancelWorkOrder(ctx context.Context, id string, actor string, meta *models.RequestMeta) (*models.WorkOrder, error)
}

// QueryServiceInterface defines the read-only contract over work orders and
// their audit history.
type QueryServiceInterface interface {
	GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error)
	ListWorkOrders(ctx context.Context, filter *models.WorkOrderFilter, sort models.SortSpec, page models.PageSpec) (*models.WorkOrderPage, error)
	ListSupportRequests(ctx context.Context) ([]*models.WorkOrder, error)
	History(ctx context.Context, id string, page models.PageSpec) (*models.AuditPage, error)
}
