package repository

import (
	"context"

	"fieldops-backend/models"
)

// WorkOrderRepositoryInterface defines the read contract for work order
// storage. All entity writes flow through the ledger so they stay paired
// with an audit record.
type WorkOrderRepositoryInterface interface {
	GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error)
	ListWorkOrders(ctx context.Context) ([]*models.WorkOrder, error)
}

// AuditRepositoryInterface defines the contract for audit record storage.
// There is intentionally no update or delete: the ledger is append-only.
type AuditRepositoryInterface interface {
	PutRecord(ctx context.Context, record *models.AuditRecord) error
	ListRecords(ctx context.Context, entityType, entityID string) ([]*models.AuditRecord, error)
}

// AppendRequest carries one entity mutation plus everything needed to
// document it. After is both the persisted entity state and the diff target.
type AppendRequest struct {
	EntityType string
	EntityID   string
	Action     models.AuditAction
	Before     interface{}
	After      interface{}
	Actor      string
	Meta       *models.RequestMeta
}

// Ledger durably pairs an entity mutation with exactly one diff record.
// Implementations differ only in the atomicity regime of the paired write.
type Ledger interface {
	Append(ctx context.Context, req AppendRequest) (*models.AuditRecord, error)
	History(ctx context.Context, entityType, entityID string, page models.PageSpec) (*models.AuditPage, error)
}

// ReferenceResolverInterface resolves weak links against the external
// project/point services' tables.
type ReferenceResolverInterface interface {
	ResolveProject(ctx context.Context, projectID string) (*models.ProjectRef, error)
	ResolvePoint(ctx context.Context, pointID string) (*models.PointRef, error)
}
