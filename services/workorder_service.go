package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"fieldops-backend/models"
	"fieldops-backend/repository"
	"fieldops-backend/utils"
	"fieldops-backend/utils/logger"
)

// WorkOrderService orchestrates validated, audited mutations. Mutations to
// one work order id are serialized through a per-id mutex; different ids
// proceed concurrently.
type WorkOrderService struct {
	repo     repository.WorkOrderRepositoryInterface
	ledger   repository.Ledger
	resolver repository.ReferenceResolverInterface
	config   *models.Config
	logger   logger.Logger
	now      func() time.Time

	locks sync.Map // work order id -> *sync.Mutex
}

func NewWorkOrderService(
	repo repository.WorkOrderRepositoryInterface,
	ledger repository.Ledger,
	resolver repository.ReferenceResolverInterface,
	cfg *models.Config,
	log logger.Logger,
) *WorkOrderService {
	return &WorkOrderService{
		repo:     repo,
		ledger:   ledger,
		resolver: resolver,
		config:   cfg,
		logger:   log,
		now:      time.Now,
	}
}

func (s *WorkOrderService) lockFor(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// loadForMutation fetches the current state and rejects terminal entities.
// Callers must hold the per-id lock.
func (s *WorkOrderService) loadForMutation(ctx context.Context, id string) (*models.WorkOrder, error) {
	existing, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.NewAppError(models.ErrNotFound, "work order not found")
	}
	if existing.Status == models.WorkOrderStatusCancelled {
		return nil, models.NewAppError(models.ErrConflict, "work order is cancelled and can no longer be modified")
	}
	return existing, nil
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", models.NewFieldError(models.ErrValidation, "acting principal is required", "actor")
	}
	return actor, nil
}

func (s *WorkOrderService) CreateWorkOrder(ctx context.Context, req *models.CreateWorkOrderRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	stages := make([]models.Stage, len(req.Stages))
	for i, in := range req.Stages {
		stages[i] = models.Stage{
			Name:        in.Name,
			Description: in.Description,
			Weight:      in.Weight,
			Photos:      []models.Photo{},
		}
	}
	if err := ValidateStageTemplate(stages); err != nil {
		return nil, err
	}

	wo := &models.WorkOrder{
		WorkOrderID:     utils.GenerateUUID(),
		DeviceName:      req.DeviceName,
		SiteName:        req.SiteName,
		Location:        req.Location,
		TaskType:        req.TaskType,
		MaintenanceType: req.MaintenanceType,
		Description:     req.Description,
		Priority:        req.Priority,
		ScheduledDate:   req.ScheduledDate,
		Assignee:        req.Assignee,
		Stages:          stages,
		Status:          models.WorkOrderStatusPending,
		CreatedAt:       s.now().UTC(),
		UpdatedAt:       s.now().UTC(),
		CreatedBy:       actor,
	}

	// Weak references: resolve through the external lookup and copy the
	// denormalized fields; a dangling id fails the whole create.
	if req.ProjectID != "" {
		ref, err := s.resolver.ResolveProject(ctx, req.ProjectID)
		if err != nil {
			return nil, err
		}
		wo.Project = ref
	}
	if req.PointID != "" {
		ref, err := s.resolver.ResolvePoint(ctx, req.PointID)
		if err != nil {
			return nil, err
		}
		wo.Point = ref
	}

	_, err = s.ledger.Append(ctx, repository.AppendRequest{
		EntityType: models.EntityTypeWorkOrder,
		EntityID:   wo.WorkOrderID,
		Action:     models.AuditActionCreate,
		Before:     nil,
		After:      wo,
		Actor:      actor,
		Meta:       meta,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("workOrderID", wo.WorkOrderID).Infof("Work order created at %s by %s", wo.SiteName, actor)
	return wo, nil
}

func (s *WorkOrderService) validateCreate(req *models.CreateWorkOrderRequest) error {
	if req == nil {
		return models.NewAppError(models.ErrValidation, "create request is required")
	}
	required := []struct{ value, field string }{
		{req.TaskType, "taskType"},
		{string(req.MaintenanceType), "maintenanceType"},
		{req.Description, "description"},
		{req.Assignee, "assignee"},
		{string(req.Priority), "priority"},
		{req.Location, "location"},
		{req.SiteName, "siteName"},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return models.NewFieldError(models.ErrValidation, f.field+" is required", f.field)
		}
	}
	if req.ScheduledDate.IsZero() {
		return models.NewFieldError(models.ErrValidation, "scheduledDate is required", "scheduledDate")
	}
	switch req.MaintenanceType {
	case models.MaintenancePreventive, models.MaintenanceCorrective:
	default:
		return models.NewFieldError(models.ErrValidation, "maintenanceType must be preventive or corrective", "maintenanceType")
	}
	switch req.Priority {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
	default:
		return models.NewFieldError(models.ErrValidation, "priority must be high, medium or low", "priority")
	}
	return nil
}

// UpdateWorkOrder applies a whitelisted patch. Unknown fields are logged and
// dropped; a patch that changes nothing short-circuits without an audit
// record.
func (s *WorkOrderService) UpdateWorkOrder(ctx context.Context, id string, req *models.UpdateWorkOrderRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, models.NewAppError(models.ErrValidation, "update request is required")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.loadForMutation(ctx, id)
	if err != nil {
		return nil, err
	}

	for field := range req.Extra {
		s.logger.WithField("workOrderID", id).Warnf("Ignoring non-updatable field %q in patch", field)
	}

	updated := existing.Clone()
	if req.DeviceName != nil {
		updated.DeviceName = *req.DeviceName
	}
	if req.SiteName != nil {
		updated.SiteName = *req.SiteName
	}
	if req.Location != nil {
		updated.Location = *req.Location
	}
	if req.TaskType != nil {
		updated.TaskType = *req.TaskType
	}
	if req.MaintenanceType != nil {
		updated.MaintenanceType = *req.MaintenanceType
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Priority != nil {
		updated.Priority = *req.Priority
	}
	if req.ScheduledDate != nil {
		updated.ScheduledDate = *req.ScheduledDate
	}
	if req.Assignee != nil {
		updated.Assignee = *req.Assignee
	}
	if req.SupportDetails != nil {
		updated.SupportDetails = *req.SupportDetails
	}

	// No-op detection runs before the audit trailer fields are stamped, so
	// an empty patch never reaches the ledger.
	diff, err := models.ComputeDiff(existing, updated)
	if err != nil {
		return nil, err
	}
	if len(diff) == 0 {
		s.logger.WithField("workOrderID", id).Debug("Patch changed nothing, skipping write")
		return existing, nil
	}

	updated.UpdatedAt = s.now().UTC()
	updated.UpdatedBy = actor

	_, err = s.ledger.Append(ctx, repository.AppendRequest{
		EntityType: models.EntityTypeWorkOrder,
		EntityID:   id,
		Action:     models.AuditActionUpdate,
		Before:     existing,
		After:      updated,
		Actor:      actor,
		Meta:       meta,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *WorkOrderService) CompleteStage(ctx context.Context, id string, req *models.CompleteStageRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.StageName) == "" {
		return nil, models.NewFieldError(models.ErrValidation, "stageName is required", "stageName")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.loadForMutation(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := CompleteStage(existing, req.StageName, req.Photos, s.now().UTC())
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now().UTC()
	updated.UpdatedBy = actor

	_, err = s.ledger.Append(ctx, repository.AppendRequest{
		EntityType: models.EntityTypeWorkOrder,
		EntityID:   id,
		Action:     models.AuditActionStageUpdate,
		Before:     existing,
		After:      updated,
		Actor:      actor,
		Meta:       meta,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("workOrderID", id).Infof("Stage %q completed, progress now %.2f", req.StageName, updated.Progress())
	return updated, nil
}

// RequestSupport flips the support flag exactly once; a second request is a
// Conflict, never a silent merge.
func (s *WorkOrderService) RequestSupport(ctx context.Context, id string, req *models.RequestSupportRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.Details) == "" {
		return nil, models.NewFieldError(models.ErrValidation, "support details are required", "details")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.loadForMutation(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.SupportRequested {
		return nil, models.NewAppError(models.ErrConflict, "support was already requested for this work order")
	}

	updated := existing.Clone()
	updated.SupportRequested = true
	updated.SupportDetails = req.Details
	updated.UpdatedAt = s.now().UTC()
	updated.UpdatedBy = actor

	_, err = s.ledger.Append(ctx, repository.AppendRequest{
		EntityType: models.EntityTypeWorkOrder,
		EntityID:   id,
		Action:     models.AuditActionSupportRequest,
		Before:     existing,
		After:      updated,
		Actor:      actor,
		Meta:       meta,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RegisterReport records the report reference once the minimum-evidence
// policy is met.
func (s *WorkOrderService) RegisterReport(ctx context.Context, id string, req *models.RegisterReportRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.ReportURL) == "" {
		return nil, models.NewFieldError(models.ErrValidation, "reportURL is required", "reportURL")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.loadForMutation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.CanFinalizeReport(s.config.MinReportEvidence) {
		return nil, models.NewAppError(models.ErrPreconditionFailed,
			"not enough photo evidence attached to finalize a report")
	}

	updated := existing.Clone()
	updated.ReportGenerated = true
	updated.ReportURL = req.ReportURL
	updated.UpdatedAt = s.now().UTC()
	updated.UpdatedBy = actor

	_, err = s.ledger.Append(ctx, repository.AppendRequest{
		EntityType: models.EntityTypeWorkOrder,
		EntityID:   id,
		Action:     models.AuditActionReportRegistered,
		Before:     existing,
		After:      updated,
		Actor:      actor,
		Meta:       meta,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelWorkOrder moves the work order into its terminal state. The record
// is retained (soft delete) and a repeated cancel is a no-op success with no
// second audit record. An empty actor is permitted here only, recorded as
// the system sentinel.
func (s *WorkOrderService) CancelWorkOrder(ctx context.Context, id string, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = models.SystemActor
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.NewAppError(models.ErrNotFound, "work order not found")
	}
	if existing.Status == models.WorkOrderStatusCancelled {
		return existing, nil
	}

	updated := existing.Clone()
	updated.Status = models.WorkOrderStatusCancelled
	updated.UpdatedAt = s.now().UTC()
	updated.UpdatedBy = actor

	_, err = s.ledger.Append(ctx, repository.AppendRequest{
		EntityType: models.EntityTypeWorkOrder,
		EntityID:   id,
		Action:     models.AuditActionCancel,
		Before:     existing,
		After:      updated,
		Actor:      actor,
		Meta:       meta,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("workOrderID", id).Infof("Work order cancelled by %s", actor)
	return updated, nil
}
