package client

import (
	"context"
	"sync"
	"time"

	"fieldops-backend/models"
	"fieldops-backend/services"
	"fieldops-backend/utils"
	"fieldops-backend/utils/logger"
)

// APIClientInterface is the transport surface the manager dispatches
// against. *Client implements it; tests substitute fakes.
type APIClientInterface interface {
	CreateWorkOrder(ctx context.Context, req *models.CreateWorkOrderRequest) (*models.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error)
	CancelWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error)
	CompleteStage(ctx context.Context, id string, req *models.CompleteStageRequest) (*models.WorkOrder, error)
	RequestSupport(ctx context.Context, id string, req *models.RequestSupportRequest) (*models.WorkOrder, error)
	RegisterReport(ctx context.Context, id string, req *models.RegisterReportRequest) (*models.WorkOrder, error)
	ListWorkOrders(ctx context.Context, opts ListOptions) ([]*models.WorkOrder, *models.Pagination, error)
	GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error)
}

type cacheEntry struct {
	order *models.WorkOrder
	// revision counts local edits. A server response only replaces the
	// entry when no further local edit happened while it was in flight.
	revision uint64
}

// Manager holds the local, optimistically updated work order collection for
// a disconnected-tolerant UI. Every mutating call applies to the cache
// immediately and dispatches the server call in the background; the returned
// channel delivers the final outcome exactly once.
//
// On success the server-canonical entity replaces the local one unless a
// later local edit superseded it. On failure the optimistic copy is
// retained: field data must not vanish because of a flaky network, so retry
// is the caller's decision.
type Manager struct {
	api    APIClientInterface
	logger logger.Logger

	mu           sync.Mutex
	entries      map[string]*cacheEntry
	supportIndex map[string]*models.WorkOrder

	wg sync.WaitGroup
}

func NewManager(api APIClientInterface, log logger.Logger) *Manager {
	return &Manager{
		api:          api,
		logger:       log,
		entries:      make(map[string]*cacheEntry),
		supportIndex: make(map[string]*models.WorkOrder),
	}
}

// Refresh replaces the cache with the server's current collection. Call it
// on startup or an explicit pull-to-refresh, not while edits are in flight.
func (m *Manager) Refresh(ctx context.Context) error {
	var all []*models.WorkOrder
	page := 1
	for {
		items, pagination, err := m.api.ListWorkOrders(ctx, ListOptions{Page: page, Limit: 100, IncludeCancelled: true})
		if err != nil {
			return err
		}
		all = append(all, items...)
		if pagination == nil || page >= pagination.TotalPages {
			break
		}
		page++
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*cacheEntry, len(all))
	for _, wo := range all {
		m.entries[wo.WorkOrderID] = &cacheEntry{order: wo}
	}
	m.rebuildSupportIndex()
	return nil
}

// Get returns a copy of the cached work order.
func (m *Manager) Get(id string) (*models.WorkOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return entry.order.Clone(), true
}

// All returns copies of every cached work order.
func (m *Manager) All() []*models.WorkOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.WorkOrder, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.order.Clone())
	}
	return out
}

// SupportRequests returns the derived support-request index. The index is
// rebuilt from the cache on every change and keyed by work order id, so
// re-deriving can never produce duplicates.
func (m *Manager) SupportRequests() []*models.WorkOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.WorkOrder, 0, len(m.supportIndex))
	for _, wo := range m.supportIndex {
		out = append(out, wo.Clone())
	}
	return out
}

// Flush blocks until every dispatched call has reconciled. Intended for
// shutdown and tests.
func (m *Manager) Flush() {
	m.wg.Wait()
}

// Create inserts an optimistic local entity under a temporary id and
// dispatches the create. On success the server entity (with its real id)
// replaces the temporary one. The temporary id is returned so the UI can
// track the entity across the swap.
func (m *Manager) Create(ctx context.Context, req *models.CreateWorkOrderRequest) (string, <-chan error) {
	stages := make([]models.Stage, len(req.Stages))
	for i, in := range req.Stages {
		stages[i] = models.Stage{
			Name:        in.Name,
			Description: in.Description,
			Weight:      in.Weight,
			Photos:      []models.Photo{},
		}
	}

	tempID := "local-" + utils.GenerateUUID()
	optimistic := &models.WorkOrder{
		WorkOrderID:     tempID,
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
		CreatedAt:       time.Now().UTC(),
	}

	rev := m.applyLocal(tempID, optimistic)
	done := m.dispatch(tempID, rev, func() (*models.WorkOrder, error) {
		return m.api.CreateWorkOrder(ctx, req)
	})
	return tempID, done
}

// Update applies the whitelist patch locally and dispatches it.
func (m *Manager) Update(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) <-chan error {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return failed(models.NewAppError(models.ErrNotFound, "work order not in cache"))
	}
	updated := entry.order.Clone()
	applyPatch(updated, req)
	m.mu.Unlock()

	rev := m.applyLocal(id, updated)
	return m.dispatch(id, rev, func() (*models.WorkOrder, error) {
		return m.api.UpdateWorkOrder(ctx, id, req)
	})
}

// CompleteStage marks the stage complete locally, using the same lifecycle
// rules the server applies, and dispatches the command.
func (m *Manager) CompleteStage(ctx context.Context, id, stageName string, photos []models.Photo) <-chan error {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return failed(models.NewAppError(models.ErrNotFound, "work order not in cache"))
	}
	updated, err := services.CompleteStage(entry.order, stageName, photos, time.Now().UTC())
	m.mu.Unlock()
	if err != nil {
		return failed(err)
	}

	rev := m.applyLocal(id, updated)
	return m.dispatch(id, rev, func() (*models.WorkOrder, error) {
		return m.api.CompleteStage(ctx, id, &models.CompleteStageRequest{StageName: stageName, Photos: photos})
	})
}

// RequestSupport flags support locally and dispatches the command.
func (m *Manager) RequestSupport(ctx context.Context, id, details string) <-chan error {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return failed(models.NewAppError(models.ErrNotFound, "work order not in cache"))
	}
	if entry.order.SupportRequested {
		m.mu.Unlock()
		return failed(models.NewAppError(models.ErrConflict, "support was already requested for this work order"))
	}
	updated := entry.order.Clone()
	updated.SupportRequested = true
	updated.SupportDetails = details
	m.mu.Unlock()

	rev := m.applyLocal(id, updated)
	return m.dispatch(id, rev, func() (*models.WorkOrder, error) {
		return m.api.RequestSupport(ctx, id, &models.RequestSupportRequest{Details: details})
	})
}

// RegisterReport records the report reference locally and dispatches it.
func (m *Manager) RegisterReport(ctx context.Context, id, reportURL string) <-chan error {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return failed(models.NewAppError(models.ErrNotFound, "work order not in cache"))
	}
	updated := entry.order.Clone()
	updated.ReportGenerated = true
	updated.ReportURL = reportURL
	m.mu.Unlock()

	rev := m.applyLocal(id, updated)
	return m.dispatch(id, rev, func() (*models.WorkOrder, error) {
		return m.api.RegisterReport(ctx, id, &models.RegisterReportRequest{ReportURL: reportURL})
	})
}

// Cancel moves the work order to cancelled locally and dispatches it.
func (m *Manager) Cancel(ctx context.Context, id string) <-chan error {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return failed(models.NewAppError(models.ErrNotFound, "work order not in cache"))
	}
	updated := entry.order.Clone()
	updated.Status = models.WorkOrderStatusCancelled
	m.mu.Unlock()

	rev := m.applyLocal(id, updated)
	return m.dispatch(id, rev, func() (*models.WorkOrder, error) {
		return m.api.CancelWorkOrder(ctx, id)
	})
}

// applyLocal stores the optimistic state, bumps the revision and rebuilds
// the support index. Returns the revision the dispatched call reconciles
// against.
func (m *Manager) applyLocal(id string, wo *models.WorkOrder) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		entry = &cacheEntry{}
		m.entries[id] = entry
	}
	entry.order = wo
	entry.revision++
	m.rebuildSupportIndex()
	return entry.revision
}

// dispatch runs the server call without blocking the caller and reconciles
// the response against the cache.
func (m *Manager) dispatch(id string, rev uint64, call func() (*models.WorkOrder, error)) <-chan error {
	done := make(chan error, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		server, err := call()
		if err != nil {
			// Retain the optimistic copy; losing field data to a transient
			// failure is worse than drifting until the caller retries.
			m.logger.Warnf("Command for work order %s failed, keeping local copy: %v", id, err)
			done <- err
			return
		}
		m.reconcile(id, rev, server)
		done <- nil
	}()
	return done
}

// reconcile replaces the local entity with the server-canonical one unless a
// later local edit arrived while the call was in flight, in which case the
// stale response is dropped.
func (m *Manager) reconcile(id string, rev uint64, server *models.WorkOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if ok && entry.revision != rev {
		m.logger.Debugf("Dropping stale server state for %s (revision %d, cache at %d)", id, rev, entry.revision)
		return
	}

	m.entries[server.WorkOrderID] = &cacheEntry{order: server, revision: rev}
	if server.WorkOrderID != id {
		// Create path: the server id replaces the temporary local id.
		delete(m.entries, id)
	}
	m.rebuildSupportIndex()
}

// rebuildSupportIndex recomputes the projection from the cached collection.
// The collection is bounded, so the full recompute is deliberately cheap
// rather than incrementally maintained. Callers must hold m.mu.
func (m *Manager) rebuildSupportIndex() {
	m.supportIndex = make(map[string]*models.WorkOrder)
	for id, entry := range m.entries {
		if entry.order.SupportRequested && entry.order.Status != models.WorkOrderStatusCancelled {
			m.supportIndex[id] = entry.order
		}
	}
}

func applyPatch(wo *models.WorkOrder, req *models.UpdateWorkOrderRequest) {
	if req.DeviceName != nil {
		wo.DeviceName = *req.DeviceName
	}
	if req.SiteName != nil {
		wo.SiteName = *req.SiteName
	}
	if req.Location != nil {
		wo.Location = *req.Location
	}
	if req.TaskType != nil {
		wo.TaskType = *req.TaskType
	}
	if req.MaintenanceType != nil {
		wo.MaintenanceType = *req.MaintenanceType
	}
	if req.Description != nil {
		wo.Description = *req.Description
	}
	if req.Priority != nil {
		wo.Priority = *req.Priority
	}
	if req.ScheduledDate != nil {
		wo.ScheduledDate = *req.ScheduledDate
	}
	if req.Assignee != nil {
		wo.Assignee = *req.Assignee
	}
	if req.SupportDetails != nil {
		wo.SupportDetails = *req.SupportDetails
	}
}

func failed(err error) <-chan error {
	done := make(chan error, 1)
	done <- err
	return done
}
