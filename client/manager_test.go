package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldops-backend/models"
	"fieldops-backend/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLogger implements the logger interface for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{})                 {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(args ...interface{})                  {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(args ...interface{})                  {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(args ...interface{})                 {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(args ...interface{})                 {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	return m
}

// fakeAPI lets each test script the transport, including holding a call
// in flight, which declarative mocks cannot express.
type fakeAPI struct {
	createFn   func(ctx context.Context, req *models.CreateWorkOrderRequest) (*models.WorkOrder, error)
	updateFn   func(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error)
	cancelFn   func(ctx context.Context, id string) (*models.WorkOrder, error)
	completeFn func(ctx context.Context, id string, req *models.CompleteStageRequest) (*models.WorkOrder, error)
	supportFn  func(ctx context.Context, id string, req *models.RequestSupportRequest) (*models.WorkOrder, error)
	reportFn   func(ctx context.Context, id string, req *models.RegisterReportRequest) (*models.WorkOrder, error)
	listFn     func(ctx context.Context, opts ListOptions) ([]*models.WorkOrder, *models.Pagination, error)
	getFn      func(ctx context.Context, id string) (*models.WorkOrder, error)
}

func (f *fakeAPI) CreateWorkOrder(ctx context.Context, req *models.CreateWorkOrderRequest) (*models.WorkOrder, error) {
	return f.createFn(ctx, req)
}

func (f *fakeAPI) UpdateWorkOrder(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error) {
	return f.updateFn(ctx, id, req)
}

func (f *fakeAPI) CancelWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	return f.cancelFn(ctx, id)
}

func (f *fakeAPI) CompleteStage(ctx context.Context, id string, req *models.CompleteStageRequest) (*models.WorkOrder, error) {
	return f.completeFn(ctx, id, req)
}

func (f *fakeAPI) RequestSupport(ctx context.Context, id string, req *models.RequestSupportRequest) (*models.WorkOrder, error) {
	return f.supportFn(ctx, id, req)
}

func (f *fakeAPI) RegisterReport(ctx context.Context, id string, req *models.RegisterReportRequest) (*models.WorkOrder, error) {
	return f.reportFn(ctx, id, req)
}

func (f *fakeAPI) ListWorkOrders(ctx context.Context, opts ListOptions) ([]*models.WorkOrder, *models.Pagination, error) {
	return f.listFn(ctx, opts)
}

func (f *fakeAPI) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	return f.getFn(ctx, id)
}

func cachedOrder(id string) *models.WorkOrder {
	return &models.WorkOrder{
		WorkOrderID: id,
		SiteName:    "North Substation",
		Location:    "Sector 7",
		Assignee:    "tech-1",
		Status:      models.WorkOrderStatusPending,
		Stages: []models.Stage{
			{Name: "prep", Weight: 0.4, Photos: []models.Photo{}},
			{Name: "work", Weight: 0.6, Photos: []models.Photo{}},
		},
	}
}

func seededManager(t *testing.T, api *fakeAPI, orders ...*models.WorkOrder) *Manager {
	t.Helper()
	api.listFn = func(ctx context.Context, opts ListOptions) ([]*models.WorkOrder, *models.Pagination, error) {
		return orders, &models.Pagination{Total: len(orders), Page: 1, Limit: 100, TotalPages: 1}, nil
	}
	m := NewManager(api, &MockLogger{})
	assert.NoError(t, m.Refresh(context.Background()))
	return m
}

func TestRefreshPopulatesCache(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"), cachedOrder("wo-2"))

	assert.Len(t, m.All(), 2)
	wo, ok := m.Get("wo-1")
	assert.True(t, ok)
	assert.Equal(t, "North Substation", wo.SiteName)
}

func TestGetReturnsCopy(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"))

	first, _ := m.Get("wo-1")
	first.SiteName = "mutated"

	second, _ := m.Get("wo-1")
	assert.Equal(t, "North Substation", second.SiteName)
}

func TestCreateOptimisticThenServerIDSwap(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api)

	server := cachedOrder("wo-server")
	api.createFn = func(ctx context.Context, req *models.CreateWorkOrderRequest) (*models.WorkOrder, error) {
		return server, nil
	}

	tempID, done := m.Create(context.Background(), &models.CreateWorkOrderRequest{
		SiteName: "North Substation",
		Location: "Sector 7",
		Assignee: "tech-1",
		Stages:   []models.StageInput{{Name: "work", Weight: 1.0}},
	})

	assert.True(t, strings.HasPrefix(tempID, "local-"))
	// Optimistic entity is visible immediately under the temporary id.
	_, ok := m.Get(tempID)
	assert.True(t, ok)

	assert.NoError(t, <-done)
	m.Flush()

	_, ok = m.Get(tempID)
	assert.False(t, ok)
	wo, ok := m.Get("wo-server")
	assert.True(t, ok)
	assert.Equal(t, server.SiteName, wo.SiteName)
}

func TestUpdateServerStateWins(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"))

	server := cachedOrder("wo-1")
	server.Assignee = "tech-9"
	server.UpdatedBy = "dispatcher"
	api.updateFn = func(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error) {
		return server, nil
	}

	assignee := "tech-2"
	done := m.Update(context.Background(), "wo-1", &models.UpdateWorkOrderRequest{Assignee: &assignee})

	// Optimistic value first.
	wo, _ := m.Get("wo-1")
	assert.Equal(t, "tech-2", wo.Assignee)

	assert.NoError(t, <-done)
	m.Flush()

	// Then the server-canonical entity replaces it.
	wo, _ = m.Get("wo-1")
	assert.Equal(t, "tech-9", wo.Assignee)
	assert.Equal(t, "dispatcher", wo.UpdatedBy)
}

func TestFailureRetainsOptimisticCopy(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"))

	api.updateFn = func(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error) {
		return nil, errors.New("connection reset")
	}

	assignee := "tech-2"
	done := m.Update(context.Background(), "wo-1", &models.UpdateWorkOrderRequest{Assignee: &assignee})

	err := <-done
	assert.Error(t, err)
	m.Flush()

	wo, _ := m.Get("wo-1")
	assert.Equal(t, "tech-2", wo.Assignee)
}

func TestStaleServerResponseDropped(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"))

	release := make(chan struct{})
	staleServer := cachedOrder("wo-1")
	staleServer.Assignee = "tech-stale"
	api.updateFn = func(ctx context.Context, id string, req *models.UpdateWorkOrderRequest) (*models.WorkOrder, error) {
		if req.Assignee != nil && *req.Assignee == "tech-2" {
			<-release
			return staleServer, nil
		}
		return nil, errors.New("unreachable")
	}
	api.supportFn = func(ctx context.Context, id string, req *models.RequestSupportRequest) (*models.WorkOrder, error) {
		fresh := cachedOrder("wo-1")
		fresh.SupportRequested = true
		fresh.SupportDetails = req.Details
		return fresh, nil
	}

	// First edit goes in flight and stalls.
	assignee := "tech-2"
	firstDone := m.Update(context.Background(), "wo-1", &models.UpdateWorkOrderRequest{Assignee: &assignee})

	// Second edit bumps the revision while the first is still in flight.
	secondDone := m.RequestSupport(context.Background(), "wo-1", "breaker locked")
	assert.NoError(t, <-secondDone)

	// First response arrives late and must be dropped.
	close(release)
	assert.NoError(t, <-firstDone)
	m.Flush()

	wo, _ := m.Get("wo-1")
	assert.True(t, wo.SupportRequested)
	assert.NotEqual(t, "tech-stale", wo.Assignee)
}

func TestCompleteStageAppliesLifecycleLocally(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"))

	api.completeFn = func(ctx context.Context, id string, req *models.CompleteStageRequest) (*models.WorkOrder, error) {
		server := cachedOrder(id)
		server.Stages[0].Completed = true
		server.Status = models.WorkOrderStatusInProgress
		return server, nil
	}

	done := m.CompleteStage(context.Background(), "wo-1", "prep",
		[]models.Photo{{Name: "before.jpg", TakenAt: time.Now()}})

	wo, _ := m.Get("wo-1")
	assert.True(t, wo.Stages[0].Completed)
	assert.Equal(t, models.WorkOrderStatusInProgress, wo.Status)

	assert.NoError(t, <-done)
	m.Flush()
}

func TestCompleteStageWithoutEvidenceFailsLocally(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"))

	done := m.CompleteStage(context.Background(), "wo-1", "prep", nil)

	err := <-done
	assert.True(t, models.IsKind(err, models.ErrEvidenceRequired))
	wo, _ := m.Get("wo-1")
	assert.False(t, wo.Stages[0].Completed)
}

func TestRequestSupportTwiceFailsLocally(t *testing.T) {
	api := &fakeAPI{}
	order := cachedOrder("wo-1")
	order.SupportRequested = true
	m := seededManager(t, api, order)

	done := m.RequestSupport(context.Background(), "wo-1", "again")

	assert.True(t, models.IsKind(<-done, models.ErrConflict))
}

func TestSupportIndexNoDuplicatesAndExcludesCancelled(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api, cachedOrder("wo-1"), cachedOrder("wo-2"))

	api.supportFn = func(ctx context.Context, id string, req *models.RequestSupportRequest) (*models.WorkOrder, error) {
		server := cachedOrder(id)
		server.SupportRequested = true
		server.SupportDetails = req.Details
		return server, nil
	}
	api.cancelFn = func(ctx context.Context, id string) (*models.WorkOrder, error) {
		server := cachedOrder(id)
		server.SupportRequested = true
		server.Status = models.WorkOrderStatusCancelled
		return server, nil
	}

	assert.NoError(t, <-m.RequestSupport(context.Background(), "wo-1", "locked out"))
	assert.NoError(t, <-m.RequestSupport(context.Background(), "wo-2", "missing parts"))
	m.Flush()

	assert.Len(t, m.SupportRequests(), 2)

	// Cancelling a flagged order removes it from the projection.
	assert.NoError(t, <-m.Cancel(context.Background(), "wo-2"))
	m.Flush()

	requests := m.SupportRequests()
	assert.Len(t, requests, 1)
	assert.Equal(t, "wo-1", requests[0].WorkOrderID)
}

func TestMutateUnknownID(t *testing.T) {
	api := &fakeAPI{}
	m := seededManager(t, api)

	assignee := "tech-2"
	err := <-m.Update(context.Background(), "wo-404", &models.UpdateWorkOrderRequest{Assignee: &assignee})

	assert.True(t, models.IsKind(err, models.ErrNotFound))
}

func TestRefreshPagesThroughCollection(t *testing.T) {
	api := &fakeAPI{}
	pages := [][]*models.WorkOrder{
		{cachedOrder("wo-1")},
		{cachedOrder("wo-2")},
	}
	api.listFn = func(ctx context.Context, opts ListOptions) ([]*models.WorkOrder, *models.Pagination, error) {
		return pages[opts.Page-1], &models.Pagination{Total: 2, Page: opts.Page, Limit: 100, TotalPages: 2}, nil
	}

	m := NewManager(api, &MockLogger{})
	assert.NoError(t, m.Refresh(context.Background()))

	assert.Len(t, m.All(), 2)
}
