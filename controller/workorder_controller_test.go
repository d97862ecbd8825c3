package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldops-backend/middelware"
	"fieldops-backend/models"
	"fieldops-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
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

// MockCommandService implements the WorkOrderServiceInterface for testing
type MockCommandService struct {
	mock.Mock
}

func (m *MockCommandService) CreateWorkOrder(ctx context.Context, req *models.CreateWorkOrderRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	args := m.Called(ctx, req, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockCommandService) UpdateWorkOrder(ctx context.Context, id string, req *models.UpdateWorkOrderRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	args := m.Called(ctx, id, req, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockCommandService) CompleteStage(ctx context.Context, id string, req *models.CompleteStageRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	args := m.Called(ctx, id, req, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockCommandService) RequestSupport(ctx context.Context, id string, req *models.RequestSupportRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	args := m.Called(ctx, id, req, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockCommandService) RegisterReport(ctx context.Context, id string, req *models.RegisterReportRequest, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	args := m.Called(ctx, id, req, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockCommandService) CancelWorkOrder(ctx context.Context, id string, actor string, meta *models.RequestMeta) (*models.WorkOrder, error) {
	args := m.Called(ctx, id, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

// MockQueryService implements the QueryServiceInterface for testing
type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockQueryService) ListWorkOrders(ctx context.Context, filter *models.WorkOrderFilter, sort models.SortSpec, page models.PageSpec) (*models.WorkOrderPage, error) {
	args := m.Called(ctx, filter, sort, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrderPage), args.Error(1)
}

func (m *MockQueryService) ListSupportRequests(ctx context.Context) ([]*models.WorkOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorkOrder), args.Error(1)
}

func (m *MockQueryService) History(ctx context.Context, id string, page models.PageSpec) (*models.AuditPage, error) {
	args := m.Called(ctx, id, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditPage), args.Error(1)
}

// WorkOrderControllerTestSuite defines a test suite for WorkOrderController
type WorkOrderControllerTestSuite struct {
	suite.Suite
	mockCommands *MockCommandService
	mockQueries  *MockQueryService
	router       *gin.Engine
}

func (suite *WorkOrderControllerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.mockCommands = &MockCommandService{}
	suite.mockQueries = &MockQueryService{}

	handler := NewWorkOrderController(context.Background(), suite.mockCommands, suite.mockQueries, &MockLogger{})

	suite.router = gin.New()
	suite.router.Use(func(c *gin.Context) {
		c.Set(middelware.ContextActorKey, "tech-1")
	})
	suite.router.POST("/workorders", handler.CreateWorkOrder)
	suite.router.GET("/workorders", handler.ListWorkOrders)
	suite.router.GET("/workorders/:id", handler.GetWorkOrder)
	suite.router.PATCH("/workorders/:id", handler.UpdateWorkOrder)
	suite.router.DELETE("/workorders/:id", handler.CancelWorkOrder)
	suite.router.POST("/workorders/:id/stages/complete", handler.CompleteStage)
	suite.router.POST("/workorders/:id/support", handler.RequestSupport)
	suite.router.POST("/workorders/:id/report", handler.RegisterReport)
	suite.router.GET("/workorders/:id/history", handler.GetHistory)
	suite.router.GET("/support-requests", handler.ListSupportRequests)
}

func (suite *WorkOrderControllerTestSuite) TearDownTest() {
	suite.mockCommands.AssertExpectations(suite.T())
	suite.mockQueries.AssertExpectations(suite.T())
}

func (suite *WorkOrderControllerTestSuite) perform(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(suite.T(), err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"siteName":        "North Substation",
		"location":        "Sector 7",
		"taskType":        "inspection",
		"maintenanceType": "preventive",
		"description":     "Quarterly inspection",
		"priority":        "medium",
		"scheduledDate":   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"assignee":        "tech-1",
		"stages": []map[string]interface{}{
			{"name": "prep", "weight": 0.4},
			{"name": "work", "weight": 0.6},
		},
	}
}

func (suite *WorkOrderControllerTestSuite) TestCreateWorkOrder() {
	wo := &models.WorkOrder{WorkOrderID: "wo-1", SiteName: "North Substation"}

	suite.mockCommands.On("CreateWorkOrder", mock.Anything,
		mock.MatchedBy(func(r *models.CreateWorkOrderRequest) bool {
			return r.SiteName == "North Substation" && len(r.Stages) == 2
		}), "tech-1", mock.AnythingOfType("*models.RequestMeta")).Return(wo, nil)

	w := suite.perform(http.MethodPost, "/workorders", createBody())

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var resp models.APIResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "success", resp.Status)
}

func (suite *WorkOrderControllerTestSuite) TestCreateWorkOrderMissingFields() {
	body := createBody()
	delete(body, "siteName")

	w := suite.perform(http.MethodPost, "/workorders", body)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	suite.mockCommands.AssertNotCalled(suite.T(), "CreateWorkOrder",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *WorkOrderControllerTestSuite) TestErrorKindStatusMapping() {
	testCases := []struct {
		name     string
		err      *models.AppError
		expected int
	}{
		{"Not found", models.NewAppError(models.ErrNotFound, "work order not found"), http.StatusNotFound},
		{"Conflict", models.NewAppError(models.ErrConflict, "cancelled"), http.StatusConflict},
		{"Dangling reference", models.NewAppError(models.ErrReferenceNotFound, "project missing"), http.StatusUnprocessableEntity},
		{"Timeout", models.NewAppError(models.ErrTimeout, "storage deadline"), http.StatusGatewayTimeout},
		{"Audit write failed", models.NewAppError(models.ErrAuditWriteFailed, "audit lost"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.mockCommands.ExpectedCalls = nil
			suite.mockCommands.On("CreateWorkOrder", mock.Anything, mock.Anything, "tech-1", mock.Anything).
				Return(nil, tc.err)

			w := suite.perform(http.MethodPost, "/workorders", createBody())

			assert.Equal(suite.T(), tc.expected, w.Code)

			var resp models.APIResponse
			assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(suite.T(), string(tc.err.Kind), resp.Error.Type)
		})
	}
}

func (suite *WorkOrderControllerTestSuite) TestGetWorkOrder() {
	wo := &models.WorkOrder{WorkOrderID: "wo-1"}
	suite.mockQueries.On("GetWorkOrder", mock.Anything, "wo-1").Return(wo, nil)

	w := suite.perform(http.MethodGet, "/workorders/wo-1", nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestGetWorkOrderNotFound() {
	suite.mockQueries.On("GetWorkOrder", mock.Anything, "wo-404").
		Return(nil, models.NewAppError(models.ErrNotFound, "work order not found"))

	w := suite.perform(http.MethodGet, "/workorders/wo-404", nil)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestListWorkOrdersParsesQuery() {
	page := &models.WorkOrderPage{
		Items:      []*models.WorkOrder{{WorkOrderID: "wo-1"}},
		Pagination: models.Pagination{Total: 1, Page: 2, Limit: 5, TotalPages: 1},
	}

	suite.mockQueries.On("ListWorkOrders", mock.Anything,
		mock.MatchedBy(func(f *models.WorkOrderFilter) bool {
			return f.Priority == models.PriorityHigh && f.IncludeCancelled && f.Search == "pump"
		}),
		models.SortSpec{Field: "priority", Descending: true},
		models.PageSpec{Page: 2, Limit: 5}).Return(page, nil)

	w := suite.perform(http.MethodGet,
		"/workorders?priority=high&include_cancelled=true&q=pump&sort_by=priority&sort_dir=desc&page=2&limit=5", nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var resp models.APIResponse
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(suite.T(), 1, resp.Pagination.Total)
}

func (suite *WorkOrderControllerTestSuite) TestListWorkOrdersBadPage() {
	w := suite.perform(http.MethodGet, "/workorders?page=zero", nil)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestUpdateWorkOrderRoutesUnknownFields() {
	wo := &models.WorkOrder{WorkOrderID: "wo-1", Assignee: "tech-2"}

	suite.mockCommands.On("UpdateWorkOrder", mock.Anything, "wo-1",
		mock.MatchedBy(func(r *models.UpdateWorkOrderRequest) bool {
			_, hasStatus := r.Extra["status"]
			return r.Assignee != nil && *r.Assignee == "tech-2" && hasStatus
		}), "tech-1", mock.Anything).Return(wo, nil)

	w := suite.perform(http.MethodPatch, "/workorders/wo-1", map[string]interface{}{
		"assignee": "tech-2",
		"status":   "finalized",
	})

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestCancelWorkOrder() {
	wo := &models.WorkOrder{WorkOrderID: "wo-1", Status: models.WorkOrderStatusCancelled}
	suite.mockCommands.On("CancelWorkOrder", mock.Anything, "wo-1", "tech-1", mock.Anything).Return(wo, nil)

	w := suite.perform(http.MethodDelete, "/workorders/wo-1", nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestCompleteStageRequiresPhotos() {
	w := suite.perform(http.MethodPost, "/workorders/wo-1/stages/complete", map[string]interface{}{
		"stageName": "prep",
	})

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	suite.mockCommands.AssertNotCalled(suite.T(), "CompleteStage",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *WorkOrderControllerTestSuite) TestCompleteStage() {
	wo := &models.WorkOrder{WorkOrderID: "wo-1", Status: models.WorkOrderStatusInProgress}

	suite.mockCommands.On("CompleteStage", mock.Anything, "wo-1",
		mock.MatchedBy(func(r *models.CompleteStageRequest) bool {
			return r.StageName == "prep" && len(r.Photos) == 1
		}), "tech-1", mock.Anything).Return(wo, nil)

	w := suite.perform(http.MethodPost, "/workorders/wo-1/stages/complete", map[string]interface{}{
		"stageName": "prep",
		"photos":    []map[string]interface{}{{"name": "before.jpg"}},
	})

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestRegisterReportRejectsBadURL() {
	w := suite.perform(http.MethodPost, "/workorders/wo-1/report", map[string]interface{}{
		"reportURL": "not-a-url",
	})

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestRegisterReportPreconditionFailed() {
	suite.mockCommands.On("RegisterReport", mock.Anything, "wo-1", mock.Anything, "tech-1", mock.Anything).
		Return(nil, models.NewAppError(models.ErrPreconditionFailed, "not enough photo evidence"))

	w := suite.perform(http.MethodPost, "/workorders/wo-1/report", map[string]interface{}{
		"reportURL": "https://reports.example.com/wo-1.pdf",
	})

	assert.Equal(suite.T(), http.StatusPreconditionFailed, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestGetHistory() {
	page := &models.AuditPage{
		Items:      []*models.AuditRecord{{AuditID: "a-1"}},
		Pagination: models.Pagination{Total: 1, Page: 1, Limit: 20, TotalPages: 1},
	}
	suite.mockQueries.On("History", mock.Anything, "wo-1", models.PageSpec{Page: 1, Limit: 20}).Return(page, nil)

	w := suite.perform(http.MethodGet, "/workorders/wo-1/history", nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *WorkOrderControllerTestSuite) TestListSupportRequests() {
	requests := []*models.WorkOrder{{WorkOrderID: "wo-2", SupportRequested: true}}
	suite.mockQueries.On("ListSupportRequests", mock.Anything).Return(requests, nil)

	w := suite.perform(http.MethodGet, "/support-requests", nil)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func TestWorkOrderControllerTestSuite(t *testing.T) {
	suite.Run(t, new(WorkOrderControllerTestSuite))
}
