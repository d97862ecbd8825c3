package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldops-backend/middelware"
	"fieldops-backend/models"
	"fieldops-backend/services"
	"fieldops-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type WorkOrderController struct {
	ctx      context.Context
	commands services.WorkOrderServiceInterface
	queries  services.QueryServiceInterface
	logger   logger.Logger
	validate *validator.Validate
}

func NewWorkOrderController(ctx context.Context, commands services.WorkOrderServiceInterface, queries services.QueryServiceInterface, log logger.Logger) *WorkOrderController {
	return &WorkOrderController{
		ctx:      ctx,
		commands: commands,
		queries:  queries,
		logger:   log,
		validate: validator.New(),
	}
}

// statusForKind maps the error taxonomy onto HTTP status codes in one place.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrValidation:
		return http.StatusBadRequest
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrReferenceNotFound, models.ErrEvidenceRequired:
		return http.StatusUnprocessableEntity
	case models.ErrConflict:
		return http.StatusConflict
	case models.ErrPreconditionFailed:
		return http.StatusPreconditionFailed
	case models.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *WorkOrderController) respondError(c *gin.Context, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		c.JSON(statusForKind(appErr.Kind), models.APIResponse{
			Status:  "error",
			Code:    statusForKind(appErr.Kind),
			Message: appErr.Message,
			Error: &models.APIError{
				Type:      string(appErr.Kind),
				Details:   appErr.Message,
				Field:     appErr.Field,
				Retryable: appErr.Retryable,
			},
		})
		return
	}

	h.logger.Errorf("Unclassified error: %v", err)
	c.JSON(http.StatusInternalServerError, models.APIResponse{
		Status:  "error",
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
		Error: &models.APIError{
			Type:    "InternalError",
			Details: err.Error(),
		},
	})
}

func (h *WorkOrderController) respondBadRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, models.APIResponse{
		Status:  "error",
		Code:    http.StatusBadRequest,
		Message: "Invalid request",
		Error: &models.APIError{
			Type:    string(models.ErrValidation),
			Details: details,
		},
	})
}

func (h *WorkOrderController) formatValidationErrors(err error) string {
	var errorMessages []string

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			switch fieldError.Tag() {
			case "required":
				errorMessages = append(errorMessages, fieldError.Field()+" is required")
			case "min":
				errorMessages = append(errorMessages, fieldError.Field()+" must be at least "+fieldError.Param()+" characters/items")
			case "max":
				errorMessages = append(errorMessages, fieldError.Field()+" must be at most "+fieldError.Param()+" characters/items")
			case "oneof":
				errorMessages = append(errorMessages, fieldError.Field()+" must be one of: "+strings.ReplaceAll(fieldError.Param(), " ", ", "))
			case "url":
				errorMessages = append(errorMessages, fieldError.Field()+" must be a valid URL")
			default:
				errorMessages = append(errorMessages, fieldError.Field()+" is invalid")
			}
		}
	}

	return strings.Join(errorMessages, "; ")
}

func requestMeta(c *gin.Context) *models.RequestMeta {
	return &models.RequestMeta{
		Origin:    c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// CreateWorkOrder handles POST /api/v1/workorders
// @Summary Create a new work order
// @Description Create a work order with its stage template and optional project/point links
// @Tags Work Order Management
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.CreateWorkOrderRequest true "Create work order request"
// @Success 201 {object} models.APIResponse "Work order created successfully"
// @Failure 400 {object} models.APIResponse "Bad Request - Invalid work order data"
// @Failure 422 {object} models.APIResponse "Unprocessable - Dangling project/point reference"
// @Router /workorders [post]
func (h *WorkOrderController) CreateWorkOrder(c *gin.Context) {
	var req models.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind JSON:", err)
		h.respondBadRequest(c, err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.logger.Error("Validation failed:", err)
		h.respondBadRequest(c, h.formatValidationErrors(err))
		return
	}

	wo, err := h.commands.CreateWorkOrder(c.Request.Context(), &req, middelware.Actor(c), requestMeta(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.APIResponse{
		Status:  "success",
		Code:    http.StatusCreated,
		Message: "Work order created successfully",
		Data:    wo,
	})
}

// ListWorkOrders handles GET /api/v1/workorders
// @Summary List work orders
// @Description Filtered, paginated, sorted work order listing; cancelled orders excluded unless requested
// @Tags Work Order Management
// @Security BearerAuth
// @Produce json
// @Param status query string false "Status filter"
// @Param task_type query string false "Task type filter"
// @Param maintenance_type query string false "Maintenance type filter"
// @Param priority query string false "Priority filter"
// @Param location query string false "Location filter"
// @Param assignee query string false "Assignee filter"
// @Param project_id query string false "Project filter"
// @Param point_id query string false "Point filter"
// @Param scheduled_from query string false "Scheduled date lower bound (RFC3339)"
// @Param scheduled_to query string false "Scheduled date upper bound (RFC3339)"
// @Param q query string false "Free text search across device/site/description"
// @Param include_cancelled query bool false "Include cancelled work orders"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort_by query string false "Sort field"
// @Param sort_dir query string false "asc or desc"
// @Success 200 {object} models.APIResponse "Work orders"
// @Router /workorders [get]
func (h *WorkOrderController) ListWorkOrders(c *gin.Context) {
	filter := &models.WorkOrderFilter{
		Status:           models.WorkOrderStatus(c.Query("status")),
		TaskType:         c.Query("task_type"),
		MaintenanceType:  models.MaintenanceType(c.Query("maintenance_type")),
		Priority:         models.Priority(c.Query("priority")),
		Location:         c.Query("location"),
		Assignee:         c.Query("assignee"),
		ProjectID:        c.Query("project_id"),
		PointID:          c.Query("point_id"),
		Search:           c.Query("q"),
		IncludeCancelled: c.Query("include_cancelled") == "true",
	}
	if from := c.Query("scheduled_from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.respondBadRequest(c, "scheduled_from must be RFC3339")
			return
		}
		filter.ScheduledFrom = t
	}
	if to := c.Query("scheduled_to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.respondBadRequest(c, "scheduled_to must be RFC3339")
			return
		}
		filter.ScheduledTo = t
	}

	sortSpec := models.SortSpec{
		Field:      c.Query("sort_by"),
		Descending: c.Query("sort_dir") == "desc",
	}

	page, err := pageSpec(c)
	if err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	result, err := h.queries.ListWorkOrders(c.Request.Context(), filter, sortSpec, page)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:     "success",
		Code:       http.StatusOK,
		Data:       result.Items,
		Pagination: &result.Pagination,
	})
}

func pageSpec(c *gin.Context) (models.PageSpec, error) {
	spec := models.PageSpec{Page: 1, Limit: 20}
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return spec, errors.New("page must be a positive integer")
		}
		spec.Page = n
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return spec, errors.New("limit must be a positive integer")
		}
		spec.Limit = n
	}
	return spec, nil
}

// GetWorkOrder handles GET /api/v1/workorders/:id
// @Summary Get a work order
// @Tags Work Order Management
// @Security BearerAuth
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} models.APIResponse "Work order"
// @Failure 404 {object} models.APIResponse "Not Found"
// @Router /workorders/{id} [get]
func (h *WorkOrderController) GetWorkOrder(c *gin.Context) {
	wo, err := h.queries.GetWorkOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status: "success",
		Code:   http.StatusOK,
		Data:   wo,
	})
}

// updatableFields is the patch whitelist as it appears on the wire. Anything
// else in the body is reported back to the service as an ignored field.
var updatableFields = map[string]bool{
	"deviceName":      true,
	"siteName":        true,
	"location":        true,
	"taskType":        true,
	"maintenanceType": true,
	"description":     true,
	"priority":        true,
	"scheduledDate":   true,
	"assignee":        true,
	"supportDetails":  true,
}

// UpdateWorkOrder handles PATCH /api/v1/workorders/:id
// @Summary Update a work order
// @Description Apply a whitelisted patch; unknown fields are ignored with a warning, status is never patchable
// @Tags Work Order Management
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param request body models.UpdateWorkOrderRequest true "Patch"
// @Success 200 {object} models.APIResponse "Updated work order"
// @Failure 404 {object} models.APIResponse "Not Found"
// @Router /workorders/{id} [patch]
func (h *WorkOrderController) UpdateWorkOrder(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		h.respondBadRequest(c, "request body must be a JSON object")
		return
	}

	var req models.UpdateWorkOrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.respondBadRequest(c, h.formatValidationErrors(err))
		return
	}

	req.Extra = make(map[string]interface{})
	for field, value := range fields {
		if !updatableFields[field] {
			req.Extra[field] = value
		}
	}

	wo, err := h.commands.UpdateWorkOrder(c.Request.Context(), c.Param("id"), &req, middelware.Actor(c), requestMeta(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "Work order updated successfully",
		Data:    wo,
	})
}

// CancelWorkOrder handles DELETE /api/v1/workorders/:id
// @Summary Cancel a work order
// @Description Soft delete: the work order moves to its terminal cancelled state and drops out of default listings
// @Tags Work Order Management
// @Security BearerAuth
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} models.APIResponse "Cancelled work order"
// @Failure 404 {object} models.APIResponse "Not Found"
// @Router /workorders/{id} [delete]
func (h *WorkOrderController) CancelWorkOrder(c *gin.Context) {
	wo, err := h.commands.CancelWorkOrder(c.Request.Context(), c.Param("id"), middelware.Actor(c), requestMeta(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "Work order cancelled",
		Data:    wo,
	})
}

// CompleteStage handles POST /api/v1/workorders/:id/stages/complete
// @Summary Complete a stage
// @Description Mark a stage complete with photographic evidence; progress and status are re-derived
// @Tags Work Order Management
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param request body models.CompleteStageRequest true "Stage completion"
// @Success 200 {object} models.APIResponse "Updated work order"
// @Failure 422 {object} models.APIResponse "Unprocessable - No evidence attached"
// @Router /workorders/{id}/stages/complete [post]
func (h *WorkOrderController) CompleteStage(c *gin.Context) {
	var req models.CompleteStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.respondBadRequest(c, h.formatValidationErrors(err))
		return
	}

	wo, err := h.commands.CompleteStage(c.Request.Context(), c.Param("id"), &req, middelware.Actor(c), requestMeta(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "Stage completed",
		Data:    wo,
	})
}

// RequestSupport handles POST /api/v1/workorders/:id/support
// @Summary Request support
// @Description Flag a work order for support; a second request is rejected as a conflict
// @Tags Work Order Management
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param request body models.RequestSupportRequest true "Support details"
// @Success 200 {object} models.APIResponse "Updated work order"
// @Failure 409 {object} models.APIResponse "Conflict - Support already requested"
// @Router /workorders/{id}/support [post]
func (h *WorkOrderController) RequestSupport(c *gin.Context) {
	var req models.RequestSupportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.respondBadRequest(c, h.formatValidationErrors(err))
		return
	}

	wo, err := h.commands.RequestSupport(c.Request.Context(), c.Param("id"), &req, middelware.Actor(c), requestMeta(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "Support requested",
		Data:    wo,
	})
}

// RegisterReport handles POST /api/v1/workorders/:id/report
// @Summary Register a generated report
// @Description Record the report reference once the minimum evidence policy is met
// @Tags Work Order Management
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param request body models.RegisterReportRequest true "Report reference"
// @Success 200 {object} models.APIResponse "Updated work order"
// @Failure 412 {object} models.APIResponse "Precondition Failed - Not enough evidence"
// @Router /workorders/{id}/report [post]
func (h *WorkOrderController) RegisterReport(c *gin.Context) {
	var req models.RegisterReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.respondBadRequest(c, h.formatValidationErrors(err))
		return
	}

	wo, err := h.commands.RegisterReport(c.Request.Context(), c.Param("id"), &req, middelware.Actor(c), requestMeta(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: "Report registered",
		Data:    wo,
	})
}

// GetHistory handles GET /api/v1/workorders/:id/history
// @Summary Work order audit history
// @Description Paginated, newest-first audit records for one work order
// @Tags Work Order Management
// @Security BearerAuth
// @Produce json
// @Param id path string true "Work order ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.APIResponse "Audit records"
// @Router /workorders/{id}/history [get]
func (h *WorkOrderController) GetHistory(c *gin.Context) {
	page, err := pageSpec(c)
	if err != nil {
		h.respondBadRequest(c, err.Error())
		return
	}

	result, err := h.queries.History(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status:     "success",
		Code:       http.StatusOK,
		Data:       result.Items,
		Pagination: &result.Pagination,
	})
}

// ListSupportRequests handles GET /api/v1/support-requests
// @Summary List open support requests
// @Description Derived projection of work orders flagged for support
// @Tags Work Order Management
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse "Work orders with open support requests"
// @Router /support-requests [get]
func (h *WorkOrderController) ListSupportRequests(c *gin.Context) {
	requests, err := h.queries.ListSupportRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Status: "success",
		Code:   http.StatusOK,
		Data:   requests,
	})
}
