package services

import (
	"context"
	"sort"
	"strings"

	"fieldops-backend/models"
	"fieldops-backend/repository"
	"fieldops-backend/utils/logger"
)

// QueryService is the read path: filtered, paginated, sorted listings plus
// audit history. It never mutates anything.
type QueryService struct {
	repo   repository.WorkOrderRepositoryInterface
	ledger repository.Ledger
	logger logger.Logger
}

func NewQueryService(repo repository.WorkOrderRepositoryInterface, ledger repository.Ledger, log logger.Logger) *QueryService {
	return &QueryService{
		repo:   repo,
		ledger: ledger,
		logger: log,
	}
}

func (s *QueryService) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	wo, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo == nil {
		return nil, models.NewAppError(models.ErrNotFound, "work order not found")
	}
	return wo, nil
}

func (s *QueryService) ListWorkOrders(ctx context.Context, filter *models.WorkOrderFilter, sortSpec models.SortSpec, page models.PageSpec) (*models.WorkOrderPage, error) {
	if filter == nil {
		filter = &models.WorkOrderFilter{}
	}

	all, err := s.repo.ListWorkOrders(ctx)
	if err != nil {
		return nil, err
	}

	filtered := applyFilter(all, filter)
	sortWorkOrders(filtered, sortSpec)

	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = 20
	}

	total := len(filtered)
	totalPages := (total + page.Limit - 1) / page.Limit
	start := (page.Page - 1) * page.Limit
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	return &models.WorkOrderPage{
		Items: filtered[start:end],
		Pagination: models.Pagination{
			Total:      total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: totalPages,
		},
	}, nil
}

// ListSupportRequests is the derived projection of work orders with an open
// support request. It is reconstructed from the authoritative store on every
// call; the collection is bounded so the recompute stays cheap.
func (s *QueryService) ListSupportRequests(ctx context.Context) ([]*models.WorkOrder, error) {
	all, err := s.repo.ListWorkOrders(ctx)
	if err != nil {
		return nil, err
	}
	requests := make([]*models.WorkOrder, 0)
	for _, wo := range all {
		if wo.SupportRequested && wo.Status != models.WorkOrderStatusCancelled {
			requests = append(requests, wo)
		}
	}
	return requests, nil
}

func (s *QueryService) History(ctx context.Context, id string, page models.PageSpec) (*models.AuditPage, error) {
	return s.ledger.History(ctx, models.EntityTypeWorkOrder, id, page)
}

func applyFilter(workOrders []*models.WorkOrder, filter *models.WorkOrderFilter) []*models.WorkOrder {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	filtered := make([]*models.WorkOrder, 0, len(workOrders))
	for _, wo := range workOrders {
		// Cancelled orders are hidden unless asked for, either explicitly
		// via the flag or by filtering on the cancelled status itself.
		if wo.Status == models.WorkOrderStatusCancelled &&
			!filter.IncludeCancelled && filter.Status != models.WorkOrderStatusCancelled {
			continue
		}
		if filter.Status != "" && wo.Status != filter.Status {
			continue
		}
		if filter.TaskType != "" && wo.TaskType != filter.TaskType {
			continue
		}
		if filter.MaintenanceType != "" && wo.MaintenanceType != filter.MaintenanceType {
			continue
		}
		if filter.Priority != "" && wo.Priority != filter.Priority {
			continue
		}
		if filter.Location != "" && wo.Location != filter.Location {
			continue
		}
		if filter.Assignee != "" && wo.Assignee != filter.Assignee {
			continue
		}
		if filter.ProjectID != "" && (wo.Project == nil || wo.Project.ProjectID != filter.ProjectID) {
			continue
		}
		if filter.PointID != "" && (wo.Point == nil || wo.Point.PointID != filter.PointID) {
			continue
		}
		if !filter.ScheduledFrom.IsZero() && wo.ScheduledDate.Before(filter.ScheduledFrom) {
			continue
		}
		if !filter.ScheduledTo.IsZero() && wo.ScheduledDate.After(filter.ScheduledTo) {
			continue
		}
		if search != "" && !matchesSearch(wo, search) {
			continue
		}
		filtered = append(filtered, wo)
	}
	return filtered
}

func matchesSearch(wo *models.WorkOrder, search string) bool {
	return strings.Contains(strings.ToLower(wo.DeviceName), search) ||
		strings.Contains(strings.ToLower(wo.SiteName), search) ||
		strings.Contains(strings.ToLower(wo.Description), search)
}

var priorityRank = map[models.Priority]int{
	models.PriorityHigh:   0,
	models.PriorityMedium: 1,
	models.PriorityLow:    2,
}

func sortWorkOrders(workOrders []*models.WorkOrder, spec models.SortSpec) {
	if spec.Field == "" {
		spec.Field = "scheduledDate"
	}

	less := func(a, b *models.WorkOrder) bool {
		switch spec.Field {
		case "createdAt":
			return a.CreatedAt.Before(b.CreatedAt)
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "priority":
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		case "status":
			return a.Status < b.Status
		case "siteName":
			return a.SiteName < b.SiteName
		case "assignee":
			return a.Assignee < b.Assignee
		default:
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
	}

	sort.SliceStable(workOrders, func(i, j int) bool {
		if spec.Descending {
			return less(workOrders[j], workOrders[i])
		}
		return less(workOrders[i], workOrders[j])
	})
}
