package models

import (
	"math"
	"time"
)

type WorkOrderStatus string

const (
	WorkOrderStatusPending    WorkOrderStatus = "pending"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusFinalized  WorkOrderStatus = "finalized"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceCorrective MaintenanceType = "corrective"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// StageWeightEpsilon is the tolerance applied when checking that a stage
// template's weights sum to 1.0.
const StageWeightEpsilon = 1e-6

// Photo is evidence attached to a stage. The payload is opaque to the core:
// either an inline blob or a storage reference, never both required.
type Photo struct {
	Name    string    `json:"name" dynamodbav:"name"`
	Caption string    `json:"caption,omitempty" dynamodbav:"caption,omitempty"`
	URL     string    `json:"url,omitempty" dynamodbav:"url,omitempty"`
	Data    []byte    `json:"data,omitempty" dynamodbav:"data,omitempty"`
	TakenAt time.Time `json:"takenAt" dynamodbav:"takenAt"`
}

// Stage is a weighted, independently completable unit of work. Completion is
// gated on at least one attached photo.
type Stage struct {
	Name        string     `json:"name" dynamodbav:"name" validate:"required"`
	Description string     `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Weight      float64    `json:"weight" dynamodbav:"weight" validate:"required,gt=0,lte=1"`
	Completed   bool       `json:"completed" dynamodbav:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completedAt,omitempty"`
	Photos      []Photo    `json:"photos" dynamodbav:"photos"`
}

// ProjectRef is a weak link to an external project. Name is denormalized at
// link time and never refreshed.
type ProjectRef struct {
	ProjectID string `json:"projectID" dynamodbav:"projectID"`
	Name      string `json:"name" dynamodbav:"name"`
}

// PointRef is a weak link to an external point, with type and coordinates
// denormalized at link time.
type PointRef struct {
	PointID   string  `json:"pointID" dynamodbav:"pointID"`
	Type      string  `json:"type" dynamodbav:"type"`
	Latitude  float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude float64 `json:"longitude" dynamodbav:"longitude"`
}

type WorkOrder struct {
	WorkOrderID      string          `json:"workOrderID" dynamodbav:"workOrderID" validate:"omitempty,uuid4"`
	DeviceName       string          `json:"deviceName,omitempty" dynamodbav:"deviceName,omitempty"`
	SiteName         string          `json:"siteName" dynamodbav:"siteName" validate:"required"`
	Location         string          `json:"location" dynamodbav:"location" validate:"required"`
	TaskType         string          `json:"taskType" dynamodbav:"taskType" validate:"required"`
	MaintenanceType  MaintenanceType `json:"maintenanceType" dynamodbav:"maintenanceType" validate:"required,oneof=preventive corrective"`
	Description      string          `json:"description" dynamodbav:"description" validate:"required"`
	Priority         Priority        `json:"priority" dynamodbav:"priority" validate:"required,oneof=high medium low"`
	ScheduledDate    time.Time       `json:"scheduledDate" dynamodbav:"scheduledDate"`
	CompletedDate    *time.Time      `json:"completedDate,omitempty" dynamodbav:"completedDate,omitempty"`
	Assignee         string          `json:"assignee" dynamodbav:"assignee" validate:"required"`
	Stages           []Stage         `json:"stages" dynamodbav:"stages"`
	Status           WorkOrderStatus `json:"status" dynamodbav:"status"`
	SupportRequested bool            `json:"supportRequested" dynamodbav:"supportRequested"`
	SupportDetails   string          `json:"supportDetails,omitempty" dynamodbav:"supportDetails,omitempty"`
	ReportGenerated  bool            `json:"reportGenerated" dynamodbav:"reportGenerated"`
	ReportURL        string          `json:"reportURL,omitempty" dynamodbav:"reportURL,omitempty"`
	Project          *ProjectRef     `json:"project,omitempty" dynamodbav:"project,omitempty"`
	Point            *PointRef       `json:"point,omitempty" dynamodbav:"point,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt" dynamodbav:"updatedAt"`
	CreatedBy        string          `json:"createdBy" dynamodbav:"createdBy"`
	UpdatedBy        string          `json:"updatedBy,omitempty" dynamodbav:"updatedBy,omitempty"`
}

// Progress returns the completed weight fraction, clamped to [0,1].
func (w *WorkOrder) Progress() float64 {
	var sum float64
	for _, s := range w.Stages {
		if s.Completed {
			sum += s.Weight
		}
	}
	return math.Min(math.Max(sum, 0), 1)
}

// DeriveStatus computes the lifecycle status from progress. Cancelled is
// sticky and can only be entered through an explicit cancel command.
func (w *WorkOrder) DeriveStatus() WorkOrderStatus {
	if w.Status == WorkOrderStatusCancelled {
		return WorkOrderStatusCancelled
	}
	p := w.Progress()
	switch {
	case p >= 1.0-StageWeightEpsilon:
		return WorkOrderStatusFinalized
	case p > 0:
		return WorkOrderStatusInProgress
	default:
		return WorkOrderStatusPending
	}
}

// EvidenceCount returns the total number of photos attached across stages.
func (w *WorkOrder) EvidenceCount() int {
	n := 0
	for _, s := range w.Stages {
		n += len(s.Photos)
	}
	return n
}

// CanFinalizeReport reports whether enough evidence has been collected for a
// report to be registered. The minimum is product policy and comes from
// configuration.
func (w *WorkOrder) CanFinalizeReport(minEvidence int) bool {
	return w.EvidenceCount() >= minEvidence
}

// StageByName returns the index of the named stage, or -1.
func (w *WorkOrder) StageByName(name string) int {
	for i := range w.Stages {
		if w.Stages[i].Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so lifecycle computations never mutate the
// caller's snapshot.
func (w *WorkOrder) Clone() *WorkOrder {
	out := *w
	if w.CompletedDate != nil {
		d := *w.CompletedDate
		out.CompletedDate = &d
	}
	if w.Project != nil {
		p := *w.Project
		out.Project = &p
	}
	if w.Point != nil {
		p := *w.Point
		out.Point = &p
	}
	out.Stages = make([]Stage, len(w.Stages))
	copy(out.Stages, w.Stages)
	for i := range out.Stages {
		if w.Stages[i].CompletedAt != nil {
			t := *w.Stages[i].CompletedAt
			out.Stages[i].CompletedAt = &t
		}
		if len(w.Stages[i].Photos) > 0 {
			out.Stages[i].Photos = make([]Photo, len(w.Stages[i].Photos))
			copy(out.Stages[i].Photos, w.Stages[i].Photos)
		}
	}
	return &out
}

type StageInput struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight" validate:"required,gt=0,lte=1"`
}

type CreateWorkOrderRequest struct {
	DeviceName      string          `json:"deviceName,omitempty"`
	SiteName        string          `json:"siteName" validate:"required"`
	Location        string          `json:"location" validate:"required"`
	TaskType        string          `json:"taskType" validate:"required"`
	MaintenanceType MaintenanceType `json:"maintenanceType" validate:"required,oneof=preventive corrective"`
	Description     string          `json:"description" validate:"required"`
	Priority        Priority        `json:"priority" validate:"required,oneof=high medium low"`
	ScheduledDate   time.Time       `json:"scheduledDate" validate:"required"`
	Assignee        string          `json:"assignee" validate:"required"`
	Stages          []StageInput    `json:"stages" validate:"required,min=1,dive"`
	ProjectID       string          `json:"projectID,omitempty"`
	PointID         string          `json:"pointID,omitempty"`
}

// UpdateWorkOrderRequest is the whitelist patch. Status is intentionally
// absent: it is derived, never set. Pointer fields distinguish "leave alone"
// from "set to zero value".
type UpdateWorkOrderRequest struct {
	DeviceName      *string          `json:"deviceName,omitempty"`
	SiteName        *string          `json:"siteName,omitempty" validate:"omitempty,min=1"`
	Location        *string          `json:"location,omitempty" validate:"omitempty,min=1"`
	TaskType        *string          `json:"taskType,omitempty" validate:"omitempty,min=1"`
	MaintenanceType *MaintenanceType `json:"maintenanceType,omitempty" validate:"omitempty,oneof=preventive corrective"`
	Description     *string          `json:"description,omitempty" validate:"omitempty,min=1"`
	Priority        *Priority        `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	ScheduledDate   *time.Time       `json:"scheduledDate,omitempty"`
	Assignee        *string          `json:"assignee,omitempty" validate:"omitempty,min=1"`
	SupportDetails  *string          `json:"supportDetails,omitempty"`

	// Extra carries fields the caller sent that are not in the whitelist.
	// They are logged and dropped, never applied.
	Extra map[string]interface{} `json:"-"`
}

type CompleteStageRequest struct {
	StageName string  `json:"stageName" validate:"required"`
	Photos    []Photo `json:"photos" validate:"required,min=1"`
}

type RequestSupportRequest struct {
	Details string `json:"details" validate:"required"`
}

type RegisterReportRequest struct {
	ReportURL string `json:"reportURL" validate:"required,url"`
}

type WorkOrderFilter struct {
	Status           WorkOrderStatus `json:"status,omitempty"`
	TaskType         string          `json:"taskType,omitempty"`
	MaintenanceType  MaintenanceType `json:"maintenanceType,omitempty"`
	Priority         Priority        `json:"priority,omitempty"`
	Location         string          `json:"location,omitempty"`
	Assignee         string          `json:"assignee,omitempty"`
	ProjectID        string          `json:"projectID,omitempty"`
	PointID          string          `json:"pointID,omitempty"`
	ScheduledFrom    time.Time       `json:"scheduledFrom,omitempty"`
	ScheduledTo      time.Time       `json:"scheduledTo,omitempty"`
	Search           string          `json:"search,omitempty"`
	IncludeCancelled bool            `json:"includeCancelled,omitempty"`
}

type SortSpec struct {
	Field      string `json:"field,omitempty"`
	Descending bool   `json:"descending,omitempty"`
}

type PageSpec struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type WorkOrderPage struct {
	Items      []*WorkOrder `json:"items"`
	Pagination Pagination   `json:"pagination"`
}
