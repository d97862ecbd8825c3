package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

type AuditAction string

const (
	AuditActionCreate           AuditAction = "create"
	AuditActionUpdate           AuditAction = "update"
	AuditActionStageUpdate      AuditAction = "stage_update"
	AuditActionStatusChange     AuditAction = "status_change"
	AuditActionSupportRequest   AuditAction = "support_request"
	AuditActionReportRegistered AuditAction = "report_registered"
	AuditActionCancel           AuditAction = "cancel"
)

// EntityTypeWorkOrder is the only entity type the ledger tracks today; the
// records are keyed generically so new entity types need no schema change.
const EntityTypeWorkOrder = "work_order"

// SystemActor is recorded as PerformedBy for system-initiated cancellations,
// the only operation permitted without an authenticated actor.
const SystemActor = "system"

// FieldChange is one entry in an audit diff.
type FieldChange struct {
	From interface{} `json:"from" dynamodbav:"from"`
	To   interface{} `json:"to" dynamodbav:"to"`
}

// RequestMeta carries optional transport-level context into the audit trail.
type RequestMeta struct {
	Origin    string `json:"origin,omitempty" dynamodbav:"origin,omitempty"`
	UserAgent string `json:"userAgent,omitempty" dynamodbav:"userAgent,omitempty"`
	Note      string `json:"note,omitempty" dynamodbav:"note,omitempty"`
}

// AuditRecord documents exactly one state mutation. Records are written once
// by the ledger and never updated or deleted. EntityKey is the
// "entityType#entityID" partition key of the history index, populated at
// write time.
type AuditRecord struct {
	AuditID     string                 `json:"auditID" dynamodbav:"auditID"`
	EntityType  string                 `json:"entityType" dynamodbav:"entityType"`
	EntityID    string                 `json:"entityID" dynamodbav:"entityID"`
	EntityKey   string                 `json:"-" dynamodbav:"entityKey"`
	Action      AuditAction            `json:"action" dynamodbav:"action"`
	Changes     map[string]FieldChange `json:"changes" dynamodbav:"changes"`
	PerformedBy string                 `json:"performedBy" dynamodbav:"performedBy"`
	Meta        *RequestMeta           `json:"meta,omitempty" dynamodbav:"meta,omitempty"`
	CreatedAt   time.Time              `json:"createdAt" dynamodbav:"createdAt"`
	// CreatedAtSort is the history index range key, in epoch nanoseconds.
	// The RFC3339 encoding of CreatedAt trims trailing sub-second zeros, so
	// its lexical order is not chronological on sub-second ties.
	CreatedAtSort int64 `json:"-" dynamodbav:"createdAtSort"`
}

type AuditPage struct {
	Items      []*AuditRecord `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// ComputeDiff flattens both snapshots through their JSON representation and
// returns a map holding only the top-level fields whose values differ. Using
// the JSON form keeps diff keys aligned with the persisted field names and
// makes the comparison independent of Go-level pointer identity.
func ComputeDiff(before, after interface{}) (map[string]FieldChange, error) {
	beforeMap, err := toFieldMap(before)
	if err != nil {
		return nil, fmt.Errorf("flatten before snapshot: %w", err)
	}
	afterMap, err := toFieldMap(after)
	if err != nil {
		return nil, fmt.Errorf("flatten after snapshot: %w", err)
	}

	changes := make(map[string]FieldChange)
	for field, afterVal := range afterMap {
		beforeVal, existed := beforeMap[field]
		if !existed {
			changes[field] = FieldChange{From: nil, To: afterVal}
			continue
		}
		if !reflect.DeepEqual(beforeVal, afterVal) {
			changes[field] = FieldChange{From: beforeVal, To: afterVal}
		}
	}
	for field, beforeVal := range beforeMap {
		if _, stillThere := afterMap[field]; !stillThere {
			changes[field] = FieldChange{From: beforeVal, To: nil}
		}
	}
	return changes, nil
}

func toFieldMap(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
