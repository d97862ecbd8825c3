package worker

import (
	"context"
	"time"

	"fieldops-backend/models"
	"fieldops-backend/repository"
	"fieldops-backend/utils/logger"
)

// SweepReport summarizes one audit-consistency sweep run.
type SweepReport struct {
	Scanned   int       `json:"scanned"`
	Checked   int       `json:"checked"`
	Orphaned  []string  `json:"orphaned"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// AuditSweep detects work orders whose latest mutation has no matching
// ledger record. Under the sequential write regime an audit write can fail
// after the entity write succeeded; the sweep surfaces those gaps so an
// operator can reconcile them.
type AuditSweep struct {
	workOrders repository.WorkOrderRepositoryInterface
	audits     repository.AuditRepositoryInterface
	config     *models.Config
	logger     logger.Logger
	now        func() time.Time
}

func NewAuditSweep(workOrders repository.WorkOrderRepositoryInterface, audits repository.AuditRepositoryInterface, cfg *models.Config, log logger.Logger) *AuditSweep {
	return &AuditSweep{
		workOrders: workOrders,
		audits:     audits,
		config:     cfg,
		logger:     log,
		now:        time.Now,
	}
}

// Run scans work orders updated within the configured horizon and verifies
// each has an audit record at least as recent as its UpdatedAt timestamp.
func (s *AuditSweep) Run(ctx context.Context) (*SweepReport, error) {
	started := s.now()
	report := &SweepReport{StartedAt: started}

	orders, err := s.workOrders.ListWorkOrders(ctx)
	if err != nil {
		return nil, err
	}
	report.Scanned = len(orders)

	cutoff := started.Add(-s.config.SweepHorizon)

	for _, wo := range orders {
		if wo.UpdatedAt.Before(cutoff) {
			continue
		}
		report.Checked++

		records, err := s.audits.ListRecords(ctx, models.EntityTypeWorkOrder, wo.WorkOrderID)
		if err != nil {
			s.logger.Errorf("Sweep: failed to read audit history for %s: %v", wo.WorkOrderID, err)
			continue
		}

		if !hasRecordCovering(records, wo.UpdatedAt) {
			report.Orphaned = append(report.Orphaned, wo.WorkOrderID)
			s.logger.WithField("workOrderID", wo.WorkOrderID).
				Warnf("Sweep: work order updated at %s has no covering audit record", wo.UpdatedAt.Format(time.RFC3339))
		}
	}

	report.Duration = s.now().Sub(started).String()
	s.logger.Infof("Audit sweep completed: scanned=%d checked=%d orphaned=%d in %s",
		report.Scanned, report.Checked, len(report.Orphaned), report.Duration)

	return report, nil
}

// hasRecordCovering reports whether any audit record was written at or after
// the entity's last update. A small slack absorbs clock skew between the
// entity stamp and the record stamp within one append.
func hasRecordCovering(records []*models.AuditRecord, updatedAt time.Time) bool {
	const slack = 2 * time.Second
	for _, rec := range records {
		if !rec.CreatedAt.Before(updatedAt.Add(-slack)) {
			return true
		}
	}
	return false
}
