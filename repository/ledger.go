package repository

import (
	"context"
	"time"

	"fieldops-backend/dal"
	"fieldops-backend/models"
	"fieldops-backend/utils"
	"fieldops-backend/utils/logger"
)

// NewLedger selects the ledger strategy from explicit configuration at
// construction time. The choice is never revisited at runtime.
func NewLedger(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) Ledger {
	if cfg.AuditTransactional {
		return NewTransactionalLedger(db, cfg, log)
	}
	return NewSequentialLedger(db, cfg, log)
}

// ledgerBase holds what both strategies share: diff construction, record
// assembly, and history reads.
type ledgerBase struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
	now    func() time.Time
}

func (l *ledgerBase) entityTable() string {
	return l.config.DynamoDBTablePrefix + "_workorders"
}

func (l *ledgerBase) auditTable() string {
	return l.config.DynamoDBTablePrefix + "_audit"
}

func (l *ledgerBase) buildRecord(req AppendRequest) (*models.AuditRecord, error) {
	changes, err := models.ComputeDiff(req.Before, req.After)
	if err != nil {
		return nil, err
	}
	now := l.now().UTC()
	return &models.AuditRecord{
		AuditID:       utils.GenerateUUID(),
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		EntityKey:     EntityKey(req.EntityType, req.EntityID),
		Action:        req.Action,
		Changes:       changes,
		PerformedBy:   req.Actor,
		Meta:          req.Meta,
		CreatedAt:     now,
		CreatedAtSort: now.UnixNano(),
	}, nil
}

// History pages through an entity's records newest-first. Page numbers are
// 1-based; out-of-range pages return an empty item list with true totals.
func (l *ledgerBase) History(ctx context.Context, entityType, entityID string, page models.PageSpec) (*models.AuditPage, error) {
	var records []*models.AuditRecord
	err := l.db.QueryByIndex(ctx, l.auditTable(), "entityKey-createdAtSort-index",
		"entityKey", EntityKey(entityType, entityID), true, &records)
	if err != nil {
		return nil, err
	}

	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = 20
	}

	total := len(records)
	totalPages := (total + page.Limit - 1) / page.Limit
	start := (page.Page - 1) * page.Limit
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	return &models.AuditPage{
		Items: records[start:end],
		Pagination: models.Pagination{
			Total:      total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: totalPages,
		},
	}, nil
}

// TransactionalLedger pairs the entity put and the audit put inside one
// TransactWriteItems call. Either both land or neither does, and the
// original storage error is surfaced on abort.
type TransactionalLedger struct {
	ledgerBase
}

func NewTransactionalLedger(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *TransactionalLedger {
	return &TransactionalLedger{ledgerBase{db: db, config: cfg, logger: log, now: time.Now}}
}

func (l *TransactionalLedger) Append(ctx context.Context, req AppendRequest) (*models.AuditRecord, error) {
	record, err := l.buildRecord(req)
	if err != nil {
		return nil, err
	}

	err = l.db.TransactPut(ctx, []dal.TransactPutItem{
		{TableName: l.entityTable(), Item: req.After},
		{TableName: l.auditTable(), Item: record},
	})
	if err != nil {
		l.logger.Errorf("Atomic mutate+audit failed for %s %s: %v", req.EntityType, req.EntityID, err)
		return nil, err
	}
	return record, nil
}

// SequentialLedger is the strategy for stores without multi-item
// transactions: entity first, then the audit record with bounded retries.
// If the retries are exhausted the entity mutation stays in place (it may
// already have observable consequences) and the caller gets the distinct
// AuditWriteFailed kind so operators can reconcile out of band.
type SequentialLedger struct {
	ledgerBase
	sleep func(time.Duration)
}

func NewSequentialLedger(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *SequentialLedger {
	return &SequentialLedger{
		ledgerBase: ledgerBase{db: db, config: cfg, logger: log, now: time.Now},
		sleep:      time.Sleep,
	}
}

func (l *SequentialLedger) Append(ctx context.Context, req AppendRequest) (*models.AuditRecord, error) {
	record, err := l.buildRecord(req)
	if err != nil {
		return nil, err
	}

	if err := l.db.PutItem(ctx, l.entityTable(), req.After); err != nil {
		return nil, err
	}

	// The entity mutation is durable from here on. The audit half must not
	// inherit the caller's cancellation: a client that disconnects after the
	// entity put would otherwise fail every retry instantly. Each put is
	// still bounded by the storage timeout.
	auditCtx := context.WithoutCancel(ctx)

	attempts := l.config.AuditRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := l.config.AuditRetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			l.logger.Warnf("Retrying audit write for %s %s (attempt %d/%d)",
				req.EntityType, req.EntityID, attempt, attempts)
			l.sleep(delay)
			delay *= 2
		}
		lastErr = l.db.PutItem(auditCtx, l.auditTable(), record)
		if lastErr == nil {
			return record, nil
		}
	}

	l.logger.Errorf("Audit write exhausted %d attempts for %s %s; entity mutation kept: %v",
		attempts, req.EntityType, req.EntityID, lastErr)
	return nil, models.WrapError(models.ErrAuditWriteFailed,
		"entity was updated but its audit record could not be written", lastErr)
}
