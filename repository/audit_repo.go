package repository

import (
	"context"
	"errors"

	"fieldops-backend/dal"
	"fieldops-backend/models"
	"fieldops-backend/utils/logger"
)

type AuditRepository struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewAuditRepository(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		config: cfg,
		logger: log,
	}
}

func (r *AuditRepository) tableName() string {
	return r.config.DynamoDBTablePrefix + "_audit"
}

// EntityKey builds the history-index partition key.
func EntityKey(entityType, entityID string) string {
	return entityType + "#" + entityID
}

func (r *AuditRepository) PutRecord(ctx context.Context, record *models.AuditRecord) error {
	if record.AuditID == "" {
		return errors.New("audit ID is required")
	}
	record.EntityKey = EntityKey(record.EntityType, record.EntityID)
	if record.CreatedAtSort == 0 {
		record.CreatedAtSort = record.CreatedAt.UnixNano()
	}

	err := r.db.PutItem(ctx, r.tableName(), record)
	if err != nil {
		r.logger.Errorf("Failed to put audit record %s: %v", record.AuditID, err)
		return err
	}
	return nil
}

// ListRecords returns the full history of one entity, newest first, via the
// (entityKey, createdAtSort desc) index.
func (r *AuditRepository) ListRecords(ctx context.Context, entityType, entityID string) ([]*models.AuditRecord, error) {
	var records []*models.AuditRecord
	err := r.db.QueryByIndex(ctx, r.tableName(), "entityKey-createdAtSort-index",
		"entityKey", EntityKey(entityType, entityID), true, &records)
	if err != nil {
		r.logger.Errorf("Failed to list audit records for %s %s: %v", entityType, entityID, err)
		return nil, err
	}
	return records, nil
}
