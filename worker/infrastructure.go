package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldops-backend/dal"
	"fieldops-backend/infrastructure"
	"fieldops-backend/models"
	"fieldops-backend/utils/logger"

	"github.com/aws/smithy-go"
)

// InfrastructureSetup provisions the DynamoDB tables the service depends on.
type InfrastructureSetup struct {
	db     dal.DatabaseClientInterface
	config *models.Config
	logger logger.Logger
}

func NewInfrastructureSetup(db dal.DatabaseClientInterface, cfg *models.Config, log logger.Logger) *InfrastructureSetup {
	return &InfrastructureSetup{
		db:     db,
		config: cfg,
		logger: log,
	}
}

// EnsureTables creates every configured table that does not already exist.
// Tables are created sequentially to avoid throttling.
func (is *InfrastructureSetup) EnsureTables(ctx context.Context) error {
	for _, baseName := range is.config.Tables {
		tableName := is.config.DynamoDBTablePrefix + "_" + baseName
		if err := is.createTableWithRetry(ctx, tableName); err != nil {
			is.logger.Errorf("Failed to create table %s: %v", tableName, err)
			return err
		}
	}
	return nil
}

// createTableWithRetry creates a table with retry logic
func (is *InfrastructureSetup) createTableWithRetry(ctx context.Context, tableName string) error {
	maxRetries := 3
	baseDelay := 5 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * baseDelay
			is.logger.Infof("Retrying table creation for %s in %v (attempt %d/%d)", tableName, delay, attempt+1, maxRetries+1)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		exists, err := is.tableExists(ctx, tableName)
		if err != nil {
			is.logger.Errorf("Failed to check if table exists: %v", err)
			continue
		}
		if exists {
			is.logger.Infof("Table %s already exists, skipping creation", tableName)
			return nil
		}

		if err := is.createTableFromEmbeddedJSON(ctx, tableName); err != nil {
			is.logger.Errorf("Attempt %d failed to create table %s: %v", attempt+1, tableName, err)

			if attempt == maxRetries {
				return fmt.Errorf("failed to create table %s after %d attempts: %w", tableName, maxRetries+1, err)
			}
			continue
		}

		is.logger.Infof("Successfully created table: %s", tableName)
		return nil
	}

	return fmt.Errorf("exhausted all retry attempts for table %s", tableName)
}

func (is *InfrastructureSetup) createTableFromEmbeddedJSON(ctx context.Context, tableName string) error {
	input, err := infrastructure.GetTables(tableName)
	if err != nil {
		return fmt.Errorf("failed to get table input: %w", err)
	}
	if err := is.db.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// tableExists checks if a table already exists
func (is *InfrastructureSetup) tableExists(ctx context.Context, tableName string) (bool, error) {
	_, err := is.db.DescribeTable(ctx, tableName)
	if err != nil {
		if isTableNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isTableNotFoundError checks if error indicates table not found
func isTableNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ResourceNotFoundException"
	}

	// Fallback to string matching for other error types
	errorStr := err.Error()
	return strings.Contains(errorStr, "ResourceNotFoundException") ||
		strings.Contains(errorStr, "Table not found") ||
		strings.Contains(errorStr, "Requested resource not found")
}
