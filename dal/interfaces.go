package dal

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DatabaseClientInterface defines the contract for database operations
type DatabaseClientInterface interface {
	// Core read/write operations. No item delete: work orders are
	// soft-deleted by cancellation and audit records are append-only.
	GetItem(ctx context.Context, tableName, key, value string, result interface{}) error
	PutItem(ctx context.Context, tableName string, item interface{}) error

	// Transactional write: all puts or none
	TransactPut(ctx context.Context, items []TransactPutItem) error

	// Query and Scan operations
	QueryByIndex(ctx context.Context, tableName, indexName, keyName, keyValue string, descending bool, results interface{}) error
	Scan(ctx context.Context, tableName string, results interface{}) error

	// Table management operations
	CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error
	DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput) error
}
