package dal

import (
	"context"
	"errors"
	"fmt"

	"fieldops-backend/models"
	"fieldops-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type DynamoDBClient struct {
	client *dynamodb.Client
	config *models.Config
	logger logger.Logger
}

// NewDynamoDBClient creates a new DynamoDB client
func NewDynamoDBClient(cfg *models.Config, log logger.Logger) (*DynamoDBClient, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override endpoint for local DynamoDB
	if cfg.DynamoDBEndpoint != "" {
		awsCfg.EndpointResolver = aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           cfg.DynamoDBEndpoint,
				SigningRegion: cfg.AWSRegion,
			}, nil
		})
	}

	// Use static credentials if provided
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"", // session token
		))
	}

	client := dynamodb.NewFromConfig(awsCfg)

	dbClient := &DynamoDBClient{
		client: client,
		config: cfg,
		logger: log,
	}

	log.Info("DynamoDB client initialized successfully")
	return dbClient, nil
}

// withTimeout bounds a storage call by the configured deadline. Zero means
// the caller's context rules.
func (db *DynamoDBClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.config.StorageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.config.StorageTimeout)
}

// classify maps raw storage errors onto the error taxonomy. Deadline
// overruns become the retryable Timeout kind; everything else passes
// through wrapped.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.WrapError(models.ErrTimeout, op+" exceeded storage deadline", err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestTimeout", "RequestTimeoutException":
			return models.WrapError(models.ErrTimeout, op+" timed out", err)
		}
	}
	return err
}

// GetItem retrieves an item from DynamoDB
func (db *DynamoDBClient) GetItem(ctx context.Context, tableName, key, value string, result interface{}) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			key: &types.AttributeValueMemberS{Value: value},
		},
	}

	output, err := db.client.GetItem(ctx, input)
	if err != nil {
		db.logger.Errorf("Failed to get item: %v", err)
		return classify("GetItem", err)
	}

	if output.Item == nil {
		return nil
	}

	return attributevalue.UnmarshalMap(output.Item, result)
}

// PutItem stores an item in DynamoDB
func (db *DynamoDBClient) PutItem(ctx context.Context, tableName string, item interface{}) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}

	_, err = db.client.PutItem(ctx, input)
	return classify("PutItem", err)
}

// TransactPutItem pairs one item with its destination table inside a
// transactional write.
type TransactPutItem struct {
	TableName string
	Item      interface{}
}

// TransactPut writes all items in one TransactWriteItems call: all puts
// succeed or none do. This is the transactional ledger's write primitive.
func (db *DynamoDBClient) TransactPut(ctx context.Context, items []TransactPutItem) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	writeItems := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		av, err := attributevalue.MarshalMap(it.Item)
		if err != nil {
			return fmt.Errorf("failed to marshal transact item for %s: %w", it.TableName, err)
		}
		writeItems = append(writeItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(it.TableName),
				Item:      av,
			},
		})
	}

	_, err := db.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writeItems,
	})
	if err != nil {
		db.logger.Errorf("Transactional write failed: %v", err)
	}
	return classify("TransactPut", err)
}

// QueryByIndex queries items using a global secondary index. Results follow
// the index sort key; descending=true reverses the scan direction, which the
// audit history reads rely on for newest-first ordering.
func (db *DynamoDBClient) QueryByIndex(ctx context.Context, tableName, indexName, keyName, keyValue string, descending bool, results interface{}) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.QueryInput{
		TableName:              aws.String(tableName),
		KeyConditionExpression: aws.String("#kn0 = :kv0"),
		ScanIndexForward:       aws.Bool(!descending),
		ExpressionAttributeNames: map[string]string{
			"#kn0": keyName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kv0": &types.AttributeValueMemberS{Value: keyValue},
		},
	}
	if indexName != "" {
		input.IndexName = aws.String(indexName)
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := db.client.Query(ctx, input)
		if err != nil {
			return classify("QueryByIndex", err)
		}
		items = append(items, output.Items...)
		if output.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return attributevalue.UnmarshalListOfMaps(items, results)
}

// Scan scans the entire table
func (db *DynamoDBClient) Scan(ctx context.Context, tableName string, results interface{}) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.ScanInput{
		TableName: aws.String(tableName),
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := db.client.Scan(ctx, input)
		if err != nil {
			return classify("Scan", err)
		}
		items = append(items, output.Items...)
		if output.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return attributevalue.UnmarshalListOfMaps(items, results)
}

// CreateTable creates a table
func (db *DynamoDBClient) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	_, err := db.client.CreateTable(ctx, input)
	return err
}

// DescribeTable describes a table
func (db *DynamoDBClient) DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error) {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}
	return db.client.DescribeTable(ctx, input)
}

// DeleteTable deletes a table
func (db *DynamoDBClient) DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput) error {
	_, err := db.client.DeleteTable(ctx, input)
	return err
}
