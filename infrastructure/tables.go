package infrastructure

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tidwall/gjson"
)

type TableSchema struct {
	TableName              string                 `json:"TableName"`
	AttributeDefinitions   []AttributeDefinition  `json:"AttributeDefinitions"`
	KeySchema              []KeySchemaElement     `json:"KeySchema"`
	ProvisionedThroughput  Throughput             `json:"ProvisionedThroughput"`
	GlobalSecondaryIndexes []GlobalSecondaryIndex `json:"GlobalSecondaryIndexes,omitempty"`
}

type AttributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type Throughput struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

type GlobalSecondaryIndex struct {
	IndexName             string             `json:"IndexName"`
	KeySchema             []KeySchemaElement `json:"KeySchema"`
	Projection            Projection         `json:"Projection"`
	ProvisionedThroughput Throughput         `json:"ProvisionedThroughput"`
}

type Projection struct {
	ProjectionType string `json:"ProjectionType"`
}

//go:embed table_schema.json
var tablesSchema []byte

// GetTables resolves the CreateTableInput for a prefixed table name. The
// audit table carries the (entityKey, createdAt) history index the ledger
// reads depend on.
func GetTables(tableName string) (*dynamodb.CreateTableInput, error) {
	// Map the prefixed table name back to the schema key,
	// e.g. "dev_workorders" -> "workorders".
	schemaKey := extractBaseTableName(tableName)

	tableJson := gjson.Get(string(tablesSchema), schemaKey)
	if !tableJson.Exists() {
		return nil, fmt.Errorf("table schema not found for key: %s", schemaKey)
	}

	var schema TableSchema
	if err := json.Unmarshal([]byte(tableJson.Raw), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema JSON: %w", err)
	}

	// Override the table name with the actual table name (including prefix)
	schema.TableName = tableName

	return schema.ToDynamoInput(), nil
}

// extractBaseTableName extracts the base table name from a prefixed table name
// For example, "dev_workorders" -> "workorders", "prod_audit" -> "audit"
func extractBaseTableName(tableName string) string {
	parts := strings.Split(tableName, "_")
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return tableName
}

// ToDynamoInput converts the embedded schema to a DynamoDB input
func (ts *TableSchema) ToDynamoInput() *dynamodb.CreateTableInput {
	attrDefs := make([]types.AttributeDefinition, 0, len(ts.AttributeDefinitions))
	for _, a := range ts.AttributeDefinitions {
		attrDefs = append(attrDefs, types.AttributeDefinition{
			AttributeName: aws.String(a.AttributeName),
			AttributeType: types.ScalarAttributeType(a.AttributeType),
		})
	}

	keySchema := make([]types.KeySchemaElement, 0, len(ts.KeySchema))
	for _, k := range ts.KeySchema {
		keySchema = append(keySchema, types.KeySchemaElement{
			AttributeName: aws.String(k.AttributeName),
			KeyType:       types.KeyType(k.KeyType),
		})
	}

	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(ts.TableName),
		AttributeDefinitions: attrDefs,
		KeySchema:            keySchema,
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(ts.ProvisionedThroughput.ReadCapacityUnits),
			WriteCapacityUnits: aws.Int64(ts.ProvisionedThroughput.WriteCapacityUnits),
		},
	}

	if len(ts.GlobalSecondaryIndexes) > 0 {
		gsis := make([]types.GlobalSecondaryIndex, 0, len(ts.GlobalSecondaryIndexes))
		for _, g := range ts.GlobalSecondaryIndexes {
			gsiKeySchema := make([]types.KeySchemaElement, 0, len(g.KeySchema))
			for _, k := range g.KeySchema {
				gsiKeySchema = append(gsiKeySchema, types.KeySchemaElement{
					AttributeName: aws.String(k.AttributeName),
					KeyType:       types.KeyType(k.KeyType),
				})
			}
			gsis = append(gsis, types.GlobalSecondaryIndex{
				IndexName: aws.String(g.IndexName),
				KeySchema: gsiKeySchema,
				Projection: &types.Projection{
					ProjectionType: types.ProjectionType(g.Projection.ProjectionType),
				},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(g.ProvisionedThroughput.ReadCapacityUnits),
					WriteCapacityUnits: aws.Int64(g.ProvisionedThroughput.WriteCapacityUnits),
				},
			})
		}
		input.GlobalSecondaryIndexes = gsis
	}

	return input
}
