package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// DynamoAPI is the subset of the DynamoDB client the service depends on.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type DynamoService struct {
	Client      DynamoAPI
	TablePrefix string
}

// InitializeDynamoDBClient initializes the DynamoDB client. A non-empty endpoint
// points the client at DynamoDB Local or another compatible endpoint.
func InitializeDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Table returns the physical table name for a logical one.
func (ds *DynamoService) Table(name string) string {
	return ds.TablePrefix + name
}

// PutItem marshals item and writes it. A non-empty condition makes the write
// conditional; a failed condition surfaces as *types.ConditionalCheckFailedException.
func (ds *DynamoService) PutItem(
	ctx context.Context,
	tableName string,
	item interface{},
	condition string,
	expressionAttributeNames map[string]string,
	expressionAttributeValues map[string]types.AttributeValue,
) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(ds.Table(tableName)),
		Item:      marshaledItem,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
		if len(expressionAttributeNames) > 0 {
			input.ExpressionAttributeNames = expressionAttributeNames
		}
		if len(expressionAttributeValues) > 0 {
			input.ExpressionAttributeValues = expressionAttributeValues
		}
	}

	if _, err := ds.Client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to put item in table '%s': %w", tableName, err)
	}
	return nil
}

// DeleteItem removes one item, conditionally when condition is non-empty.
func (ds *DynamoService) DeleteItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	condition string,
	expressionAttributeNames map[string]string,
	expressionAttributeValues map[string]types.AttributeValue,
) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(ds.Table(tableName)),
		Key:       key,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
		input.ExpressionAttributeNames = expressionAttributeNames
		input.ExpressionAttributeValues = expressionAttributeValues
	}
	if _, err := ds.Client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete item from table '%s': %w", tableName, err)
	}
	return nil
}

// GetItem reads one item with a strongly consistent read and unmarshals it into out.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, out interface{}) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.Table(tableName)),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get item from table '%s': %w", tableName, err)
	}
	if output.Item == nil {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item from table '%s': %w", tableName, err)
	}
	return nil
}

// QueryAllItems follows LastEvaluatedKey until the query is exhausted.
func (ds *DynamoService) QueryAllItems(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(ds.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query table '%s': %w", aws.ToString(input.TableName), err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// QueryItemsWithIndex queries a Global Secondary Index, newest first when latestFirst is set.
func (ds *DynamoService) QueryItemsWithIndex(
	ctx context.Context,
	tableName string,
	indexName string,
	keyConditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
	limit int32,
	latestFirst bool,
) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(ds.Table(tableName)),
		KeyConditionExpression:    aws.String(keyConditionExpression),
		ExpressionAttributeValues: expressionAttributeValues,
		ScanIndexForward:          aws.Bool(!latestFirst),
	}
	// base-table queries (indexName == "") serve as an index too; classify against the table
	source := aws.String(tableName)
	if indexName != "" {
		input.IndexName = aws.String(indexName)
		source = input.IndexName
	}
	if len(expressionAttributeNames) > 0 {
		input.ExpressionAttributeNames = expressionAttributeNames
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
		output, err := ds.Client.Query(ctx, input)
		if err != nil {
			return nil, ds.classifyIndexError(source, fmt.Errorf("failed to query '%s': %w", aws.ToString(source), err))
		}
		return output.Items, nil
	}
	items, err := ds.QueryAllItems(ctx, input)
	if err != nil {
		return nil, ds.classifyIndexError(source, err)
	}
	return items, nil
}

// ScanWithFilter performs a full, paginated scan of the table with a filter expression.
func (ds *DynamoService) ScanWithFilter(
	ctx context.Context,
	tableName string,
	filterExpression string,
	expressionAttributeNames map[string]string,
	expressionAttributeValues map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(ds.Table(tableName)),
	}
	if filterExpression != "" {
		input.FilterExpression = aws.String(filterExpression)
	}
	if len(expressionAttributeNames) > 0 {
		input.ExpressionAttributeNames = expressionAttributeNames
	}
	if len(expressionAttributeValues) > 0 {
		input.ExpressionAttributeValues = expressionAttributeValues
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(ds.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", tableName, err)
		}
		items = append(items, page.Items...)
	}
	log.Debug().Str("table", tableName).Int("items", len(items)).Msg("scan complete")
	return items, nil
}

const (
	maxBatchWriteSize = 25
	maxBatchGetSize   = 100
	maxBatchRetries   = 5
)

// BatchWriteItems writes multiple items to DynamoDB in batches, resubmitting
// unprocessed items a bounded number of times.
func (ds *DynamoService) BatchWriteItems(ctx context.Context, tableName string, writeRequests []types.WriteRequest) error {
	table := ds.Table(tableName)
	for i := 0; i < len(writeRequests); i += maxBatchWriteSize {
		end := i + maxBatchWriteSize
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		pending := map[string][]types.WriteRequest{table: writeRequests[i:end]}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchRetries {
				return fmt.Errorf("failed to batch write items to table '%s': unprocessed items remain", tableName)
			}
			if attempt > 0 {
				time.Sleep(time.Duration(1<<attempt) * 10 * time.Millisecond)
			}
			output, err := ds.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to batch write items to table '%s': %w", tableName, err)
			}
			pending = output.UnprocessedItems
		}
	}
	return nil
}

// BatchGetItems reads items by key, 100 keys per request.
func (ds *DynamoService) BatchGetItems(ctx context.Context, tableName string, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	table := ds.Table(tableName)
	var items []map[string]types.AttributeValue
	for i := 0; i < len(keys); i += maxBatchGetSize {
		end := i + maxBatchGetSize
		if end > len(keys) {
			end = len(keys)
		}

		pending := map[string]types.KeysAndAttributes{table: {Keys: keys[i:end]}}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchRetries {
				return nil, fmt.Errorf("failed to batch get items from table '%s': unprocessed keys remain", tableName)
			}
			output, err := ds.Client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get items from table '%s': %w", tableName, err)
			}
			items = append(items, output.Responses[table]...)
			pending = output.UnprocessedKeys
		}
	}
	return items, nil
}

// IndexActive reports whether a table (indexName == "") or one of its GSIs is
// ACTIVE and done backfilling.
func (ds *DynamoService) IndexActive(ctx context.Context, tableName, indexName string) (bool, error) {
	output, err := ds.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(ds.Table(tableName)),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe table '%s': %w", tableName, err)
	}
	if output.Table == nil {
		return false, nil
	}
	if indexName == "" {
		return output.Table.TableStatus == types.TableStatusActive, nil
	}
	for _, gsi := range output.Table.GlobalSecondaryIndexes {
		if aws.ToString(gsi.IndexName) != indexName {
			continue
		}
		return gsi.IndexStatus == types.IndexStatusActive && !aws.ToBool(gsi.Backfilling), nil
	}
	return false, nil
}

// classifyIndexError tags errors that mean the index cannot be queried yet.
func (ds *DynamoService) classifyIndexError(indexName *string, err error) error {
	if indexName == nil || err == nil || errors.Is(err, ErrIndexNotReady) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		msg := strings.ToLower(apiErr.ErrorMessage())
		if code == "ResourceNotFoundException" || (code == "ValidationException" && strings.Contains(msg, "index")) {
			return fmt.Errorf("%w: %s: %v", ErrIndexNotReady, aws.ToString(indexName), err)
		}
	}
	return err
}

// IsConditionalCheckFailed reports whether err is a failed write condition.
func IsConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
