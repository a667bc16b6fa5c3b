package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoSessionStore keeps session metadata in a DynamoDB table keyed by
// user_id (hash) and session_id (range).
type DynamoSessionStore struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoSessionStore(client *dynamodb.Client, table string) *DynamoSessionStore {
	return &DynamoSessionStore{client: client, table: table}
}

func (s *DynamoSessionStore) Ensure(ctx context.Context) error {
	return ensureDynamoTable(ctx, s.client, s.table, "user_id", "session_id")
}

func (s *DynamoSessionStore) Get(ctx context.Context, userID, sessionID string) (*SessionRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       sessionKey(userID, sessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("get session row: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec SessionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session row: %w", err)
	}
	return &rec, nil
}

func (s *DynamoSessionStore) Put(ctx context.Context, rec SessionRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal session row: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put session row: %w", err)
	}
	return nil
}

func (s *DynamoSessionStore) Query(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	recs := make([]SessionRecord, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal sessions: %w", err)
	}
	return recs, nil
}

func (s *DynamoSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       sessionKey(userID, sessionID),
	}); err != nil {
		return fmt.Errorf("delete session row: %w", err)
	}
	return nil
}

func sessionKey(userID, sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: userID},
		"session_id": &types.AttributeValueMemberS{Value: sessionID},
	}
}

// ensureDynamoTable creates an on-demand table with a string hash/range key
// pair when it does not exist and waits for it to become active.
func ensureDynamoTable(ctx context.Context, client *dynamodb.Client, table, hashKey, rangeKey string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(rangeKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	return nil
}
