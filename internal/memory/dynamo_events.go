package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoEventStore keeps conversation events in a DynamoDB table, partitioned
// by (memory id, actor id, session id) with a time-ordered event id as the
// sort key. Memory resources live in a reserved registry partition of the
// same table; event rows expire through the table TTL after the retention
// window.
type DynamoEventStore struct {
	client *dynamodb.Client
	table  string
	prefix string
}

const memoryRegistryKey = "memory#registry"

func NewDynamoEventStore(client *dynamodb.Client, table, namePrefix string) *DynamoEventStore {
	return &DynamoEventStore{client: client, table: table, prefix: namePrefix}
}

func (s *DynamoEventStore) AttachMemory(ctx context.Context) (string, error) {
	if err := ensureDynamoTable(ctx, s.client, s.table, "pk", "sk"); err != nil {
		return "", err
	}

	// Best effort: UpdateTimeToLive fails with a validation error when TTL
	// is already enabled on the table.
	_, _ = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("expires_at"),
			Enabled:       aws.Bool(true),
		},
	})

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: memoryRegistryKey},
			":prefix": &types.AttributeValueMemberS{Value: s.prefix},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("list memory resources: %w", err)
	}
	if len(out.Items) > 0 {
		if sk, ok := out.Items[0]["sk"].(*types.AttributeValueMemberS); ok {
			return sk.Value, nil
		}
	}

	memoryID := s.prefix + "-" + uuid.NewString()
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"pk":             &types.AttributeValueMemberS{Value: memoryRegistryKey},
			"sk":             &types.AttributeValueMemberS{Value: memoryID},
			"retention_days": &types.AttributeValueMemberN{Value: strconv.Itoa(retentionDays)},
			"created_at":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	}); err != nil {
		return "", fmt.Errorf("create memory resource: %w", err)
	}
	return memoryID, nil
}

func (s *DynamoEventStore) Append(ctx context.Context, memoryID, actorID, sessionID string, msgs []EventMessage, ts time.Time) error {
	payload, err := encodePayload(msgs)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	eventID := newEventID(ts)
	expires := ts.Add(retentionDays * 24 * time.Hour).Unix()

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"pk":         &types.AttributeValueMemberS{Value: eventPartition(memoryID, actorID, sessionID)},
			"sk":         &types.AttributeValueMemberS{Value: eventID},
			"event_ts":   &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)},
			"payload":    &types.AttributeValueMemberS{Value: string(payload)},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
		},
	}); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *DynamoEventStore) List(ctx context.Context, memoryID, actorID, sessionID string, maxResults int) ([]StoredEvent, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: eventPartition(memoryID, actorID, sessionID)},
		},
		Limit: aws.Int32(int32(maxResults)),
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]StoredEvent, 0, len(out.Items))
	for _, item := range out.Items {
		sk, ok := item["sk"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		ev := StoredEvent{ID: sk.Value}
		if tsAttr, ok := item["event_ts"].(*types.AttributeValueMemberS); ok {
			if ts, err := time.Parse(time.RFC3339Nano, tsAttr.Value); err == nil {
				ev.Timestamp = ts
			}
		}
		if payloadAttr, ok := item["payload"].(*types.AttributeValueMemberS); ok {
			payload, err := decodePayload([]byte(payloadAttr.Value))
			if err != nil {
				continue
			}
			ev.Payload = payload
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *DynamoEventStore) Delete(ctx context.Context, memoryID, sessionID, eventID, actorID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: eventPartition(memoryID, actorID, sessionID)},
			"sk": &types.AttributeValueMemberS{Value: eventID},
		},
	}); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// eventPartition joins the event coordinates with a separator outside the
// sanitized actor alphabet.
func eventPartition(memoryID, actorID, sessionID string) string {
	return memoryID + "#" + actorID + "#" + sessionID
}
