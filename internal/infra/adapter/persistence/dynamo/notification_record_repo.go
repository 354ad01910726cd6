// Package dynamo stores notification records in a DynamoDB table keyed by item_id.
// Optimistic concurrency uses condition expressions on the revision attribute.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/observability/metrics"
	"vaxslot-notifier/internal/pkg/id"
	"vaxslot-notifier/internal/repository"
)

const (
	attrItemID   = "item_id"
	attrRevision = "revision"
)

// recordItem is the DynamoDB representation of a notification record.
type recordItem struct {
	ItemID            string     `dynamodbav:"item_id"`
	LastNotifiedAt    *time.Time `dynamodbav:"last_notified_at,omitempty"`
	NotificationCount int        `dynamodbav:"notification_count"`
	Snapshot          []byte     `dynamodbav:"snapshot,omitempty"`
	Revision          string     `dynamodbav:"revision"`
	UpdatedAt         time.Time  `dynamodbav:"updated_at"`
}

// NotificationRecordRepo provides typed DynamoDB operations for the records table.
type NotificationRecordRepo struct {
	client    API
	tableName string
	newID     func() string
	now       func() time.Time
}

func NewNotificationRecordRepo(client API, tableName string) repository.NotificationRecordRepository {
	return &NotificationRecordRepo{client: client, tableName: tableName, newID: id.New, now: time.Now}
}

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func (r *NotificationRecordRepo) Get(ctx context.Context, itemID string) (*entity.NotificationRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_record", time.Since(start)) }()

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrItemID, itemID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Get: GetItem: %w", err)
	}
	if out.Item == nil {
		return nil, entity.ErrNotFound
	}
	var item recordItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("Get: unmarshal: %w", err)
	}
	return &entity.NotificationRecord{
		ItemID:            item.ItemID,
		LastNotifiedAt:    item.LastNotifiedAt,
		NotificationCount: item.NotificationCount,
		Snapshot:          item.Snapshot,
		Revision:          item.Revision,
	}, nil
}

func (r *NotificationRecordRepo) Put(ctx context.Context, rec *entity.NotificationRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	revision := r.newID()
	item, err := attributevalue.MarshalMap(recordItem{
		ItemID:            rec.ItemID,
		LastNotifiedAt:    rec.LastNotifiedAt,
		NotificationCount: rec.NotificationCount,
		Snapshot:          rec.Snapshot,
		Revision:          revision,
		UpdatedAt:         r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("Put: marshal record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}
	op := "create_record"
	if rec.IsNew() {
		input.ConditionExpression = aws.String("attribute_not_exists(#id)")
		input.ExpressionAttributeNames = map[string]string{"#id": attrItemID}
	} else {
		op = "update_record"
		input.ConditionExpression = aws.String("#rev = :expected")
		input.ExpressionAttributeNames = map[string]string{"#rev": attrRevision}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: rec.Revision},
		}
	}

	start := time.Now()
	_, err = r.client.PutItem(ctx, input)
	metrics.RecordDBQuery(op, time.Since(start))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("Put: %w", entity.ErrConflict)
		}
		return fmt.Errorf("Put: PutItem: %w", err)
	}
	rec.Revision = revision
	return nil
}
