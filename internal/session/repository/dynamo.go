package repository

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

// ErrTimeout is returned when a DynamoDB call exceeds its per-call deadline.
var ErrTimeout = errors.New("session store: timed out")

const sessionEntityName = "SESSION"

type sessionKVDynamo struct {
	PK        string
	SK        string
	Value     string
	UpdatedAt time.Time
}

func sessionPK(namespace string) string {
	return fmt.Sprintf("%s#%s", sessionEntityName, namespace)
}

func sessionSK(key string) string {
	return fmt.Sprintf("KEY#%s", key)
}

// DynamoStore keeps session keys in a single-table DynamoDB layout (PK = SESSION#<namespace>, SK = KEY#<key>).
type DynamoStore struct {
	dynamoClient *dynamodb.Client
	tableName    string
	namespace    string
}

// NewDynamoStore returns a store backed by tableName.
func NewDynamoStore(dynamoClient *dynamodb.Client, tableName, namespace string) *DynamoStore {
	return &DynamoStore{
		dynamoClient: dynamoClient,
		tableName:    tableName,
		namespace:    namespace,
	}
}

func (d *DynamoStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(d.namespace)},
		"SK": &types.AttributeValueMemberS{Value: sessionSK(key)},
	}
}

func timeoutOr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Get returns the value for key if present.
func (d *DynamoStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get session key %q: %w", key, timeoutOr(err))
	}
	if len(resp.Item) == 0 {
		return "", false, nil
	}
	var item sessionKVDynamo
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return "", false, fmt.Errorf("decode session key %q: %w", key, err)
	}
	return item.Value, true, nil
}

// Set writes value under key, replacing any previous item.
func (d *DynamoStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	item, err := attributevalue.MarshalMap(sessionKVDynamo{
		PK:        sessionPK(d.namespace),
		SK:        sessionSK(key),
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session key %q: %w", key, err)
	}
	_, err = d.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put session key %q: %w", key, timeoutOr(err))
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (d *DynamoStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_, err := d.dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("delete session key %q: %w", key, timeoutOr(err))
	}
	return nil
}
