package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

const dynamoWriteRetries = 5

// DynamoAPI is the subset of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoItem is one document. The table's partition key is "collection" and
// its sort key is "key".
type dynamoItem struct {
	Collection string `dynamodbav:"collection"`
	Key        string `dynamodbav:"key"`
	Body       string `dynamodbav:"body"`
	Version    int64  `dynamodbav:"version"`
	UpdatedAt  string `dynamodbav:"updatedAt"`
}

// DynamoStore keeps documents in a DynamoDB table. DynamoDB has no push
// channel, so subscriptions poll the collection and fire when its contents
// change.
type DynamoStore struct {
	client       DynamoAPI
	table        string
	pollInterval time.Duration
	logger       *logging.Logger
}

// NewDynamoStore builds a store on a DynamoDB client.
func NewDynamoStore(client DynamoAPI, table string, pollInterval time.Duration, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("docstore: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("docstore: table name cannot be empty")
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:       client,
		table:        table,
		pollInterval: pollInterval,
		logger:       logger.Component("docstore.dynamodb"),
	}
}

// NewKey implements Store.
func (s *DynamoStore) NewKey(ctx context.Context, path string) (string, error) {
	return newKey(ctx, path)
}

// Set implements Store. Every write is a read-modify-write guarded by the
// item's version attribute.
func (s *DynamoStore) Set(ctx context.Context, path string, value any) error {
	loc, err := parseDocument(path)
	if err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < dynamoWriteRetries; attempt++ {
		current, err := s.get(ctx, loc.collection, loc.key)
		if err != nil {
			return err
		}
		body, err := mergeAt(bodyOf(current), loc.nested, data)
		if err != nil {
			return err
		}

		next := dynamoItem{
			Collection: loc.collection,
			Key:        loc.key,
			Body:       string(body),
			Version:    1,
			UpdatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		}
		input := &dynamodb.PutItemInput{TableName: aws.String(s.table)}
		if current == nil {
			input.ConditionExpression = aws.String("attribute_not_exists(#key)")
			input.ExpressionAttributeNames = map[string]string{"#key": "key"}
		} else {
			next.Version = current.Version + 1
			input.ConditionExpression = aws.String("#version = :expected")
			input.ExpressionAttributeNames = map[string]string{"#version": "version"}
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(current.Version, 10)},
			}
		}
		item, err := attributevalue.MarshalMap(next)
		if err != nil {
			return fmt.Errorf("docstore: marshal item: %w", err)
		}
		input.Item = item

		_, err = s.client.PutItem(ctx, input)
		if err == nil {
			return nil
		}
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			s.logger.Debug("versioned write lost race, retrying", "path", path, "attempt", attempt+1)
			continue
		}
		return fmt.Errorf("docstore: dynamodb put %s: %w", path, err)
	}
	return fmt.Errorf("docstore: dynamodb put %s: %w", path, ErrConflict)
}

func bodyOf(item *dynamoItem) json.RawMessage {
	if item == nil {
		return nil
	}
	return json.RawMessage(item.Body)
}

func (s *DynamoStore) get(ctx context.Context, collection, key string) (*dynamoItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"collection": &types.AttributeValueMemberS{Value: collection},
			"key":        &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: dynamodb get %s/%s: %w", collection, key, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("docstore: decode item %s/%s: %w", collection, key, err)
	}
	return &item, nil
}

// Snapshot loads the whole collection, following pagination.
func (s *DynamoStore) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	docs := make(map[string]json.RawMessage)
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(s.table),
			ConsistentRead:           aws.Bool(true),
			KeyConditionExpression:   aws.String("#collection = :collection"),
			ExpressionAttributeNames: map[string]string{"#collection": "collection"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":collection": &types.AttributeValueMemberS{Value: collection},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return Snapshot{}, fmt.Errorf("docstore: dynamodb query %s: %w", collection, err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return Snapshot{}, fmt.Errorf("docstore: decode %s: %w", collection, err)
		}
		for _, item := range items {
			docs[item.Key] = json.RawMessage(item.Body)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return snapshotOf(collection, docs), nil
}

// Subscribe implements Store.
func (s *DynamoStore) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	collection, err := parseCollection(path)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}
	fn(snap)
	last := fingerprint(snap)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &cancelSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				snap, err := s.Snapshot(subCtx, collection)
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.Warn("poll failed", "collection", collection, "error", err)
					}
					continue
				}
				if fp := fingerprint(snap); fp != last {
					last = fp
					fn(snap)
				}
			}
		}
	}()
	return sub, nil
}

func fingerprint(snap Snapshot) string {
	h := sha256.New()
	for _, child := range snap.Children {
		h.Write([]byte(child.Key))
		h.Write([]byte{0})
		h.Write(child.Value)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ Store = (*DynamoStore)(nil)
