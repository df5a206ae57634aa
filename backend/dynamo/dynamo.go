// Package dynamo implements store.Backend on Amazon DynamoDB.
//
// Every path is one item of the key-value table. Set writes the value as a
// binary "doc" attribute; Update and Push write each merged field as its own
// "f_<name>" attribute so that concurrent updates of different fields do not
// clobber each other. Insert is a conditional put.
//
// A pushed list is a single item, so it is bounded by the 400KB DynamoDB
// item size limit. Each "f_<uuid>" entry of a created list takes about 80
// bytes, which caps one account at roughly 5000 posts.
//
// Child ranks live in a separate table with a local secondary index, so
// that child listings are served by a native sorted query (see [Backend.TopByRank]).
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/grove/store"
)

// fieldPrefix marks attributes holding merged fields.
const fieldPrefix = "f_"

// API is the subset of the DynamoDB client the backend uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Backend provides store.Backend, store.Inserter and store.Ranker on DynamoDB.
type Backend struct {
	client API
	config Config
}

// New creates a new Backend instance.
func New(client API, config Config) *Backend {
	config.validate()
	return &Backend{
		client: client,
		config: config,
	}
}

// Config returns the validated configuration.
func (b *Backend) Config() Config {
	return b.config
}

func (b *Backend) key(path string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: path},
	}
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, path string) ([]byte, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.Table),
		Key:            b.key(path),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, store.ErrNotFound
	}
	return valueOf(result.Item)
}

// Set implements store.Backend. It replaces the whole item, dropping any
// merged fields.
func (b *Backend) Set(ctx context.Context, path string, value []byte) error {
	item := b.key(path)
	item["doc"] = &types.AttributeValueMemberB{Value: value}

	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.config.Table),
		Item:      item,
	})
	return err
}

// Update implements store.Backend.
func (b *Backend) Update(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var setClauses []string
	exprNames := map[string]string{}
	exprValues := map[string]types.AttributeValue{}
	for i, name := range names {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = fieldPrefix + name
		exprValues[valueKey] = &types.AttributeValueMemberS{Value: string(fields[name])}
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(b.config.Table),
		Key:                       b.key(path),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	return err
}

// Push implements store.Backend. Keys are UUIDv7 strings.
func (b *Backend) Push(ctx context.Context, prefix string, value []byte) (string, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	if err := b.Update(ctx, prefix, map[string]json.RawMessage{key.String(): value}); err != nil {
		return "", err
	}
	return key.String(), nil
}

// Insert implements store.Inserter with a conditional put.
func (b *Backend) Insert(ctx context.Context, path string, value []byte) error {
	item := b.key(path)
	item["doc"] = &types.AttributeValueMemberB{Value: value}

	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(b.config.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	return mapInsertError(err)
}

// mapInsertError maps a failed put condition to store.ErrExists.
func mapInsertError(err error) error {
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return store.ErrExists
	}
	return err
}

// valueOf rebuilds the stored value of an item: the doc as written by Set,
// with merged fields laid over it as a JSON object.
func valueOf(item map[string]types.AttributeValue) ([]byte, error) {
	var doc []byte
	if v, ok := item["doc"].(*types.AttributeValueMemberB); ok {
		doc = v.Value
	}

	fields := map[string]json.RawMessage{}
	for name, attr := range item {
		if !strings.HasPrefix(name, fieldPrefix) {
			continue
		}
		if v, ok := attr.(*types.AttributeValueMemberS); ok {
			fields[strings.TrimPrefix(name, fieldPrefix)] = json.RawMessage(v.Value)
		}
	}
	if len(fields) == 0 {
		if doc == nil {
			return nil, store.ErrNotFound
		}
		return doc, nil
	}

	merged := map[string]json.RawMessage{}
	if doc != nil {
		// A non-object doc is replaced by the merged fields.
		_ = json.Unmarshal(doc, &merged)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

var (
	_ store.Backend  = (*Backend)(nil)
	_ store.Inserter = (*Backend)(nil)
	_ store.Ranker   = (*Backend)(nil)
)
