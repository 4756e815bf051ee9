package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// Client is the subset of the DynamoDB API the Store uses.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store provides single-table DynamoDB operations.
// It is safe for concurrent use.
type Store struct {
	client Client
	config Config
	now    func() time.Time
}

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// TableName returns the configured table.
func (s *Store) TableName() string {
	return s.config.TableName
}

func (s *Store) options(opts []Option) callOptions {
	o := callOptions{table: s.config.TableName}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Get reads the row at key into out.
// It reports false, without error, when the row doesn't exist.
func (s *Store) Get(ctx context.Context, key Key, out any, opts ...Option) (bool, error) {
	o := s.options(opts)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(o.table),
		Key:            key.attributes(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", key, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("store: unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Put writes item, replacing any row with the same key.
// The written attributes are returned so callers can read minted ids.
func (s *Store) Put(ctx context.Context, item any, opts ...Option) (Item, error) {
	o := s.options(opts)
	raw, key, err := marshalRow(item)
	if err != nil {
		return nil, err
	}

	if o.uniqueIDField != "" {
		if v, ok := raw[o.uniqueIDField].(*types.AttributeValueMemberS); !ok || v.Value == "" {
			raw[o.uniqueIDField] = &types.AttributeValueMemberS{Value: uuid.NewString()}
		}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(o.table),
		Item:      raw,
	})
	if err != nil {
		return nil, fmt.Errorf("store: put %s: %w", key, err)
	}
	return raw, nil
}

// Query reads the rows matching cond into out, which must point to a slice.
// Pages are followed until exhausted or the limit is reached.
func (s *Store) Query(ctx context.Context, cond KeyCondition, out any, opts ...Option) error {
	o := s.options(opts)

	keyCond := expression.Key(PartitionKeyAttr).Equal(expression.Value(cond.PK))
	if cond.SKPrefix != "" {
		keyCond = keyCond.And(expression.Key(SortKeyAttr).BeginsWith(cond.SKPrefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("store: build key condition: %w", err)
	}

	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(o.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if o.limit > 0 {
		queryInput.Limit = aws.Int32(o.limit)
	}
	if o.descending {
		queryInput.ScanIndexForward = aws.Bool(false)
	}

	var items []Item
	paginator := dynamodb.NewQueryPaginator(s.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("store: query %s: %w", cond.PK, err)
		}
		items = append(items, page.Items...)
		if o.limit > 0 && int32(len(items)) >= o.limit {
			items = items[:o.limit]
			break
		}
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("store: unmarshal query %s: %w", cond.PK, err)
	}
	return nil
}

// Update patches the attributes in diff onto the existing row at key and
// stamps updatedAt. It never creates a row: a missing row yields ErrNotFound.
func (s *Store) Update(ctx context.Context, key Key, diff map[string]any, opts ...Option) error {
	o := s.options(opts)

	names := make([]string, 0, len(diff))
	for name := range diff {
		if name == PartitionKeyAttr || name == SortKeyAttr {
			return fmt.Errorf("store: update %s: key attribute %q is immutable", key, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var update expression.UpdateBuilder
	if _, ok := diff["updatedAt"]; !ok {
		update = update.Set(expression.Name("updatedAt"), expression.Value(s.now().UTC()))
	}
	for _, name := range names {
		update = update.Set(expression.Name(name), expression.Value(diff[name]))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(PartitionKeyAttr))).
		Build()
	if err != nil {
		return fmt.Errorf("store: build update %s: %w", key, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(o.table),
		Key:                       key.attributes(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("update %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("store: update %s: %w", key, err)
	}
	return nil
}

// Delete removes the row at key. Deleting a missing row is not an error
// unless a condition was given with IfAttributeEquals.
func (s *Store) Delete(ctx context.Context, key Key, opts ...Option) error {
	o := s.options(opts)
	in := &dynamodb.DeleteItemInput{
		TableName: aws.String(o.table),
		Key:       key.attributes(),
	}
	if o.condition != nil {
		expr, err := expression.NewBuilder().WithCondition(*o.condition).Build()
		if err != nil {
			return fmt.Errorf("store: build delete %s: %w", key, err)
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}

	if _, err := s.client.DeleteItem(ctx, in); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("store: delete %s: %w", key, ErrConditionFailed)
		}
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// BatchPut writes items as independent puts, 25 per request.
//
// The rows are not applied atomically: readers may observe some rows before
// others. Unprocessed items are resubmitted with backoff; if they still can't be
// written, or the provider fails mid-batch, a *PartialWriteError is returned
// and rows already applied stay in place.
func (s *Store) BatchPut(ctx context.Context, items []any, opts ...Option) error {
	o := s.options(opts)

	requests := make([]types.WriteRequest, 0, len(items))
	seen := make(map[Key]bool, len(items))
	for _, item := range items {
		raw, key, err := marshalRow(item)
		if err != nil {
			return err
		}
		if seen[key] {
			return fmt.Errorf("store: batch put: duplicate key %s", key)
		}
		seen[key] = true
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: raw}})
	}

	applied := 0
	for start := 0; start < len(requests); start += maxBatchSize {
		end := min(start+maxBatchSize, len(requests))
		pending := requests[start:end]
		rest := requests[end:]

		for attempt := 0; ; attempt++ {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{o.table: pending},
			})
			if err != nil {
				return &PartialWriteError{Applied: applied, Pending: requestKeys(pending, rest), Err: err}
			}

			unprocessed := out.UnprocessedItems[o.table]
			applied += len(pending) - len(unprocessed)
			if len(unprocessed) == 0 {
				break
			}
			if attempt >= s.config.BatchRetries {
				return &PartialWriteError{Applied: applied, Pending: requestKeys(unprocessed, rest)}
			}
			if err := sleep(ctx, s.backoff(attempt)); err != nil {
				return &PartialWriteError{Applied: applied, Pending: requestKeys(unprocessed, rest), Err: err}
			}
			pending = unprocessed
		}
	}
	return nil
}

// TransactPut writes all rows atomically or none of them.
// A rejected IfNotExists guard yields a *ConditionFailedError.
func (s *Store) TransactPut(ctx context.Context, puts []TransactPut, opts ...Option) error {
	o := s.options(opts)
	if len(puts) == 0 {
		return nil
	}
	if len(puts) > 100 {
		return fmt.Errorf("store: transact put: %d rows exceeds the limit of 100", len(puts))
	}

	items := make([]types.TransactWriteItem, 0, len(puts))
	keys := make([]Key, 0, len(puts))
	for _, p := range puts {
		raw, key, err := marshalRow(p.Item)
		if err != nil {
			return err
		}
		put := &types.Put{
			TableName: aws.String(o.table),
			Item:      raw,
		}
		if p.IfNotExists {
			put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
			put.ExpressionAttributeNames = map[string]string{"#pk": PartitionKeyAttr}
		}
		items = append(items, types.TransactWriteItem{Put: put})
		keys = append(keys, key)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, keys)
}

// mapTransactionError maps a cancelled transaction to the write whose condition failed.
func mapTransactionError(err error, keys []Key) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				cfe := &ConditionFailedError{Index: i}
				if i < len(keys) {
					cfe.Key = keys[i]
				}
				return cfe
			}
		}
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return &ConditionFailedError{Index: -1}
	}

	return fmt.Errorf("store: transact put: %w", err)
}

// ErrorCode returns the provider error code carried by err, or "" if none.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// backoff returns a capped exponential delay with full jitter for attempt n.
func (s *Store) backoff(attempt int) time.Duration {
	d := s.config.BatchBackoffBase
	for i := 0; i < attempt && d < s.config.BatchBackoffCap; i++ {
		d *= 2
	}
	if d > s.config.BatchBackoffCap {
		d = s.config.BatchBackoffCap
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// marshalRow marshals item and extracts its key.
func marshalRow(item any) (Item, Key, error) {
	raw, ok := item.(Item)
	if !ok {
		var err error
		raw, err = attributevalue.MarshalMap(item)
		if err != nil {
			return nil, Key{}, fmt.Errorf("store: marshal item: %w", err)
		}
	}
	key, err := keyOf(raw)
	if err != nil {
		return nil, Key{}, err
	}
	return raw, key, nil
}

func keyOf(raw Item) (Key, error) {
	pk, ok := raw[PartitionKeyAttr].(*types.AttributeValueMemberS)
	if !ok || pk.Value == "" {
		return Key{}, fmt.Errorf("store: item has no %s", PartitionKeyAttr)
	}
	sk, ok := raw[SortKeyAttr].(*types.AttributeValueMemberS)
	if !ok || sk.Value == "" {
		return Key{}, fmt.Errorf("store: item has no %s", SortKeyAttr)
	}
	return Key{PK: pk.Value, SK: sk.Value}, nil
}

func requestKeys(groups ...[]types.WriteRequest) []Key {
	var keys []Key
	for _, group := range groups {
		for _, req := range group {
			if req.PutRequest == nil {
				continue
			}
			if key, err := keyOf(req.PutRequest.Item); err == nil {
				keys = append(keys, key)
			}
		}
	}
	return keys
}
