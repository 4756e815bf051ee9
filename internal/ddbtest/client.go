// Package ddbtest provides an in-memory stand-in for the DynamoDB API subset
// used by the store package.
//
// It understands the expressions the store builds: partition equality with an
// optional begins_with on the sort key, SET-only updates, and
// attribute_exists / attribute_not_exists and attribute equality conditions
// joined by AND. It is not a general
// DynamoDB emulator.
package ddbtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Operation names accepted by FailOn and Calls.
const (
	OpGetItem            = "GetItem"
	OpPutItem            = "PutItem"
	OpUpdateItem         = "UpdateItem"
	OpDeleteItem         = "DeleteItem"
	OpQuery              = "Query"
	OpBatchWriteItem     = "BatchWriteItem"
	OpTransactWriteItems = "TransactWriteItems"
)

type row = map[string]types.AttributeValue

// Client is an in-memory DynamoDB table set. The zero value is not usable;
// call NewClient.
type Client struct {
	mu          sync.Mutex
	tables      map[string]map[string]row
	failures    map[string]error
	unprocessed int
	calls       map[string]int
}

// NewClient returns an empty Client.
func NewClient() *Client {
	return &Client{
		tables:   make(map[string]map[string]row),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (c *Client) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

// LeaveUnprocessed makes every BatchWriteItem call skip its last n requests
// and report them as unprocessed.
func (c *Client) LeaveUnprocessed(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unprocessed = n
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Writes returns the number of write calls of any kind.
func (c *Client) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[OpPutItem] + c.calls[OpUpdateItem] + c.calls[OpDeleteItem] +
		c.calls[OpBatchWriteItem] + c.calls[OpTransactWriteItems]
}

// Item returns a copy of the row at pk/sk in table, or nil.
func (c *Client) Item(table, pk, sk string) map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.tables[table][pk+"|"+sk]
	if !ok {
		return nil
	}
	return copyRow(r)
}

// Len returns the number of rows in table.
func (c *Client) Len(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[table])
}

// Seed writes rows into table directly, bypassing failure injection.
func (c *Client) Seed(table string, rows ...map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rows {
		k, err := rowKey(r)
		if err != nil {
			panic(err)
		}
		c.table(table)[k] = copyRow(r)
	}
}

func (c *Client) begin(op string) error {
	c.calls[op]++
	return c.failures[op]
}

func (c *Client) table(name string) map[string]row {
	t, ok := c.tables[name]
	if !ok {
		t = make(map[string]row)
		c.tables[name] = t
	}
	return t
}

func (c *Client) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpGetItem); err != nil {
		return nil, err
	}
	k, err := rowKey(params.Key)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.GetItemOutput{}
	if r, ok := c.table(aws.ToString(params.TableName))[k]; ok {
		out.Item = copyRow(r)
	}
	return out, nil
}

func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpPutItem); err != nil {
		return nil, err
	}
	k, err := rowKey(params.Item)
	if err != nil {
		return nil, err
	}
	t := c.table(aws.ToString(params.TableName))
	if !conditionHolds(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, t[k]) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	t[k] = copyRow(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (c *Client) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpUpdateItem); err != nil {
		return nil, err
	}
	k, err := rowKey(params.Key)
	if err != nil {
		return nil, err
	}
	t := c.table(aws.ToString(params.TableName))
	existing := t[k]
	if !conditionHolds(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	updated := copyRow(existing)
	if updated == nil {
		updated = copyRow(params.Key)
	}
	assignments, err := parseSet(aws.ToString(params.UpdateExpression))
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		name := resolveName(a[0], params.ExpressionAttributeNames)
		value, ok := params.ExpressionAttributeValues[a[1]]
		if !ok {
			return nil, fmt.Errorf("ddbtest: unknown value placeholder %q", a[1])
		}
		updated[name] = value
	}
	t[k] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpDeleteItem); err != nil {
		return nil, err
	}
	k, err := rowKey(params.Key)
	if err != nil {
		return nil, err
	}
	t := c.table(aws.ToString(params.TableName))
	if !conditionHolds(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, t[k]) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(t, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (c *Client) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpQuery); err != nil {
		return nil, err
	}

	expr := aws.ToString(params.KeyConditionExpression)
	pk, err := partitionValue(expr, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	prefix := sortKeyPrefix(expr, params.ExpressionAttributeNames, params.ExpressionAttributeValues)

	var matches []row
	for _, r := range c.table(aws.ToString(params.TableName)) {
		if stringAttr(r, "PK") != pk || !strings.HasPrefix(stringAttr(r, "SK"), prefix) {
			continue
		}
		matches = append(matches, r)
	}
	descending := params.ScanIndexForward != nil && !*params.ScanIndexForward
	sort.Slice(matches, func(i, j int) bool {
		if descending {
			return stringAttr(matches[i], "SK") > stringAttr(matches[j], "SK")
		}
		return stringAttr(matches[i], "SK") < stringAttr(matches[j], "SK")
	})

	if start := params.ExclusiveStartKey; len(start) > 0 {
		after := stringAttr(start, "SK")
		for i, r := range matches {
			if stringAttr(r, "SK") == after {
				matches = matches[i+1:]
				break
			}
		}
	}

	out := &dynamodb.QueryOutput{}
	if params.Limit != nil && int(*params.Limit) < len(matches) {
		matches = matches[:*params.Limit]
		last := matches[len(matches)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	for _, r := range matches {
		out.Items = append(out.Items, copyRow(r))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (c *Client) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpBatchWriteItem); err != nil {
		return nil, err
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range params.RequestItems {
		if len(requests) > 25 {
			return nil, errors.New("ddbtest: too many items in batch")
		}
		applied := len(requests) - c.unprocessed
		if applied < 0 {
			applied = 0
		}
		t := c.table(table)
		for i, req := range requests {
			if i >= applied {
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			switch {
			case req.PutRequest != nil:
				k, err := rowKey(req.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				t[k] = copyRow(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				k, err := rowKey(req.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(t, k)
			}
		}
	}
	return out, nil
}

func (c *Client) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpTransactWriteItems); err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, item := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if item.Put == nil {
			return nil, errors.New("ddbtest: only Put is supported in transactions")
		}
		k, err := rowKey(item.Put.Item)
		if err != nil {
			return nil, err
		}
		existing := c.table(aws.ToString(item.Put.TableName))[k]
		if !conditionHolds(item.Put.ConditionExpression, item.Put.ExpressionAttributeNames, item.Put.ExpressionAttributeValues, existing) {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range params.TransactItems {
		k, _ := rowKey(item.Put.Item)
		c.table(aws.ToString(item.Put.TableName))[k] = copyRow(item.Put.Item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

var (
	conditionRe  = regexp.MustCompile(`attribute_(not_)?exists\s*\(\s*([#:\w]+)\s*\)`)
	equalityRe   = regexp.MustCompile(`([#\w]+)\s*=\s*(:\w+)`)
	beginsWithRe = regexp.MustCompile(`begins_with\s*\(\s*([#\w]+)\s*,\s*(:\w+)\s*\)`)
)

// conditionHolds evaluates the AND of every attribute_exists,
// attribute_not_exists and name = :value comparison in expr. A comparison
// against a missing row or attribute is false.
func conditionHolds(expr *string, names map[string]string, values map[string]types.AttributeValue, existing row) bool {
	if expr == nil || *expr == "" {
		return true
	}
	for _, m := range conditionRe.FindAllStringSubmatch(*expr, -1) {
		_, present := existing[resolveName(m[2], names)]
		wantAbsent := m[1] != ""
		if present == wantAbsent {
			return false
		}
	}
	for _, m := range equalityRe.FindAllStringSubmatch(*expr, -1) {
		got, ok := existing[resolveName(m[1], names)]
		if !ok || !reflect.DeepEqual(got, values[m[2]]) {
			return false
		}
	}
	return true
}

func partitionValue(expr string, names map[string]string, values map[string]types.AttributeValue) (string, error) {
	for placeholder, name := range names {
		if name != "PK" {
			continue
		}
		re := regexp.MustCompile(regexp.QuoteMeta(placeholder) + `\s*=\s*(:\w+)`)
		if m := re.FindStringSubmatch(expr); m != nil {
			if v, ok := values[m[1]].(*types.AttributeValueMemberS); ok {
				return v.Value, nil
			}
		}
	}
	if m := regexp.MustCompile(`\bPK\s*=\s*(:\w+)`).FindStringSubmatch(expr); m != nil {
		if v, ok := values[m[1]].(*types.AttributeValueMemberS); ok {
			return v.Value, nil
		}
	}
	return "", fmt.Errorf("ddbtest: no partition key equality in %q", expr)
}

func sortKeyPrefix(expr string, names map[string]string, values map[string]types.AttributeValue) string {
	m := beginsWithRe.FindStringSubmatch(expr)
	if m == nil || resolveName(m[1], names) != "SK" {
		return ""
	}
	if v, ok := values[m[2]].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// parseSet splits a SET-only update expression into name/value placeholder pairs.
func parseSet(expr string) ([][2]string, error) {
	var out [][2]string
	for _, line := range strings.Split(expr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		body, ok := strings.CutPrefix(line, "SET ")
		if !ok {
			return nil, fmt.Errorf("ddbtest: unsupported update expression %q", line)
		}
		for _, clause := range strings.Split(body, ",") {
			name, value, ok := strings.Cut(clause, "=")
			if !ok {
				return nil, fmt.Errorf("ddbtest: unsupported update clause %q", clause)
			}
			out = append(out, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
		}
	}
	return out, nil
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}

func rowKey(r row) (string, error) {
	pk, sk := stringAttr(r, "PK"), stringAttr(r, "SK")
	if pk == "" || sk == "" {
		return "", errors.New("ddbtest: item is missing PK or SK")
	}
	return pk + "|" + sk, nil
}

func stringAttr(r row, name string) string {
	if v, ok := r[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func copyRow(r row) row {
	if r == nil {
		return nil
	}
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
