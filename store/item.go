package store

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a raw DynamoDB item.
type Item = map[string]types.AttributeValue

// Key addresses a single row of the table.
type Key struct {
	PK string `dynamodbav:"PK" json:"-"`
	SK string `dynamodbav:"SK" json:"-"`
}

func (k Key) String() string {
	return k.PK + "|" + k.SK
}

// attributes returns the key as a DynamoDB key map.
func (k Key) attributes() Item {
	return Item{
		PartitionKeyAttr: &types.AttributeValueMemberS{Value: k.PK},
		SortKeyAttr:      &types.AttributeValueMemberS{Value: k.SK},
	}
}

// KeyCondition selects rows of one partition for Query.
type KeyCondition struct {
	// PK is the partition to read.
	PK string

	// SKPrefix optionally restricts rows to sort keys beginning with it.
	SKPrefix string
}

// TransactPut is one row of an atomic multi-row write.
type TransactPut struct {
	// Item is any value attributevalue can marshal into a map with PK and SK.
	Item any

	// IfNotExists fails the whole transaction if a row with the same key exists.
	IfNotExists bool
}

// Option configures a single store call.
type Option func(*callOptions)

type callOptions struct {
	table         string
	uniqueIDField string
	limit         int32
	descending    bool
	condition     *expression.ConditionBuilder
}

// WithTable overrides the configured table for one call.
func WithTable(name string) Option {
	return func(o *callOptions) {
		o.table = name
	}
}

// WithUniqueID makes Put mint a UUID into field when the item leaves it unset.
func WithUniqueID(field string) Option {
	return func(o *callOptions) {
		o.uniqueIDField = field
	}
}

// WithLimit caps the number of rows Query returns (0 = no limit).
func WithLimit(n int32) Option {
	return func(o *callOptions) {
		o.limit = n
	}
}

// WithDescending makes Query return rows in descending sort key order.
func WithDescending() Option {
	return func(o *callOptions) {
		o.descending = true
	}
}

// IfAttributeEquals makes Delete remove the row only while attribute name
// holds value. A missing row or a different value yields ErrConditionFailed.
func IfAttributeEquals(name string, value any) Option {
	return func(o *callOptions) {
		cond := expression.Name(name).Equal(expression.Value(value))
		o.condition = &cond
	}
}
