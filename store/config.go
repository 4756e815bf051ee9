package store

import "time"

const (
	// PartitionKeyAttr is the partition key attribute shared by every row.
	PartitionKeyAttr = "PK"

	// SortKeyAttr is the sort key attribute shared by every row.
	SortKeyAttr = "SK"

	// maxBatchSize is the DynamoDB BatchWriteItem limit.
	maxBatchSize = 25
)

// Config holds configuration for the Store.
type Config struct {
	// TableName is the single table holding every entity.
	// Default: "accounts"
	TableName string

	// BatchRetries is how many times unprocessed batch items are resubmitted
	// before BatchPut gives up with a PartialWriteError.
	// Default: 5
	BatchRetries int

	// BatchBackoffBase is the first backoff delay between batch retries.
	// Delays double per attempt with full jitter.
	// Default: 50ms
	BatchBackoffBase time.Duration

	// BatchBackoffCap bounds a single backoff delay.
	// Default: 2s
	BatchBackoffCap time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TableName:        "accounts",
		BatchRetries:     5,
		BatchBackoffBase: 50 * time.Millisecond,
		BatchBackoffCap:  2 * time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "accounts"
	}
	if c.BatchRetries < 0 {
		c.BatchRetries = 0
	}
	if c.BatchRetries > 20 {
		c.BatchRetries = 20
	}
	if c.BatchBackoffBase <= 0 {
		c.BatchBackoffBase = 50 * time.Millisecond
	}
	if c.BatchBackoffCap <= 0 {
		c.BatchBackoffCap = 2 * time.Second
	}
	if c.BatchBackoffCap < c.BatchBackoffBase {
		c.BatchBackoffCap = c.BatchBackoffBase
	}
}
