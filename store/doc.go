// Package store provides a single-table DynamoDB data access layer.
//
// Every row lives in one table addressed by a string partition key (PK) and
// sort key (SK). The store has no knowledge of entities: callers build keys
// and shape rows, the store marshals them and talks to DynamoDB.
//
// # Operations
//
//   - [Store.Get], [Store.Put], [Store.Update], [Store.Delete] - single rows
//   - [Store.Query] - rows of one partition, optionally by sort key prefix
//   - [Store.BatchPut] - N independent puts, no atomicity
//   - [Store.TransactPut] - N puts applied atomically, with optional existence guards
//
// All calls target the configured table; [WithTable] overrides it per call.
//
// # Retries
//
// Transient provider errors (throttling, 5xx, timeouts) are retried by the
// SDK retryer configured on the client. BatchPut additionally resubmits
// unprocessed items with capped exponential backoff. Condition failures are
// never retried.
//
// # Errors
//
//   - [ErrNotFound] - update of a missing row
//   - [ErrConditionFailed] - a guarded write was rejected ([ConditionFailedError])
//   - [ErrPartialWrite] - a batch was not fully applied ([PartialWriteError])
package store
