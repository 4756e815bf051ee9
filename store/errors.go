package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an update or delete targets a row that doesn't exist.
	ErrNotFound = errors.New("store: item not found")

	// ErrConditionFailed is returned when a conditional write is rejected by the table.
	ErrConditionFailed = errors.New("store: condition check failed")

	// ErrPartialWrite is returned when a batch write could not be fully applied.
	// Rows written before the failure are left in place.
	ErrPartialWrite = errors.New("store: batch write partially applied")
)

// ConditionFailedError reports which write of a transaction failed its condition.
type ConditionFailedError struct {
	// Index is the position of the rejected write in the request, or -1 if unknown.
	Index int
	Key   Key
}

func (e *ConditionFailedError) Error() string {
	if e.Index < 0 {
		return ErrConditionFailed.Error()
	}
	return fmt.Sprintf("%s: write %d (%s)", ErrConditionFailed, e.Index, e.Key)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// PartialWriteError describes a batch write that stopped before every row was applied.
type PartialWriteError struct {
	// Applied counts rows the table acknowledged.
	Applied int

	// Pending lists the keys of rows that were never acknowledged.
	Pending []Key

	// Err is the provider error that stopped the batch, if any.
	Err error
}

func (e *PartialWriteError) Error() string {
	pending := make([]string, len(e.Pending))
	for i, k := range e.Pending {
		pending[i] = k.String()
	}
	msg := fmt.Sprintf("%s: %d applied, %d pending [%s]", ErrPartialWrite, e.Applied, len(e.Pending), strings.Join(pending, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialWriteError) Is(target error) bool {
	return target == ErrPartialWrite
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
