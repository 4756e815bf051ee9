// Package model owns the entities of the accounts table: how each one is
// keyed, how its rows are shaped, and how they are read and written.
//
// Every entity is stored more than once, one row per access pattern. A user
// has an id row and an email row; an organization has an id row and a name
// row; a membership has an org-side and a user-side link row.
package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/store"
)

// Store is the data access the models need. *store.Store implements it.
type Store interface {
	Get(ctx context.Context, key store.Key, out any, opts ...store.Option) (bool, error)
	Query(ctx context.Context, cond store.KeyCondition, out any, opts ...store.Option) error
	Update(ctx context.Context, key store.Key, diff map[string]any, opts ...store.Option) error
	Delete(ctx context.Context, key store.Key, opts ...store.Option) error
	BatchPut(ctx context.Context, items []any, opts ...store.Option) error
	TransactPut(ctx context.Context, puts []store.TransactPut, opts ...store.Option) error
}

// Option configures a model.
type Option func(*options)

type options struct {
	strict bool
	now    func() time.Time
}

func newOptions(opts []Option) options {
	o := options{strict: true, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrictUniqueness selects how the rows of a new entity are written.
//
// When strict (the default) they go through one conditional transaction that
// fails if the unique row already exists, so concurrent creations can't both
// succeed. Otherwise they are written with a plain batch and uniqueness relies
// on the caller's check beforehand.
func WithStrictUniqueness(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// writeRows persists the rows of one entity. In strict mode conflict builds
// the error returned when one of the rows already exists.
func writeRows(ctx context.Context, s Store, strict bool, rows []any, conflict func() error) error {
	if !strict {
		return s.BatchPut(ctx, rows)
	}
	puts := make([]store.TransactPut, len(rows))
	for i, r := range rows {
		puts[i] = store.TransactPut{Item: r, IfNotExists: true}
	}
	err := s.TransactPut(ctx, puts)
	if errors.Is(err, store.ErrConditionFailed) {
		return conflict()
	}
	return err
}

// writeError wraps a failed row write as a DbError, leaving application
// errors untouched.
func writeError(err error, message string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.DbError(err, message)
}
