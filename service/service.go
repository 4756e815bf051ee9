// Package service implements the account operations exposed by the API:
// signing up, signing in and creating organizations. Each operation is a
// short check-then-act sequence over the models.
package service

import (
	"context"
	"time"

	"github.com/jacentio/accounts/model"
)

// Users is the user model the operations depend on.
type Users interface {
	CreateUser(ctx context.Context, in model.CreateUserInput) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	VerifyPassword(candidate, storedHash string) bool
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Organizations is the organization model the operations depend on.
type Organizations interface {
	CreateOrganization(ctx context.Context, in model.CreateOrganizationInput) (*model.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error)
	DeleteOrganization(ctx context.Context, org *model.Organization) error
	CreateOrgUser(ctx context.Context, userID, orgID, orgName string) (*model.User, error)
	DeleteOrgUser(ctx context.Context, userID, orgID string) error
}

// Accounts runs the account operations. It holds no per-request state and
// is safe for concurrent use.
type Accounts struct {
	users Users
	orgs  Organizations
	now   func() time.Time
}

// Option configures Accounts.
type Option func(*Accounts)

// WithClock overrides the time source used for sign-in timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Accounts) {
		a.now = now
	}
}

// New returns Accounts over the given models.
func New(users Users, orgs Organizations, opts ...Option) *Accounts {
	a := &Accounts{users: users, orgs: orgs, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
