package model

import (
	"context"
	"errors"
	"time"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/keys"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/internal/password"
	"github.com/jacentio/accounts/store"
)

// AuthType is how a user authenticates.
type AuthType string

// AuthCredentials authenticates with email and password.
const AuthCredentials AuthType = "Credentials"

// Valid reports whether a is a known auth type.
func (a AuthType) Valid() bool {
	return a == AuthCredentials
}

// User is an account holder.
type User struct {
	ID       string   `dynamodbav:"id" json:"id"`
	FullName string   `dynamodbav:"fullName" json:"fullName"`
	Email    string   `dynamodbav:"email" json:"email"`
	AuthType AuthType `dynamodbav:"authType" json:"authType"`

	// PasswordHash is the bcrypt hash for Credentials users. It is never
	// serialized to clients.
	PasswordHash string `dynamodbav:"passwordHash,omitempty" json:"-"`

	LastLogin *time.Time `dynamodbav:"lastLogin" json:"lastLogin"`
	CreatedAt time.Time  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `dynamodbav:"updatedAt" json:"updatedAt"`
}

type userRow struct {
	store.Key
	User
}

// CreateUserInput holds the fields of a new user.
type CreateUserInput struct {
	FullName string
	Email    string
	AuthType AuthType
	Password string
}

// Users reads and writes user rows.
type Users struct {
	store  Store
	hasher *password.Hasher
	opts   options
}

// NewUsers returns the user model over s.
func NewUsers(s Store, hasher *password.Hasher, opts ...Option) *Users {
	return &Users{store: s, hasher: hasher, opts: newOptions(opts)}
}

// CreateUser hashes the password, mints an id and writes the id and email rows.
func (u *Users) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if !in.AuthType.Valid() {
		return nil, apperr.ValidationError("authType", "unsupported auth type")
	}
	if in.AuthType == AuthCredentials && in.Password == "" {
		return nil, apperr.ValidationError("password", "password is required when authType is Credentials")
	}

	var hash string
	if in.AuthType == AuthCredentials {
		var err error
		hash, err = u.hasher.Hash(in.Password)
		if errors.Is(err, password.ErrTooLong) {
			return nil, apperr.ValidationError("password", "password must be at most 72 bytes")
		}
		if err != nil {
			return nil, err
		}
	}

	now := u.opts.now().UTC()
	user := User{
		ID:           newID("user"),
		FullName:     in.FullName,
		Email:        in.Email,
		AuthType:     in.AuthType,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	rows := []any{
		userRow{Key: keys.UserByID(user.ID), User: user},
		userRow{Key: keys.UserByEmail(user.Email), User: user},
	}
	err := writeRows(ctx, u.store, u.opts.strict, rows, func() error {
		return apperr.Conflictf("a user with email %s already exists", user.Email)
	})
	if err != nil {
		return nil, writeError(err, "failed to create user")
	}

	logging.FromContext(ctx).Info("user created", "userId", user.ID)
	return &user, nil
}

// GetUserByEmail returns the user registered with email.
func (u *Users) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return u.get(ctx, keys.UserByEmail(email))
}

// GetUserByID returns the user with id.
func (u *Users) GetUserByID(ctx context.Context, id string) (*User, error) {
	return u.get(ctx, keys.UserByID(id))
}

func (u *Users) get(ctx context.Context, key store.Key) (*User, error) {
	var user User
	found, err := u.store.Get(ctx, key, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFoundf("user not found")
	}
	return &user, nil
}

// VerifyPassword reports whether candidate matches storedHash.
func (u *Users) VerifyPassword(candidate, storedHash string) bool {
	return u.hasher.Verify(candidate, storedHash)
}

// TouchLastLogin records a successful sign-in on the user's id row. The
// email row catches up through the stream sync handler.
func (u *Users) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	return u.update(ctx, keys.UserByID(id), map[string]any{
		"lastLogin": at,
		"updatedAt": at,
	})
}

// SyncEmailRow patches the denormalized email row with attributes changed on
// the id row.
func (u *Users) SyncEmailRow(ctx context.Context, email string, diff map[string]any) error {
	return u.update(ctx, keys.UserByEmail(email), diff)
}

func (u *Users) update(ctx context.Context, key store.Key, diff map[string]any) error {
	err := u.store.Update(ctx, key, diff)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundf("user not found")
	}
	if err != nil {
		return apperr.DbError(err, "failed to update user")
	}
	return nil
}
