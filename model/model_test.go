package model_test

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/accounts/internal/ddbtest"
	"github.com/jacentio/accounts/internal/password"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/store"
)

const table = "accounts-test"

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type fixture struct {
	client *ddbtest.Client
	store  *store.Store
	users  *model.Users
	orgs   *model.Organizations
}

func newFixture(t *testing.T, opts ...model.Option) *fixture {
	t.Helper()
	client := ddbtest.NewClient()
	s := store.New(client, store.Config{
		TableName:        table,
		BatchRetries:     1,
		BatchBackoffBase: time.Millisecond,
		BatchBackoffCap:  time.Millisecond,
	})
	opts = append([]model.Option{model.WithClock(func() time.Time { return fixedNow })}, opts...)
	users := model.NewUsers(s, password.NewHasher(bcrypt.MinCost), opts...)
	return &fixture{
		client: client,
		store:  s,
		users:  users,
		orgs:   model.NewOrganizations(s, users, opts...),
	}
}
