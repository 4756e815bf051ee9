package model_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/ddbtest"
	"github.com/jacentio/accounts/model"
)

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(org.ID, "org_"))
	assert.Equal(t, "a@x.com", org.OrgEmail)
	assert.Equal(t, "a@x.com", org.AdminEmail)

	byName, err := f.orgs.GetOrganizationByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, org.ID, byName.ID)

	byID, err := f.orgs.GetOrganizationByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", byID.Name)
	assert.True(t, byID.CreatedAt.Equal(fixedNow))
}

func TestCreateOrganization_StrictRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "b@x.com"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, 2, f.client.Len(table))
}

func TestCreateOrganization_NonStrictOverwritesNameRow(t *testing.T) {
	f := newFixture(t, model.WithStrictUniqueness(false))
	ctx := context.Background()

	first, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)
	second, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "b@x.com"})
	require.NoError(t, err, "without guards the model does not detect duplicates")

	byName, err := f.orgs.GetOrganizationByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byName.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 3, f.client.Len(table))
}

func TestGetOrganization_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orgs.GetOrganizationByName(ctx, "Nope")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.orgs.GetOrganizationByID(ctx, "org_nope")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDeleteOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, f.orgs.DeleteOrganization(ctx, org))
	assert.Zero(t, f.client.Len(table))

	_, err = f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	assert.NoError(t, err, "name is free again after delete")
}

func TestDeleteOrganization_Failure(t *testing.T) {
	f := newFixture(t)
	f.client.FailOn(ddbtest.OpDeleteItem, errors.New("boom"))

	err := f.orgs.DeleteOrganization(context.Background(), &model.Organization{ID: "org_1", Name: "Acme"})
	assert.Equal(t, apperr.Db, apperr.KindOf(err))
}

func TestDeleteOrganization_KeepsNameRowClaimedByAnother(t *testing.T) {
	f := newFixture(t, model.WithStrictUniqueness(false))
	ctx := context.Background()

	loser, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)
	winner, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "b@x.com"})
	require.NoError(t, err)

	require.NoError(t, f.orgs.DeleteOrganization(ctx, loser))

	byName, err := f.orgs.GetOrganizationByName(ctx, "Acme")
	require.NoError(t, err, "name row of the other organization survives")
	assert.Equal(t, winner.ID, byName.ID)

	_, err = f.orgs.GetOrganizationByID(ctx, loser.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, 2, f.client.Len(table))
}

func TestDeleteOrgUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, credentials("a@x.com"))
	require.NoError(t, err)
	_, err = f.orgs.CreateOrgUser(ctx, user.ID, "org_1", "Acme")
	require.NoError(t, err)

	require.NoError(t, f.orgs.DeleteOrgUser(ctx, user.ID, "org_1"))

	members, err := f.orgs.ListMembers(ctx, "org_1")
	require.NoError(t, err)
	assert.Empty(t, members)
	memberships, err := f.orgs.ListUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	assert.NoError(t, f.orgs.DeleteOrgUser(ctx, user.ID, "org_1"), "missing link rows are ignored")
}

func TestDeleteOrgUser_Failure(t *testing.T) {
	f := newFixture(t)
	f.client.FailOn(ddbtest.OpDeleteItem, errors.New("boom"))

	err := f.orgs.DeleteOrgUser(context.Background(), "user_1", "org_1")
	assert.Equal(t, apperr.Db, apperr.KindOf(err))
}

func TestCreateOrgUser_WritesBothLinkRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, credentials("a@x.com"))
	require.NoError(t, err)
	org, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)

	linked, err := f.orgs.CreateOrgUser(ctx, user.ID, org.ID, org.Name)
	require.NoError(t, err)
	assert.Equal(t, user.ID, linked.ID)

	members, err := f.orgs.ListMembers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, user.ID, members[0].UserID)
	assert.Equal(t, "A", members[0].FullName)
	assert.Equal(t, "a@x.com", members[0].Email)

	memberships, err := f.orgs.ListUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, org.ID, memberships[0].OrgID)
	assert.Equal(t, "Acme", memberships[0].OrgName)
	assert.Equal(t, "A", memberships[0].FullName)
	assert.Equal(t, "a@x.com", memberships[0].Email)
}

func TestCreateOrgUser_MissingUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.orgs.CreateOrgUser(context.Background(), "user_missing", "org_1", "Acme")

	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Zero(t, f.client.Calls(ddbtest.OpBatchWriteItem))
}

func TestCreateOrgUser_PartialBatchIsDbError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, credentials("a@x.com"))
	require.NoError(t, err)
	f.client.LeaveUnprocessed(1)

	_, err = f.orgs.CreateOrgUser(ctx, user.ID, "org_1", "Acme")
	assert.Equal(t, apperr.Db, apperr.KindOf(err))

	members, err := f.orgs.ListMembers(ctx, "org_1")
	require.NoError(t, err)
	assert.Len(t, members, 1, "org-side row was applied")

	memberships, err := f.orgs.ListUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships, "user-side row was not")
}

func TestListUserOrganizations_Many(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, credentials("a@x.com"))
	require.NoError(t, err)
	for _, name := range []string{"Acme", "Globex", "Initech"} {
		org, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: name, Email: "a@x.com"})
		require.NoError(t, err)
		_, err = f.orgs.CreateOrgUser(ctx, user.ID, org.ID, org.Name)
		require.NoError(t, err)
	}

	memberships, err := f.orgs.ListUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, memberships, 3)

	other, err := f.orgs.ListUserOrganizations(ctx, "user_other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSyncMemberProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, credentials("a@x.com"))
	require.NoError(t, err)
	org, err := f.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: "Acme", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = f.orgs.CreateOrgUser(ctx, user.ID, org.ID, org.Name)
	require.NoError(t, err)

	memberships, err := f.orgs.ListUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)

	require.NoError(t, f.orgs.SyncMemberProfile(ctx, memberships[0], "A. Person", "a@x.com"))

	members, err := f.orgs.ListMembers(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "A. Person", members[0].FullName)

	memberships, err = f.orgs.ListUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "A. Person", memberships[0].FullName)
}

func TestSyncMemberProfile_SkipsMissingRows(t *testing.T) {
	f := newFixture(t)

	err := f.orgs.SyncMemberProfile(context.Background(), model.Membership{UserID: "user_1", OrgID: "org_1"}, "A", "a@x.com")

	assert.NoError(t, err)
	assert.Zero(t, f.client.Len(table))
}
