package model

import (
	"context"
	"errors"
	"time"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/keys"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/store"
)

// Organization is a tenant created by a user.
type Organization struct {
	ID         string    `dynamodbav:"id" json:"id"`
	Name       string    `dynamodbav:"name" json:"name"`
	OrgEmail   string    `dynamodbav:"orgEmail" json:"orgEmail"`
	AdminEmail string    `dynamodbav:"adminEmail" json:"adminEmail"`
	CreatedAt  time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

type organizationRow struct {
	store.Key
	Organization
}

// Member is the org-side link row: a user listed under an organization.
type Member struct {
	UserID    string    `dynamodbav:"userId" json:"userId"`
	FullName  string    `dynamodbav:"fullName" json:"fullName"`
	Email     string    `dynamodbav:"email" json:"email"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

type memberRow struct {
	store.Key
	Member
}

// Membership is the user-side link row: an organization listed under a user.
type Membership struct {
	UserID    string    `dynamodbav:"userId" json:"userId"`
	FullName  string    `dynamodbav:"fullName" json:"fullName"`
	Email     string    `dynamodbav:"email" json:"email"`
	OrgID     string    `dynamodbav:"orgId" json:"orgId"`
	OrgName   string    `dynamodbav:"orgName" json:"orgName"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

type membershipRow struct {
	store.Key
	Membership
}

// CreateOrganizationInput holds the fields of a new organization.
// Email becomes both the organization and the admin contact.
type CreateOrganizationInput struct {
	Name  string
	Email string
}

// UserGetter loads users by id.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// Organizations reads and writes organization and membership rows.
type Organizations struct {
	store Store
	users UserGetter
	opts  options
}

// NewOrganizations returns the organization model over s.
func NewOrganizations(s Store, users UserGetter, opts ...Option) *Organizations {
	return &Organizations{store: s, users: users, opts: newOptions(opts)}
}

// CreateOrganization mints an id and writes the name and id rows.
func (o *Organizations) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*Organization, error) {
	now := o.opts.now().UTC()
	org := Organization{
		ID:         newID("org"),
		Name:       in.Name,
		OrgEmail:   in.Email,
		AdminEmail: in.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rows := []any{
		organizationRow{Key: keys.OrgByName(org.Name), Organization: org},
		organizationRow{Key: keys.OrgByID(org.ID), Organization: org},
	}
	err := writeRows(ctx, o.store, o.opts.strict, rows, func() error {
		return apperr.Conflictf("an organization named %s already exists", org.Name)
	})
	if err != nil {
		return nil, writeError(err, "failed to create organization")
	}

	logging.FromContext(ctx).Info("organization created", "orgId", org.ID, "orgName", org.Name)
	return &org, nil
}

// GetOrganizationByName returns the organization called name.
func (o *Organizations) GetOrganizationByName(ctx context.Context, name string) (*Organization, error) {
	return o.get(ctx, keys.OrgByName(name))
}

// GetOrganizationByID returns the organization with id.
func (o *Organizations) GetOrganizationByID(ctx context.Context, id string) (*Organization, error) {
	return o.get(ctx, keys.OrgByID(id))
}

func (o *Organizations) get(ctx context.Context, key store.Key) (*Organization, error) {
	var org Organization
	found, err := o.store.Get(ctx, key, &org)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFoundf("organization not found")
	}
	return &org, nil
}

// DeleteOrganization removes the name and id rows of org. Membership rows
// are left alone. The name row is only removed while it still points at
// org.ID, so a name row another organization has since claimed survives.
func (o *Organizations) DeleteOrganization(ctx context.Context, org *Organization) error {
	log := logging.FromContext(ctx)

	nameErr := o.store.Delete(ctx, keys.OrgByName(org.Name), store.IfAttributeEquals("id", org.ID))
	if errors.Is(nameErr, store.ErrConditionFailed) {
		log.Warn("organization name row not owned, skipping", "orgId", org.ID, "orgName", org.Name)
		nameErr = nil
	}
	err := errors.Join(nameErr, o.store.Delete(ctx, keys.OrgByID(org.ID)))
	if err != nil {
		return apperr.DbError(err, "failed to delete organization")
	}
	log.Info("organization deleted", "orgId", org.ID, "orgName", org.Name)
	return nil
}

// DeleteOrgUser removes both link rows between userID and orgID. Rows that
// were never written are ignored.
func (o *Organizations) DeleteOrgUser(ctx context.Context, userID, orgID string) error {
	err := errors.Join(
		o.store.Delete(ctx, keys.OrgMember(orgID, userID)),
		o.store.Delete(ctx, keys.UserOrg(userID, orgID)),
	)
	if err != nil {
		return apperr.DbError(err, "failed to delete org user")
	}
	return nil
}

// CreateOrgUser links an existing user to an organization by writing the
// org-side and user-side link rows in one batch.
func (o *Organizations) CreateOrgUser(ctx context.Context, userID, orgID, orgName string) (*User, error) {
	log := logging.FromContext(ctx)
	log.Info("creating org user", "userId", userID, "orgId", orgID, "orgName", orgName)

	user, err := o.users.GetUserByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			log.Error("user not found for the given user id", "userId", userID)
		}
		return nil, err
	}

	now := o.opts.now().UTC()
	rows := []any{
		memberRow{
			Key: keys.OrgMember(orgID, userID),
			Member: Member{
				UserID:    user.ID,
				FullName:  user.FullName,
				Email:     user.Email,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		membershipRow{
			Key: keys.UserOrg(userID, orgID),
			Membership: Membership{
				UserID:    user.ID,
				FullName:  user.FullName,
				Email:     user.Email,
				OrgID:     orgID,
				OrgName:   orgName,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}
	if err := o.store.BatchPut(ctx, rows); err != nil {
		return nil, apperr.DbError(err, "failed to create org user")
	}
	return user, nil
}

// ListMembers returns the users linked to orgID, ordered by user id.
func (o *Organizations) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	var members []Member
	if err := o.store.Query(ctx, keys.OrgMembers(orgID), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListUserOrganizations returns the organizations userID belongs to,
// ordered by organization id.
func (o *Organizations) ListUserOrganizations(ctx context.Context, userID string) ([]Membership, error) {
	var memberships []Membership
	if err := o.store.Query(ctx, keys.UserOrgs(userID), &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// SyncMemberProfile copies a user's current name and email onto both link
// rows of m. Link rows that no longer exist are skipped.
func (o *Organizations) SyncMemberProfile(ctx context.Context, m Membership, fullName, email string) error {
	diff := map[string]any{"fullName": fullName, "email": email}
	for _, key := range []store.Key{keys.OrgMember(m.OrgID, m.UserID), keys.UserOrg(m.UserID, m.OrgID)} {
		err := o.store.Update(ctx, key, diff)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return apperr.DbError(err, "failed to sync membership")
		}
	}
	return nil
}
