package service

import (
	"context"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/model"
)

// CreateOrganizationInput is the body of an organization request.
type CreateOrganizationInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateOrganization creates an organization and makes the user registered
// with in.Email its first member.
//
// The user is resolved before anything is written. If linking still fails,
// any link row the batch managed to write and the organization rows are
// removed again, so the name is not left claimed by an organization nobody
// belongs to and no link row points at a deleted organization.
func (a *Accounts) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*model.Organization, error) {
	log := logging.FromContext(ctx)

	_, err := a.orgs.GetOrganizationByName(ctx, in.Name)
	switch {
	case err == nil:
		return nil, apperr.Conflictf("An organization with same name already exists.")
	case !apperr.Is(err, apperr.NotFound):
		return nil, err
	}

	user, err := a.users.GetUserByEmail(ctx, in.Email)
	if apperr.Is(err, apperr.NotFound) {
		log.Error("user not found for organization admin", "email", in.Email)
		return nil, apperr.NotFoundf("User not found for the given email %s", in.Email)
	}
	if err != nil {
		return nil, err
	}

	org, err := a.orgs.CreateOrganization(ctx, model.CreateOrganizationInput{Name: in.Name, Email: in.Email})
	if err != nil {
		return nil, err
	}

	if _, err := a.orgs.CreateOrgUser(ctx, user.ID, org.ID, org.Name); err != nil {
		log.Error("failed to link organization admin", "orgId", org.ID, "userId", user.ID, "error", err)
		if delErr := a.orgs.DeleteOrgUser(ctx, user.ID, org.ID); delErr != nil {
			log.Error("failed to roll back organization links", "orgId", org.ID, "userId", user.ID, "error", delErr)
		}
		if delErr := a.orgs.DeleteOrganization(ctx, org); delErr != nil {
			log.Error("failed to roll back organization", "orgId", org.ID, "error", delErr)
		}
		return nil, err
	}
	return org, nil
}
