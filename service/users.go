package service

import (
	"context"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/model"
)

// SignUpInput is the body of a sign-up request.
type SignUpInput struct {
	FullName string         `json:"fullName"`
	Email    string         `json:"email"`
	AuthType model.AuthType `json:"authType"`
	Password string         `json:"password,omitempty"`
}

// SignInInput is the body of a sign-in request.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a new user unless the email is already taken.
func (a *Accounts) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	log := logging.FromContext(ctx)

	existing, err := a.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		log.Info("user already exists", "userId", existing.ID)
		return nil, apperr.Conflictf("A user with email already exists.")
	case !apperr.Is(err, apperr.NotFound):
		return nil, err
	}

	return a.users.CreateUser(ctx, model.CreateUserInput{
		FullName: in.FullName,
		Email:    in.Email,
		AuthType: in.AuthType,
		Password: in.Password,
	})
}

// SignIn returns the user registered with the given email after checking
// the password of Credentials users.
func (a *Accounts) SignIn(ctx context.Context, in SignInInput) (*model.User, error) {
	log := logging.FromContext(ctx)

	user, err := a.users.GetUserByEmail(ctx, in.Email)
	if apperr.Is(err, apperr.NotFound) {
		return nil, apperr.NotFoundf("User not found for the given email.")
	}
	if err != nil {
		return nil, err
	}

	if user.AuthType == model.AuthCredentials && !a.users.VerifyPassword(in.Password, user.PasswordHash) {
		log.Info("sign in rejected", "userId", user.ID)
		return nil, apperr.BadRequestf("Invalid password")
	}

	at := a.now().UTC()
	if err := a.users.TouchLastLogin(ctx, user.ID, at); err != nil {
		log.Warn("failed to record last login", "userId", user.ID, "error", err)
	} else {
		user.LastLogin = &at
		user.UpdatedAt = at
	}
	return user, nil
}
