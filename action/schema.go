package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/service"
)

// Schema decodes a raw request body into an operation's input and checks its
// constraints. Failures are Validation errors naming the offending field.
type Schema func(body []byte) (any, error)

// SignUpSchema requires fullName, a well-formed email and a known authType,
// plus a password when authType is Credentials.
func SignUpSchema(body []byte) (any, error) {
	var in service.SignUpInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("fullName", in.FullName); err != nil {
		return nil, err
	}
	if err := email("email", in.Email); err != nil {
		return nil, err
	}
	if in.AuthType == "" {
		return nil, apperr.ValidationError("authType", "Required")
	}
	if !in.AuthType.Valid() {
		return nil, apperr.ValidationError("authType", fmt.Sprintf("Invalid enum value. Expected '%s'", model.AuthCredentials))
	}
	if in.AuthType == model.AuthCredentials && in.Password == "" {
		return nil, apperr.ValidationError("password", "Password is required when authType is Credentials")
	}
	return in, nil
}

// SignInSchema requires an email and a password.
func SignInSchema(body []byte) (any, error) {
	var in service.SignInInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("email", in.Email); err != nil {
		return nil, err
	}
	if err := required("password", in.Password); err != nil {
		return nil, err
	}
	return in, nil
}

// OrganizationSchema requires a name and the email of the creating user.
// The email is only checked for presence: an address no user signed up with
// is reported by the operation as not found.
func OrganizationSchema(body []byte) (any, error) {
	var in service.CreateOrganizationInput
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if err := required("email", in.Email); err != nil {
		return nil, err
	}
	return in, nil
}

// Decode parses body without constraints. An empty body decodes as {}.
func Decode(body []byte) (any, error) {
	var in map[string]any
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if in == nil {
		in = map[string]any{}
	}
	return in, nil
}

func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return apperr.ValidationError("", "Expected object, received "+typeErr.Value)
		}
		return apperr.ValidationError(typeErr.Field, fmt.Sprintf("Expected %s, received %s", typeErr.Type.Kind(), typeErr.Value))
	}
	return &apperr.Error{Kind: apperr.Validation, Message: "Malformed JSON body", Err: err}
}

func required(field, value string) error {
	if value == "" {
		return apperr.ValidationError(field, "Required")
	}
	return nil
}

func email(field, value string) error {
	if err := required(field, value); err != nil {
		return err
	}
	if !strfmt.IsEmail(value) {
		return apperr.ValidationError(field, "Invalid email")
	}
	return nil
}
