package action

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/service"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		resource string
		method   string
		want     Action
	}{
		{"/signUp", http.MethodPost, SignUp},
		{"/signIn", http.MethodPost, SignIn},
		{"/organization", http.MethodPost, CreateOrganization},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			entry, err := Lookup(tt.resource, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entry.Action)
			assert.NotNil(t, entry.Schema)
		})
	}
}

func TestLookup_Misses(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		method   string
		message  string
	}{
		{"unknown resource", "/unknown", http.MethodGet, "resource not configured"},
		{"unmapped method", "/signUp", http.MethodGet, "action not provided"},
		{"method is case sensitive", "/signIn", "post", "action not provided"},
		{"resource is case sensitive", "/signup", http.MethodPost, "resource not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup(tt.resource, tt.method)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.NotFound, appErr.Kind)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "CREATE_ORGANIZATION", CreateOrganization.String())
	assert.Equal(t, "Action(42)", Action(42).String())
}

func TestSignUpSchema(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"valid", `{"fullName":"Ada","email":"ada@example.com","authType":"Credentials","password":"engine"}`, ""},
		{"empty body", ``, "fullName"},
		{"missing fullName", `{"email":"ada@example.com","authType":"Credentials","password":"p"}`, "fullName"},
		{"malformed email", `{"fullName":"Ada","email":"ada","authType":"Credentials","password":"p"}`, "email"},
		{"missing authType", `{"fullName":"Ada","email":"ada@example.com","password":"p"}`, "authType"},
		{"unknown authType", `{"fullName":"Ada","email":"ada@example.com","authType":"Magic","password":"p"}`, "authType"},
		{"credentials without password", `{"fullName":"Ada","email":"ada@example.com","authType":"Credentials"}`, "password"},
		{"wrong type", `{"fullName":7,"email":"ada@example.com","authType":"Credentials","password":"p"}`, "fullName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := SignUpSchema([]byte(tt.body))
			if tt.field == "" {
				require.NoError(t, err)
				got, ok := in.(service.SignUpInput)
				require.True(t, ok, "expected service.SignUpInput, got %T", in)
				assert.Equal(t, model.AuthCredentials, got.AuthType)
				assert.Equal(t, "engine", got.Password)
				return
			}
			assertValidation(t, err, tt.field)
		})
	}
}

func TestSignInSchema(t *testing.T) {
	_, err := SignInSchema([]byte(`{"email":"ada@example.com","password":"p"}`))
	require.NoError(t, err)

	_, err = SignInSchema([]byte(`{"email":"ada@example.com"}`))
	assertValidation(t, err, "password")
}

func TestOrganizationSchema(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"valid", `{"name":"Analytical","email":"ada@example.com","extra":true}`, ""},
		{"email is not format checked", `{"name":"Analytical","email":"ada"}`, ""},
		{"missing name", `{"email":"ada@example.com"}`, "name"},
		{"missing email", `{"name":"Analytical"}`, "email"},
		{"empty email", `{"name":"Analytical","email":""}`, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := OrganizationSchema([]byte(tt.body))
			if tt.field == "" {
				require.NoError(t, err)
				got, ok := in.(service.CreateOrganizationInput)
				require.True(t, ok, "expected service.CreateOrganizationInput, got %T", in)
				assert.Equal(t, "Analytical", got.Name)
				return
			}
			assertValidation(t, err, tt.field)
		})
	}
}

func TestSchema_NonObjectBodies(t *testing.T) {
	for _, body := range []string{`[]`, `"text"`, `{"name":`} {
		_, err := OrganizationSchema([]byte(body))
		assert.Equal(t, apperr.Validation, apperr.KindOf(err), "body %s", body)
	}
}

func TestDecode(t *testing.T) {
	for _, body := range []string{``, `null`, `{}`} {
		in, err := Decode([]byte(body))
		require.NoError(t, err, "body %q", body)
		assert.Equal(t, map[string]any{}, in, "body %q", body)
	}
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.Validation, appErr.Kind)
	assert.Equal(t, field, appErr.Field)
}
