// Package action maps inbound routes to the operation they run and owns the
// input schema each operation's body must satisfy.
package action

import (
	"fmt"
	"net/http"

	"github.com/jacentio/accounts/internal/apperr"
)

// Action identifies a business operation.
type Action int

const (
	SignUp Action = iota + 1
	SignIn
	CreateOrganization
)

func (a Action) String() string {
	switch a {
	case SignUp:
		return "SIGN_UP"
	case SignIn:
		return "SIGN_IN"
	case CreateOrganization:
		return "CREATE_ORGANIZATION"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Entry is what a route resolves to.
type Entry struct {
	Action Action

	// Schema parses and validates the request body. A nil Schema means the
	// body is decoded without constraints.
	Schema Schema
}

var routes = map[string]map[string]Entry{
	"/signUp": {
		http.MethodPost: {Action: SignUp, Schema: SignUpSchema},
	},
	"/signIn": {
		http.MethodPost: {Action: SignIn, Schema: SignInSchema},
	},
	"/organization": {
		http.MethodPost: {Action: CreateOrganization, Schema: OrganizationSchema},
	},
}

// Lookup resolves the action for a resource path and HTTP method.
func Lookup(resource, method string) (Entry, error) {
	methods, ok := routes[resource]
	if !ok {
		return Entry{}, apperr.NotFoundf("resource not configured")
	}
	entry, ok := methods[method]
	if !ok {
		return Entry{}, apperr.NotFoundf("action not provided")
	}
	return entry, nil
}
