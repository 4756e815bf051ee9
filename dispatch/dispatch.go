// Package dispatch turns a raw request into a call to one account operation
// and the operation's outcome into a response envelope.
//
// Every request goes through the same steps: resolve the action for the
// route, parse and validate the body, invoke the operation, format the
// response. Any error or panic on the way is converted into an error
// envelope; nothing escapes Dispatch.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jacentio/accounts/action"
	"github.com/jacentio/accounts/internal/apperr"
	"github.com/jacentio/accounts/internal/logging"
	"github.com/jacentio/accounts/model"
	"github.com/jacentio/accounts/service"
	"github.com/jacentio/accounts/store"
)

// Request is a transport-neutral inbound request.
type Request struct {
	Resource string
	Method   string

	// Body is the raw JSON body, nil when the request had none.
	Body *string

	RequestID string
}

// Response is the envelope handed back to the transport.
type Response struct {
	StatusCode int
	Body       string
}

// Operations are the business operations a request can be routed to.
// *service.Accounts implements it.
type Operations interface {
	SignUp(ctx context.Context, in service.SignUpInput) (*model.User, error)
	SignIn(ctx context.Context, in service.SignInInput) (*model.User, error)
	CreateOrganization(ctx context.Context, in service.CreateOrganizationInput) (*model.Organization, error)
}

// internalMessage replaces the message of unclassified errors so internals
// never reach clients.
const internalMessage = "Internal server error"

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Dispatcher routes requests to Operations. It keeps no state between
// requests.
type Dispatcher struct {
	ops    Operations
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(ops Operations, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ops: ops, logger: logger}
}

// Dispatch handles one request.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	log := d.logger.With(
		"requestId", req.RequestID,
		"resource", req.Resource,
		"method", req.Method,
	)

	result, err := d.run(ctx, log, req)
	if err != nil {
		return failure(log, err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return failure(log, fmt.Errorf("encode response: %w", err))
	}
	return Response{StatusCode: http.StatusOK, Body: string(body)}
}

func (d *Dispatcher) run(ctx context.Context, log *slog.Logger, req Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	entry, err := action.Lookup(req.Resource, req.Method)
	if err != nil {
		return nil, err
	}
	log = log.With("action", entry.Action.String())

	var body []byte
	if req.Body != nil {
		body = []byte(*req.Body)
	}
	schema := entry.Schema
	if schema == nil {
		schema = action.Decode
	}
	in, err := schema(body)
	if err != nil {
		return nil, err
	}

	return d.invoke(logging.WithContext(ctx, log), entry.Action, in)
}

func (d *Dispatcher) invoke(ctx context.Context, act action.Action, in any) (any, error) {
	switch act {
	case action.SignUp:
		v, err := input[service.SignUpInput](act, in)
		if err != nil {
			return nil, err
		}
		return result(d.ops.SignUp(ctx, v))
	case action.SignIn:
		v, err := input[service.SignInInput](act, in)
		if err != nil {
			return nil, err
		}
		return result(d.ops.SignIn(ctx, v))
	case action.CreateOrganization:
		v, err := input[service.CreateOrganizationInput](act, in)
		if err != nil {
			return nil, err
		}
		return result(d.ops.CreateOrganization(ctx, v))
	default:
		return nil, apperr.BadRequestf("unrecognized action %s", act)
	}
}

func input[T any](act action.Action, in any) (T, error) {
	v, ok := in.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("action %s: expected %T input, got %T", act, zero, in)
	}
	return v, nil
}

// result drops the typed value of a failed operation so a nil pointer never
// reaches the response body.
func result[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func failure(log *slog.Logger, err error) Response {
	kind := apperr.KindOf(err)
	body := errorBody{Kind: kind.String(), Message: internalMessage}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Field = appErr.Field
	}

	switch kind {
	case apperr.Db, apperr.Unclassified:
		log.Error("request failed", "kind", kind.String(), "errorCode", store.ErrorCode(err), "error", err)
	default:
		log.Info("request rejected", "kind", kind.String(), "error", err)
	}

	encoded, encErr := json.Marshal(body)
	if encErr != nil {
		encoded = []byte(`{"kind":"InternalError","message":"` + internalMessage + `"}`)
	}
	return Response{StatusCode: kind.Status(), Body: string(encoded)}
}
