package dispatch

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/accounts/internal/apperr"
)

// HandleAPIGateway adapts Dispatch to API Gateway proxy integrations. It
// never returns an error: failures are reported in the response.
func (d *Dispatcher) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	in := Request{
		Resource:  req.Resource,
		Method:    req.HTTPMethod,
		RequestID: req.RequestContext.RequestID,
	}
	if req.Body != "" {
		body := req.Body
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(body)
			if err != nil {
				log := d.logger.With("requestId", in.RequestID, "resource", in.Resource, "method", in.Method)
				return proxyResponse(failure(log, &apperr.Error{
					Kind:    apperr.Validation,
					Message: "Body is not valid base64",
					Err:     err,
				})), nil
			}
			body = string(decoded)
		}
		in.Body = &body
	}

	return proxyResponse(d.Dispatch(ctx, in)), nil
}

func proxyResponse(resp Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       resp.Body,
	}
}
