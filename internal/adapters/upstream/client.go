// Package upstream contains fasthttp clients for the services routegate calls.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/samirrijal/routegate/internal/core/domain"
)

const maxErrorBody = 200

var validate = validator.New(validator.WithRequiredStructEnabled())

// errInvalidPayload marks a 2xx body that decoded but broke its validate tags.
var errInvalidPayload = errors.New("invalid payload")

// httpClient wraps a fasthttp.Client with JSON decoding and error mapping.
type httpClient struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func newHTTPClient(name string, timeout time.Duration) *httpClient {
	return &httpClient{
		client: &fasthttp.Client{
			Name:                name,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
	}
}

// getJSON performs a GET and decodes a 2xx body into out.
// It returns domain.ErrUpstreamTimeout on timeouts and
// *domain.UpstreamResponseError for any other status.
func (h *httpClient) getJSON(ctx context.Context, build func(req *fasthttp.Request), out any) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrUpstreamTimeout
		}
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	build(req)

	if err := h.client.DoDeadline(req, resp, h.deadline(ctx)); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
			return fmt.Errorf("GET %s: %w", req.URI().Path(), domain.ErrUpstreamTimeout)
		}
		return fmt.Errorf("GET %s: %w", req.URI().Path(), err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return &domain.UpstreamResponseError{StatusCode: status, Message: errorMessage(resp.Body())}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URI().Path(), err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w from %s: %v", errInvalidPayload, req.URI().Path(), err)
	}
	return nil
}

// deadline is the earlier of the context deadline and the client timeout.
func (h *httpClient) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(h.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to a prefix of the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
