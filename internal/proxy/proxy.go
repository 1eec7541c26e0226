// internal/proxy/proxy.go
// Outbound client to the downstream core service. Forwards the caller's
// bearer token unchanged and passes core responses through verbatim.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/allsource/controlplane/internal/tracing"
)

// ErrCoreUnavailable marks transport-level failures: connection refused,
// timeout, DNS. Core 4xx/5xx responses are not errors; they pass through.
var ErrCoreUnavailable = errors.New("core service unreachable")

const DefaultTimeout = 10 * time.Second

// Result is a core response relayed as-is.
type Result struct {
	StatusCode int
	Body       []byte
}

// CoreClient issues authenticated requests to the core service.
type CoreClient struct {
	client *resty.Client
}

func NewCoreClient(baseURL string, timeout time.Duration) *CoreClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CoreClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
	}
}

// Forward sends method+path to the core with the caller's token and an
// optional JSON body. The outbound call runs in a child span and carries
// the current trace context in its headers.
func (c *CoreClient) Forward(ctx context.Context, method, path, token string, body []byte) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.Tracer("proxy"), "core "+method+" "+path,
		attribute.String("http.method", method),
		attribute.String("http.url", path),
	)
	defer span.End()

	req := c.client.R().SetContext(ctx)
	tracing.Inject(ctx, propagation.HeaderCarrier(req.Header))
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %v", ErrCoreUnavailable, err)
	}

	tracing.AddSpanAttributes(ctx, attribute.Int("http.status_code", resp.StatusCode()))
	return &Result{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// CheckHealth probes the core /health endpoint.
func (c *CoreClient) CheckHealth(ctx context.Context, token string) (*Result, error) {
	return c.Forward(ctx, "GET", "/health", token, nil)
}
