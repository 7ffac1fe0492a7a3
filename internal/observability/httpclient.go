package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient returns a client whose transport propagates trace context and
// records a client span per request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ExternalObserver records outbound provider calls; *Prom implements it.
type ExternalObserver interface {
	ObserveExternal(provider string, d time.Duration, err error)
}
