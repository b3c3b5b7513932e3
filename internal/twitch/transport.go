package twitch

import (
	"net/http"

	"github.com/dgellow/twitch-login/internal/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ClientIDHeader carries the application's client id on every Helix request.
const ClientIDHeader = "Client-Id"

// clientIDTransport sets the Client-Id header on each outgoing request.
type clientIDTransport struct {
	clientID string
	base     http.RoundTripper
}

func (t *clientIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(ClientIDHeader, t.clientID)
	log.LogTraceWithFields("twitch", "Provider request", map[string]any{
		"method": req.Method,
		"host":   req.URL.Host,
		"path":   req.URL.Path,
	})
	return t.base.RoundTrip(req)
}

// newTransport wraps base with the Client-Id header and OpenTelemetry instrumentation.
func newTransport(clientID string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &clientIDTransport{
		clientID: clientID,
		base:     otelhttp.NewTransport(base),
	}
}
