package browserauth

import "context"

// ResultType describes how an interactive consent flow ended.
type ResultType string

const (
	// ResultSuccess means the provider redirected back. Params may still carry an
	// OAuth error such as access_denied.
	ResultSuccess ResultType = "success"

	// ResultCancel means the caller cancelled the flow before a redirect arrived.
	ResultCancel ResultType = "cancel"

	// ResultDismiss means no redirect arrived before the flow timed out, usually
	// because the user closed the browser tab.
	ResultDismiss ResultType = "dismiss"
)

// Result is the outcome of one consent flow.
type Result struct {
	Type   ResultType
	Params map[string]string
}

// Param returns the named redirect parameter, or "" if absent.
func (r *Result) Param(key string) string {
	if r == nil || r.Params == nil {
		return ""
	}
	return r.Params[key]
}

// Launcher starts interactive consent flows.
type Launcher interface {
	// Open prepares a flow and its redirect target. The caller must Close it.
	Open(ctx context.Context) (Flow, error)
}

// Flow is a single consent attempt.
type Flow interface {
	// RedirectURI is the redirect target to register in the authorization request.
	RedirectURI() string

	// Run sends the user to authURL and blocks until the redirect arrives, ctx is
	// cancelled, or the flow times out. Cancellation and timeouts are reported
	// through Result.Type, not as errors. A nil Result with a nil error is treated
	// as a dismissal.
	Run(ctx context.Context, authURL string) (*Result, error)

	// Close releases the redirect target.
	Close() error
}
