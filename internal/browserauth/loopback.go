package browserauth

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgellow/twitch-login/internal/crypto"
	"github.com/dgellow/twitch-login/internal/json"
	"github.com/dgellow/twitch-login/internal/log"
	"github.com/dgellow/twitch-login/internal/urlutil"
)

const (
	// DefaultListenAddr matches the redirect URL most Twitch applications register.
	DefaultListenAddr = "localhost:3000"

	// DefaultCallbackPath is the redirect path served by the loopback server.
	DefaultCallbackPath = "/callback"

	// DefaultTimeout bounds how long a flow waits for the redirect.
	DefaultTimeout = 5 * time.Minute

	// RelayKeyHeader carries the per-flow key the landing page embeds in its
	// relay POST.
	RelayKeyHeader = "X-Relay-Key"

	maxResultBytes  = 64 << 10
	shutdownTimeout = 5 * time.Second
)

//go:embed templates/callback.html
var callbackPageHTML string

var callbackPageTemplate = template.Must(template.New("callback").Parse(callbackPageHTML))

// callbackPageData represents the data for the redirect landing page
type callbackPageData struct {
	AppName    string
	ResultPath string
	RelayKey   string
}

// LoopbackConfig configures a LoopbackLauncher.
type LoopbackConfig struct {
	// ListenAddr is the local address to bind. Defaults to DefaultListenAddr.
	ListenAddr string

	// RedirectURI overrides the redirect target derived from ListenAddr. Its path
	// becomes the callback path.
	RedirectURI string

	// Timeout bounds each flow. Zero means DefaultTimeout; negative disables it.
	Timeout time.Duration

	// AppName is shown on the landing page.
	AppName string

	// OpenBrowser opens the authorization URL. Nil leaves it to Notify.
	OpenBrowser func(url string) error

	// Notify, if set, is told the authorization URL before the flow waits, so the
	// user can open it by hand.
	Notify func(authURL string)
}

// LoopbackLauncher runs consent flows against a local HTTP redirect target. The
// implicit grant returns the token in the URL fragment, which browsers never send
// to servers, so the landing page relays fragment and query back with a POST.
type LoopbackLauncher struct {
	cfg LoopbackConfig
}

// NewLoopbackLauncher creates a launcher, filling in defaults.
func NewLoopbackLauncher(cfg LoopbackConfig) *LoopbackLauncher {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AppName == "" {
		cfg.AppName = "twitch-login"
	}
	return &LoopbackLauncher{cfg: cfg}
}

// Open binds the listener and starts serving the redirect target.
func (l *LoopbackLauncher) Open(ctx context.Context) (Flow, error) {
	callbackPath := DefaultCallbackPath
	if l.cfg.RedirectURI != "" {
		u, err := url.Parse(l.cfg.RedirectURI)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect URI: %w", err)
		}
		if u.Path != "" && u.Path != "/" {
			callbackPath = u.Path
		}
	}
	callbackPath = "/" + strings.Trim(callbackPath, "/")

	relayKey, err := crypto.GenerateState(crypto.StateLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate relay key: %w", err)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", l.cfg.ListenAddr, err)
	}

	redirectURI := l.cfg.RedirectURI
	if redirectURI == "" {
		host, _, err := net.SplitHostPort(l.cfg.ListenAddr)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("invalid listen address %s: %w", l.cfg.ListenAddr, err)
		}
		redirectURI, err = urlutil.LoopbackURL(host, ln.Addr(), callbackPath)
		if err != nil {
			ln.Close()
			return nil, err
		}
	}

	origin, err := urlutil.Origin(redirectURI)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}

	f := &loopbackFlow{
		cfg:          l.cfg,
		redirectURI:  redirectURI,
		origin:       origin,
		relayKey:     relayKey,
		callbackPath: callbackPath,
		resultPath:   callbackPath + "/result",
		results:      make(chan map[string]string, 1),
		serveErr:     make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(f.callbackPath, f.handleCallback)
	mux.HandleFunc(f.resultPath, f.handleResult)
	f.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.serveErr <- err
		}
	}()

	log.LogDebugWithFields("browserauth", "Loopback redirect target ready", map[string]any{
		"redirect_uri": redirectURI,
		"addr":         ln.Addr().String(),
	})

	return f, nil
}

type loopbackFlow struct {
	cfg          LoopbackConfig
	redirectURI  string
	origin       string
	relayKey     string
	callbackPath string
	resultPath   string
	server       *http.Server

	completed atomic.Bool
	results   chan map[string]string
	serveErr  chan error
	closeOnce sync.Once
	closeErr  error
}

func (f *loopbackFlow) RedirectURI() string {
	return f.redirectURI
}

func (f *loopbackFlow) Run(ctx context.Context, authURL string) (*Result, error) {
	if f.cfg.Notify != nil {
		f.cfg.Notify(authURL)
	}
	if f.cfg.OpenBrowser != nil {
		if err := f.cfg.OpenBrowser(authURL); err != nil {
			log.LogWarnWithFields("browserauth", "Failed to open browser, open the URL manually", map[string]any{
				"error": err.Error(),
				"url":   authURL,
			})
		}
	}

	runCtx := ctx
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	select {
	case params := <-f.results:
		return &Result{Type: ResultSuccess, Params: params}, nil
	case err := <-f.serveErr:
		return nil, fmt.Errorf("redirect server failed: %w", err)
	case <-runCtx.Done():
		if ctx.Err() != nil {
			log.LogDebugWithFields("browserauth", "Consent flow cancelled", nil)
			return &Result{Type: ResultCancel}, nil
		}
		log.LogInfoWithFields("browserauth", "Consent flow timed out", map[string]any{
			"timeout": f.cfg.Timeout.String(),
		})
		return &Result{Type: ResultDismiss}, nil
	}
}

func (f *loopbackFlow) Close() error {
	f.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		f.closeErr = f.server.Shutdown(ctx)
	})
	return f.closeErr
}

func (f *loopbackFlow) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		json.WriteMethodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	data := callbackPageData{AppName: f.cfg.AppName, ResultPath: f.resultPath, RelayKey: f.relayKey}
	if err := callbackPageTemplate.Execute(w, data); err != nil {
		log.LogErrorWithFields("browserauth", "Failed to render callback page", map[string]any{
			"error": err.Error(),
		})
	}
}

func (f *loopbackFlow) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		json.WriteMethodNotAllowed(w, http.MethodPost)
		return
	}

	// Form posts are CORS simple requests, so any page in the browser can send
	// one. Only the landing page served by this flow knows the relay key.
	if origin := r.Header.Get("Origin"); origin != "" && origin != f.origin {
		log.LogWarnWithFields("browserauth", "Rejected cross-origin redirect relay", map[string]any{
			"origin": origin,
		})
		json.WriteForbidden(w, "cross-origin request rejected")
		return
	}
	if !crypto.EqualState(f.relayKey, r.Header.Get(RelayKeyHeader)) {
		log.LogWarnWithFields("browserauth", "Rejected redirect relay without a valid key", nil)
		json.WriteForbidden(w, "missing or invalid relay key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxResultBytes)
	if err := r.ParseForm(); err != nil {
		json.WriteBadRequest(w, "invalid redirect parameters")
		return
	}
	if len(r.PostForm) == 0 {
		json.WriteBadRequest(w, "no redirect parameters received")
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}

	if !f.completed.CompareAndSwap(false, true) {
		json.WriteConflict(w, "sign in already completed")
		return
	}
	f.results <- params

	_ = json.Write(w, map[string]string{"status": "received"})
}
