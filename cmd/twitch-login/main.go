package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/twitch-login/internal/browserauth"
	"github.com/dgellow/twitch-login/internal/config"
	"github.com/dgellow/twitch-login/internal/log"
	"github.com/dgellow/twitch-login/internal/session"
	"github.com/dgellow/twitch-login/internal/twitch"
)

var BuildVersion = "dev"

const signOutTimeout = 10 * time.Second

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": config.VersionPrefix,
		"twitch": map[string]any{
			"clientId": map[string]string{"$env": "TWITCH_CLIENT_ID"},
		},
		"login": map[string]any{
			"listenAddr":  config.DefaultListenAddr,
			"timeout":     config.DefaultTimeout.String(),
			"openBrowser": true,
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Path != "" {
				fmt.Printf("  - %s: %s\n", err.Path, err.Message)
			} else {
				fmt.Printf("  - %s\n", err.Message)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Path != "" {
				fmt.Printf("  - %s: %s\n", warn.Path, warn.Message)
			} else {
				fmt.Printf("  - %s\n", warn.Message)
			}
		}
	}

	fmt.Println()
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Println("Result: PASS")
	} else if len(result.Errors) == 0 {
		fmt.Println("Result: FAIL (warnings present)")
	} else {
		fmt.Println("Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func newTwitchClient(cfg config.Config) *twitch.Client {
	var opts []twitch.Option
	if cfg.Twitch.AuthURL != "" {
		opts = append(opts, twitch.WithAuthURL(cfg.Twitch.AuthURL))
	}
	if cfg.Twitch.APIBaseURL != "" {
		opts = append(opts, twitch.WithAPIBaseURL(cfg.Twitch.APIBaseURL))
	}
	if cfg.Twitch.RevokeURL != "" {
		opts = append(opts, twitch.WithRevokeURL(cfg.Twitch.RevokeURL))
	}
	return twitch.NewClient(string(cfg.Twitch.ClientID), opts...)
}

func newLauncher(cfg config.Config, openBrowser bool) *browserauth.LoopbackLauncher {
	lc := browserauth.LoopbackConfig{
		ListenAddr:  cfg.Login.ListenAddr,
		RedirectURI: cfg.Twitch.RedirectURI,
		Timeout:     cfg.Login.Timeout,
		AppName:     cfg.Login.AppName,
		Notify: func(authURL string) {
			fmt.Fprintf(os.Stderr, "Open this URL to sign in with Twitch:\n\n  %s\n\n", authURL)
		},
	}
	if openBrowser {
		lc.OpenBrowser = browserauth.OpenBrowser
	}
	return browserauth.NewLoopbackLauncher(lc)
}

// profile is the signed-in user as printed on stdout. The token is never printed.
type profile struct {
	ID              string    `json:"id"`
	Login           string    `json:"login"`
	DisplayName     string    `json:"display_name"`
	Email           string    `json:"email"`
	ProfileImageURL string    `json:"profile_image_url"`
	Scopes          []string  `json:"scopes"`
	SignedInAt      time.Time `json:"signed_in_at"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
}

func printProfile(sess *session.Session) error {
	p := profile{
		ID:              string(sess.User.ID),
		Login:           sess.User.Login,
		DisplayName:     sess.User.DisplayName,
		Email:           sess.User.Email,
		ProfileImageURL: sess.User.ProfileImageURL,
		Scopes:          sess.Scopes,
		SignedInAt:      sess.SignedInAt,
		ExpiresAt:       sess.Token.Expiry,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func main() {
	conf := flag.String("config", "", "path to config file (optional, the environment is used when omitted)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	noBrowser := flag.Bool("no-browser", false, "print the sign in URL instead of opening a browser")
	keep := flag.Bool("keep", false, "exit after sign in without signing out")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.LogError("Failed to configure logging: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting twitch-login", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := session.NewManager(newTwitchClient(cfg), newLauncher(cfg, cfg.Login.BrowserEnabled() && !*noBrowser))
	manager.Subscribe(func(s session.State) {
		log.LogDebugWithFields("main", "Session state changed", map[string]any{
			"status":    s.Status.String(),
			"signed_in": s.SignedIn(),
		})
	})

	if err := manager.SignIn(ctx); err != nil {
		log.LogError("Failed to sign in: %v", err)
		os.Exit(1)
	}

	sess := manager.Session()
	if sess == nil {
		log.LogError("Sign in did not complete")
		os.Exit(1)
	}
	if err := printProfile(sess); err != nil {
		log.LogError("Failed to print profile: %v", err)
	}

	if *keep {
		return
	}

	log.LogInfoWithFields("main", "Signed in, interrupt to sign out", map[string]any{
		"login": sess.User.Login,
	})
	<-ctx.Done()
	stop()

	signOutCtx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
	defer cancel()
	if err := manager.SignOut(signOutCtx); err != nil {
		log.LogError("Failed to sign out: %v", err)
		os.Exit(1)
	}
}
