// Command oauth-init runs the installed-app consent flow once and saves the
// token the Sheets adapter reads through GOOGLE_OAUTH_TOKEN_FILE.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	"gagyebu/internal/cli"
	gsheet "gagyebu/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(slog.LevelInfo)

	cfg, err := gsheet.OAuthClientConfig()
	if err != nil {
		logger.Error("OAuth client unavailable", "error", err)
		os.Exit(1)
	}

	port := strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_PORT"))
	if port == "" {
		port = "8085"
	}
	// The OAuth client must list this URI among its authorized redirects.
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	state, err := newState()
	if err != nil {
		logger.Error("Failed to generate state", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	codes := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", callback(state, codes))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", "error", err, "port", port)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	var code string
	select {
	case code = <-codes:
	case <-ctx.Done():
		logger.Error("Authorization did not complete", "error", ctx.Err())
		os.Exit(1)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", "error", err)
		os.Exit(1)
	}
	path := gsheet.TokenFile()
	if err := gsheet.SaveToken(path, tok); err != nil {
		logger.Error("Failed to save token", "error", err, "path", path)
		os.Exit(1)
	}
	logger.Info("OAuth token saved", "path", path, "has_refresh_token", tok.RefreshToken != "")
}

// callback accepts the first redirect carrying the expected state.
func callback(state string, codes chan<- string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		select {
		case codes <- code:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		default:
			http.Error(w, "already authorized", http.StatusConflict)
		}
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
