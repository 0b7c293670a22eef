package sd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/browser"
)

// AuthCodeFlow captures a single OAuth authorization code: it starts
// a transient listener on the redirect address, opens the browser at
// the authorization URL, resolves on the first matching redirect, and
// shuts the listener down.
type AuthCodeFlow struct {
	client  StravaClient
	addr    string // listen address, e.g. "localhost:3000"
	path    string // redirect path, e.g. "/oauth"
	logger  Logger
	openURL func(string) error
}

// NewAuthCodeFlow creates a new authorization flow listening on addr.
func NewAuthCodeFlow(client StravaClient, addr string, logger Logger) *AuthCodeFlow {
	return &AuthCodeFlow{
		client:  client,
		addr:    addr,
		path:    "/oauth",
		logger:  logger,
		openURL: browser.OpenURL,
	}
}

// authOutcome is the resolution of the one-shot listener.
type authOutcome struct {
	code string
	err  error
}

// AuthorizationCode opens the browser and blocks until the redirect
// delivers an authorization code (or a denial).
func (f *AuthCodeFlow) AuthorizationCode() (string, error) {
	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", f.addr, err)
	}

	// The first matching redirect wins; the buffered channel lets the
	// handler return without waiting for the receiver.
	outcome := make(chan authOutcome, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(f.path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			fmt.Fprint(w, "Authorization was denied, you can close this window")
			select {
			case outcome <- authOutcome{err: fmt.Errorf("authorization denied: %s", errParam)}:
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authenticated with Strava, you can now close this window")
		select {
		case outcome <- authOutcome{code: code}:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go server.Serve(ln)

	// The redirect URI must match the one registered with the
	// provider, so the configured address is used as-is; an ephemeral
	// port (":0") is resolved to the actual bound address.
	addr := f.addr
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "0" {
		addr = ln.Addr().String()
	}
	redirectURI := "http://" + addr + f.path
	authURL := f.client.AuthorizationURL(redirectURI)
	f.logger.Info("opening browser for authorization", "url", authURL)
	if err := f.openURL(authURL); err != nil {
		// Not fatal; the user can paste the URL themselves.
		f.logger.Warn("failed to open browser, visit the URL manually", "error", err)
	}

	result := <-outcome

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		f.logger.Warn("failed to shut down redirect listener", "error", err)
	}

	return result.code, result.err
}
