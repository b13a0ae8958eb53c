package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// GoogleRevokeURL is Google's token revocation endpoint.
const GoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// Authenticator obtains and revokes user tokens.
type Authenticator interface {
	// Authenticate runs the interactive consent flow for cfg.
	Authenticate(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

	// Revoke invalidates tok at the provider.
	Revoke(ctx context.Context, tok *oauth2.Token) error
}

// LoopbackAuthenticator runs the installed-app OAuth flow: it listens on
// 127.0.0.1, sends the user to the consent page and exchanges the code that
// the browser redirects back with.
type LoopbackAuthenticator struct {
	// Out receives the consent URL. Defaults to os.Stderr.
	Out io.Writer
	// OpenURL, when set, is called with the consent URL (e.g. to launch a browser).
	OpenURL func(string) error
	// RevokeURL defaults to GoogleRevokeURL.
	RevokeURL string
	// HTTPClient is used for revocation. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type callbackResult struct {
	code string
	err  error
}

// Authenticate implements Authenticator.
func (a *LoopbackAuthenticator) Authenticate(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	conf := *cfg
	conf.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	out := a.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Open this URL in your browser to authorize Google Drive access:\n\n%s\n\n", authURL)
	if a.OpenURL != nil {
		if err := a.OpenURL(authURL); err != nil {
			fmt.Fprintf(out, "Could not open the browser: %v\n", err)
		}
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	send := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			send(callbackResult{err: errors.New("oauth callback state mismatch")})
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusForbidden)
			send(callbackResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			send(callbackResult{err: errors.New("oauth callback without code")})
		default:
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			send(callbackResult{code: q.Get("code")})
		}
	})
}

// Revoke implements Authenticator. The refresh token is revoked when present,
// which also invalidates its access tokens.
func (a *LoopbackAuthenticator) Revoke(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}

	endpoint := a.RevokeURL
	if endpoint == "" {
		endpoint = GoogleRevokeURL
	}
	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revoke token: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
