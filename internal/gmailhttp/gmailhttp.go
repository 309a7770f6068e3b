/*
Package gmailhttp implements an HTTP client for the GMail API.

OAuth 2.0 tokens are acquired by running an external SSO program that
prints a bearer token for a user and scope to stdout, in the manner of
https://github.com/google/oauth2l (see its util/sso.go).

The SSO program does not report the token's actual expiry, so tokens
are conservatively re-fetched every five minutes.  OAuth 2.0 clients
should treat client-side expiry as no more than an optimization that
avoids needless round trips; the server can invalidate a token at any
time.
*/

package gmailhttp

import (
	"bytes"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/matta/gmfetch/internal/gmail"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi/transport"
)

// Config describes how to obtain GMail API credentials.
type Config struct {
	// SSOCommand is the path of the external token program.  It is
	// invoked as: command <account> <scope>.
	SSOCommand string

	// Account is the mail account to authenticate, e.g.
	// "user@example.com".
	Account string

	// APIKey is an optional developer API key attached to every
	// request.
	APIKey string
}

// ssoTokenSource runs an external program to retrieve an OAuth 2.0
// bearer token for a given user and scope.
type ssoTokenSource struct {
	sso     string
	account string
	scope   string
}

// Token returns a new token for the configured account and scope by
// executing the external program.  Satisfies oauth2.TokenSource.
func (s *ssoTokenSource) Token() (*oauth2.Token, error) {
	cmd := exec.Command(s.sso, s.account, s.scope)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running SSO token command %q", s.sso)
	}

	return &oauth2.Token{
		AccessToken: strings.TrimSpace(out.String()),
		// The SSO program does not report expiry; re-fetch
		// every 5 minutes.
		Expiry: time.Now().Add(time.Minute * 5),
	}, nil
}

// New returns a new HTTP client capable of using the GMail API with
// read-only scope.
func New(cfg Config) (*http.Client, error) {
	if cfg.SSOCommand == "" {
		return nil, errors.New("gmailhttp: an SSO token command is required")
	}
	if cfg.Account == "" {
		return nil, errors.New("gmailhttp: an account is required")
	}

	src := &ssoTokenSource{
		sso:     cfg.SSOCommand,
		account: cfg.Account,
		scope:   gmail.ReadonlyScope,
	}

	var base http.RoundTripper
	if cfg.APIKey != "" {
		base = &transport.APIKey{Key: cfg.APIKey}
	}
	trans := &oauth2.Transport{
		Source: oauth2.ReuseTokenSource(nil, src),
		Base:   base,
	}

	return &http.Client{Transport: trans}, nil
}
