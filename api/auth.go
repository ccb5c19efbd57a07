package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xraph/burst"
)

// Scopes granted to API identities.
const (
	ScopeRead  = "burst:read"
	ScopeWrite = "burst:write"
	ScopeAll   = "*"
)

// Identity represents an authenticated caller.
type Identity struct {
	Subject string   `json:"subject" yaml:"subject"`
	Scopes  []string `json:"scopes,omitempty" yaml:"scopes"`
}

// HasScope returns true if the identity has the given scope. ScopeAll
// grants every scope and ScopeWrite implies ScopeRead.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == ScopeAll || s == scope || (s == ScopeWrite && scope == ScopeRead) {
			return true
		}
	}
	return false
}

// Authenticator validates a bearer token and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// APIKeyEntry maps a token to an identity.
type APIKeyEntry struct {
	Token    string
	Identity Identity
}

// APIKeyAuthenticator validates API keys against a static list.
type APIKeyAuthenticator struct {
	keys []APIKeyEntry
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(entries ...APIKeyEntry) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: slices.Clone(entries)}
}

func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, burst.ErrUnauthorized
	}
	for i := range a.keys {
		if subtle.ConstantTimeCompare([]byte(a.keys[i].Token), []byte(token)) == 1 {
			id := a.keys[i].Identity
			return &id, nil
		}
	}
	return nil, burst.ErrUnauthorized
}

// NoopAuthenticator accepts every request with a wildcard identity. It
// is the default when no keys are configured.
type NoopAuthenticator struct{}

func (NoopAuthenticator) Authenticate(context.Context, string) (*Identity, error) {
	return &Identity{Subject: "anonymous", Scopes: []string{ScopeAll}}, nil
}

const identityKey = "burst.identity"

// bearer extracts the token from the Authorization header, or from the
// token query parameter for EventSource and WebSocket clients that cannot
// set headers.
func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return c.Query("token")
}

// require authenticates the request and checks scope.
func (a *API) require(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.auth.Authenticate(c.Request.Context(), bearer(c))
		if err != nil {
			fail(c, burst.ErrUnauthorized)
			return
		}
		if !id.HasScope(scope) {
			fail(c, fmt.Errorf("%w: %s requires %s", burst.ErrForbidden, id.Subject, scope))
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the identity authenticated for c.
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}
