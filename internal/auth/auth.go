// Package auth holds the session credential the real-time core is bound to.
//
// Token acquisition and storage happen outside this core; this package only
// carries the result (bearer token, role, identity) and turns it into
// request headers.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/unihub/realtime/internal/model"
)

// Errors
var (
	ErrMissingToken    = errors.New("token is required")
	ErrMissingIdentity = errors.New("user id is required")
)

// Credential is an authenticated session's bearer token plus who it belongs to.
type Credential struct {
	Token  string     // Bearer token issued at login
	Role   model.Role // Dashboard role of the user
	UserID string     // Server-side user identifier
}

// NewCredential builds and validates a Credential.
func NewCredential(token string, role model.Role, userID string) (*Credential, error) {
	c := &Credential{
		Token:  strings.TrimSpace(token),
		Role:   role,
		UserID: strings.TrimSpace(userID),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadToken reads a bearer token from a file, trimming surrounding whitespace.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s: %w", path, ErrMissingToken)
	}
	return token, nil
}

// Validate checks the credential is usable for a session. Admins join only
// shared rooms and may omit the user id.
func (c *Credential) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if !c.Role.Valid() {
		return fmt.Errorf("invalid role %q", c.Role)
	}
	if c.UserID == "" && c.Role != model.RoleAdmin {
		return ErrMissingIdentity
	}
	return nil
}

// Header returns the HTTP headers that authenticate a REST request or a
// WebSocket upgrade.
func (c *Credential) Header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.Token)
	return h
}

// Query returns the handshake query parameters sent on WebSocket upgrade.
func (c *Credential) Query() url.Values {
	q := url.Values{}
	q.Set("token", c.Token)
	q.Set("role", string(c.Role))
	if c.UserID != "" {
		q.Set("userId", c.UserID)
	}
	return q
}

// String redacts the token.
func (c *Credential) String() string {
	return fmt.Sprintf("%s/%s (token %s)", c.Role, c.UserID, redact(c.Token))
}

func redact(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
