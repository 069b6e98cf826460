// Package auth owns the session lifecycle against the backend: login and
// registration create a session, profile refresh replaces the identity, and
// logout destroys it. The session store is the single source of truth; this
// package only drives it.
package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/promptshield/console-client/internal/gateway"
	"github.com/promptshield/console-client/internal/session"
)

// loginResponse is the backend's shape for login and registration.
type loginResponse struct {
	Token string           `json:"token"`
	User  session.Identity `json:"user"`
}

// Sender is the slice of the gateway the coordinator needs.
type Sender interface {
	SendJSON(ctx context.Context, d gateway.Descriptor, out any) error
}

// Coordinator drives login, registration, refresh, and logout.
type Coordinator struct {
	gw      Sender
	session *session.Store
	log     zerolog.Logger
}

// New creates a Coordinator.
func New(gw Sender, sess *session.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{gw: gw, session: sess, log: log}
}

// Login authenticates and saves the resulting session.
func (c *Coordinator) Login(ctx context.Context, email, password string) (*session.Identity, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates an account and saves the resulting session.
func (c *Coordinator) Register(ctx context.Context, email, password, displayName string) (*session.Identity, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	})
}

func (c *Coordinator) authenticate(ctx context.Context, path string, body map[string]string) (*session.Identity, error) {
	var resp loginResponse
	if err := c.gw.SendJSON(ctx, gateway.Descriptor{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, &resp); err != nil {
		return nil, err
	}

	if err := c.session.Save(resp.Token, resp.User); err != nil {
		return nil, err
	}
	c.log.Info().Str("user_id", resp.User.UserID).Msg("auth: session established")
	id := resp.User
	return &id, nil
}

// Refresh re-fetches the profile (quota counters, role changes) and replaces
// the identity, keeping the current credential.
func (c *Coordinator) Refresh(ctx context.Context) (*session.Identity, error) {
	var id session.Identity
	if err := c.gw.SendJSON(ctx, gateway.Descriptor{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
	}, &id); err != nil {
		return nil, err
	}

	if err := c.session.Save(c.session.Credential(), id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Logout destroys the session. Idempotent.
func (c *Coordinator) Logout() {
	if c.session.Clear() {
		c.log.Info().Msg("auth: session cleared")
	}
}
