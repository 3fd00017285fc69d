// Package auth defines the contract with the external user-account provider.
// The core only needs a user identity to key remote history documents; the
// provider's implementation (hosted identity service, token exchange) stays
// outside this module.
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrNotSignedIn is returned by operations that require an authenticated user.
var ErrNotSignedIn = errors.New("not signed in")

// User is the authenticated identity exposed by the provider.
type User struct {
	ID    string
	Email string
}

// Provider is the external sign-in/sign-up/sign-out collaborator.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (User, error)
	SignUp(ctx context.Context, email, password string) (User, error)
	SignOut(ctx context.Context) error

	// CurrentUser returns the signed-in identity, if any.
	CurrentUser() (User, bool)
}

// StaticProvider is a Provider backed by a fixed identity, for headless CLI
// use where the user id comes from configuration rather than an interactive
// sign-in flow.
type StaticProvider struct {
	mu   sync.Mutex
	user User
	set  bool
}

// NewStaticProvider returns a provider pre-signed-in as the given user id.
// An empty id yields a signed-out provider.
func NewStaticProvider(userID string) *StaticProvider {
	p := &StaticProvider{}
	if userID != "" {
		p.user = User{ID: userID}
		p.set = true
	}
	return p
}

func (p *StaticProvider) SignIn(_ context.Context, email, _ string) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return User{}, ErrNotSignedIn
	}
	p.user.Email = email
	return p.user, nil
}

func (p *StaticProvider) SignUp(ctx context.Context, email, password string) (User, error) {
	return p.SignIn(ctx, email, password)
}

func (p *StaticProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set = false
	p.user = User{}
	return nil
}

func (p *StaticProvider) CurrentUser() (User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user, p.set
}
