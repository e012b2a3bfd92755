package session

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// TokenStore persists the single bearer credential. Implementations do not
// validate token shape; an empty string saved is an empty string loaded.
type TokenStore interface {
	Save(token string) error
	Load() (string, bool)
	Clear() error
}

// RESTClient is the verb surface of the backend client. Every method sends
// JSON and decodes the response into out when out is non-nil.
type RESTClient interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// SessionService owns the credential lifecycle against the backend.
type SessionService interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, payload RegisterUserMessage) error
	CurrentUser(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, payload ProfileMessage) (*User, error)
	Refresh(ctx context.Context) error
	Logout()
}

// SessionGuard gates protected navigation and tracks redirect intent.
type SessionGuard interface {
	Protected() router.MiddlewareFunc
	SetRedirect(c router.Context)
	GetRedirect(c router.Context, def ...string) string
	GetRedirectOrDefault(c router.Context) string
}

// Config holds session options
type Config interface {
	GetBaseURL() string
	GetLoginRoute() string
	GetContextKey() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetPendingView() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
