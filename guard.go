package session

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

var _ SessionGuard = (*RouteGuard)(nil)

// RouteGuard wraps protected views. It consults the Manager only: role
// checks (organization-only pages and the like) belong to the wrapped view,
// never here.
type RouteGuard struct {
	sessions *Manager
	cfg      Config
	Logger   Logger
}

func NewRouteGuard(sessions *Manager, cfg Config) *RouteGuard {
	return &RouteGuard{
		sessions: sessions,
		cfg:      cfg,
		Logger:   defLogger{},
	}
}

// Protected gates a route on session state. While the Manager is still
// initializing it renders the pending view and performs no redirect, so a
// slow startup resolution never flashes the login page. Anonymous visitors
// are redirected to the login route with the denied path recorded;
// authenticated ones pass through with the user placed in the request
// context and locals.
func (g *RouteGuard) Protected() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if g.sessions.Loading() {
				return ctx.Render(g.cfg.GetPendingView(), router.ViewContext{
					"title": "Loading",
				})
			}

			user, ok := g.sessions.CurrentUser()
			if !ok {
				g.Logger.Info("protected route denied", "path", ctx.OriginalURL())
				g.SetRedirect(ctx)

				statusCode := http.StatusSeeOther
				if ctx.Method() == string(router.GET) {
					statusCode = http.StatusFound
				}
				return ctx.Redirect(g.cfg.GetLoginRoute(), statusCode)
			}

			ctx.Locals(g.cfg.GetContextKey(), user)
			ctx.SetContext(WithContext(ctx.Context(), user))
			return next(ctx)
		}
	}
}

// SetRedirect records the currently requested path as navigation intent so
// the login flow can return here after authentication.
func (g *RouteGuard) SetRedirect(ctx router.Context) {
	rejectedRoute := g.cfg.GetRejectedRouteKey()

	g.Logger.Info("setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect consumes the recorded navigation intent, falling back to def
// when none was set. The intent survives a single read only.
func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

// GetRedirectOrDefault consumes the intent, then tries the referer, then
// the configured default.
func (g *RouteGuard) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := g.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.GetRejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
