package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	session "github.com/volunteerbridge/go-session"
)

// App wires the session core into a server-rendered frontend: templates
// call the backend through the session service, never directly.
type App struct {
	opts     session.Options
	bunDB    *bun.DB
	store    session.TokenStore
	service  *session.Service
	sessions *session.Manager
	guard    *session.RouteGuard
	srv      router.Server[*fiber.App]
}

func main() {
	opts := session.Options{
		BaseURL:     envOr("BRIDGE_API_URL", "http://127.0.0.1:8000/api/"),
		DatabaseDSN: envOr("BRIDGE_DB_DSN", "file:bridge.db?cache=shared&mode=rwc"),
	}

	app := &App{opts: opts}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithSessionCore(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	Routes(app)

	go func() {
		if err := app.srv.Serve(envOr("BRIDGE_ADDR", ":8577")); err != nil {
			fmt.Fprintf(os.Stderr, "server stopped: %v\n", err)
		}
	}()

	WaitExitSignal()

	if err := app.srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.opts.GetDatabaseDSN())
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := session.InitLocalStorage(ctx, db); err != nil {
		return err
	}

	app.bunDB = db
	return nil
}

func WithSessionCore(ctx context.Context, app *App) error {
	app.store = session.NewBunTokenStore(app.bunDB)

	client := session.NewClient(app.opts.GetBaseURL(), app.store)
	sink := session.NewBunActivitySink(app.bunDB, nil)

	app.service = session.NewService(client, app.store,
		session.WithActivitySink(sink),
	)

	app.sessions = session.NewManager(app.service, app.store,
		session.WithManagerActivitySink(sink),
	)

	// Resolve any persisted credential before serving; a dead token is
	// cleared silently and we start anonymous.
	app.sessions.Initialize(ctx)

	app.guard = session.NewRouteGuard(app.sessions, app.opts)
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	engine := django.New("./cmd/bridgeweb/views", ".html")
	engine.AddFuncMap(session.TemplateHelpers())

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	app.srv = srv
	return nil
}

func Routes(app *App) {
	r := app.srv.Router()
	protected := app.guard.Protected()

	r.Get("/", func(ctx router.Context) error {
		user, _ := app.sessions.CurrentUser()
		return ctx.Render("home", session.MergeTemplateData(ctx, router.ViewContext{
			"title":                 "Volunteer Bridge",
			session.TemplateUserKey: user,
		}))
	})

	r.Get("/dashboard", DashboardShow(app), protected)

	session.RegisterAuthRoutes(r,
		session.WithControllerSessions(app.sessions),
		session.WithControllerService(app.service),
		session.WithControllerGuard(app.guard),
	)
}

func DashboardShow(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		user, ok := session.FromRouterContext(ctx, "")
		if !ok {
			return ctx.Redirect(app.opts.GetLoginRoute(), router.StatusSeeOther)
		}

		// Role branching happens here, in the wrapped view, not in the
		// guard: an account can be volunteer, organization, or both.
		return ctx.Render("dashboard", session.MergeTemplateData(ctx, router.ViewContext{
			"title":                 "Dashboard",
			session.TemplateUserKey: user,
		}))
	}
}

func WaitExitSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
