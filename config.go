package session

// Options is the concrete Config used by most hosts. Zero values fall back
// to the defaults below, so a literal only needs the fields it changes.
type Options struct {
	// BaseURL is the backend API root; paths passed to the client are
	// resolved against it.
	BaseURL string
	// LoginRoute is where the guard sends anonymous visitors.
	LoginRoute string
	// ContextKey is the locals key the guard stores the current user under.
	ContextKey string
	// RejectedRouteKey names the cookie carrying the denied path.
	RejectedRouteKey string
	// RejectedRouteDefault is where the login flow lands when no denied
	// path was recorded.
	RejectedRouteDefault string
	// PendingView is rendered while the session is still resolving.
	PendingView string
	// TokenPath is where FileTokenStore keeps the credential.
	TokenPath string
	// DatabaseDSN is the sqlite DSN for the local credential slot and
	// session-event log.
	DatabaseDSN string
}

var _ Config = Options{}

func (o Options) GetBaseURL() string {
	if o.BaseURL == "" {
		return "http://127.0.0.1:8000/api/"
	}
	return o.BaseURL
}

func (o Options) GetLoginRoute() string {
	if o.LoginRoute == "" {
		return "/login"
	}
	return o.LoginRoute
}

func (o Options) GetContextKey() string {
	if o.ContextKey == "" {
		return "current_user"
	}
	return o.ContextKey
}

func (o Options) GetRejectedRouteKey() string {
	if o.RejectedRouteKey == "" {
		return "bridge_rejected_route"
	}
	return o.RejectedRouteKey
}

func (o Options) GetRejectedRouteDefault() string {
	if o.RejectedRouteDefault == "" {
		return "/dashboard"
	}
	return o.RejectedRouteDefault
}

func (o Options) GetPendingView() string {
	if o.PendingView == "" {
		return "pending"
	}
	return o.PendingView
}

func (o Options) GetTokenPath() string {
	if o.TokenPath == "" {
		return ".bridge_token"
	}
	return o.TokenPath
}

func (o Options) GetDatabaseDSN() string {
	if o.DatabaseDSN == "" {
		return "file:bridge.db?cache=shared&mode=rwc"
	}
	return o.DatabaseDSN
}
