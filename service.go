package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var _ SessionService = (*Service)(nil)

// Service performs login, registration, resolution, and logout against the
// backend. It owns the token lifecycle: a successful login writes the access
// token to the TokenStore and retains the refresh token in memory only.
type Service struct {
	client RESTClient
	store  TokenStore
	logger Logger
	sink   ActivitySink

	mu           sync.Mutex
	refreshToken string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceLogger overrides the default logger.
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for session events.
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.sink = normalizeActivitySink(sink)
	}
}

// NewService returns a Service bound to the given client and store.
func NewService(client RESTClient, store TokenStore, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		store:  store,
		logger: defLogger{},
		sink:   noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Login posts credentials to the token endpoint and stores the access token
// on success. A 200 without an access field is itself an AuthFailure and
// stores nothing.
func (s *Service) Login(ctx context.Context, username, password string) error {
	var pair TokenPair
	payload := map[string]string{
		"username": username,
		"password": password,
	}

	if err := s.client.Post(ctx, "token/", payload, &pair); err != nil {
		s.logger.Error("login token request failed", "username", username, "error", err)
		s.emit(ctx, ActivityEventLoginFailure, username, map[string]any{
			"error": err.Error(),
		})
		if status := StatusFromError(err); status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return NewAuthFailure(err, "invalid credentials")
		}
		return err
	}

	if pair.Access == "" {
		s.logger.Error("login response missing access token", "username", username)
		s.emit(ctx, ActivityEventLoginFailure, username, map[string]any{
			"error": "missing access token",
		})
		return NewAuthFailure(nil, "token response missing access field")
	}

	if err := s.store.Save(pair.Access); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist credential")
	}

	s.mu.Lock()
	s.refreshToken = pair.Refresh
	s.mu.Unlock()

	s.emit(ctx, ActivityEventLoginSuccess, username, nil)
	return nil
}

// Register posts a new account payload. It does not log the user in; the
// caller decides whether to chain a Login. Backend validation errors pass
// through untouched in the error metadata.
func (s *Service) Register(ctx context.Context, payload RegisterUserMessage) error {
	if err := s.client.Post(ctx, "register/", payload, nil); err != nil {
		s.logger.Error("registration failed", "username", payload.Username, "error", err)
		if StatusFromError(err) == http.StatusBadRequest {
			return NewValidationFailure(err, map[string]any{
				"backend_response": ResponseBodyFromError(err),
			})
		}
		return err
	}

	s.emit(ctx, ActivityEventRegistration, payload.Username, nil)
	return nil
}

// CurrentUser resolves the stored credential into a confirmed User via the
// profile endpoint. On failure it returns a ResolutionFailure and leaves the
// TokenStore untouched; clearing the credential is the Manager's call.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	user := new(User)
	if err := s.client.Get(ctx, "profile/", user); err != nil {
		s.logger.Debug("current user resolution failed", "error", err)
		s.emit(ctx, ActivityEventResolutionFailure, "", map[string]any{
			"error": err.Error(),
		})
		if IsNetworkFailure(err) {
			return nil, err
		}
		return nil, NewResolutionFailure(err)
	}

	return user, nil
}

// UpdateProfile pushes edited profile fields and returns the fresh User so
// the Manager can run its Update transition.
func (s *Service) UpdateProfile(ctx context.Context, payload ProfileMessage) (*User, error) {
	user := new(User)
	if err := s.client.Put(ctx, "profile/", payload, user); err != nil {
		s.logger.Error("profile update failed", "error", err)
		if StatusFromError(err) == http.StatusUnauthorized {
			return nil, NewUnauthorizedRequest(err)
		}
		return nil, err
	}

	s.emit(ctx, ActivityEventProfileRefresh, user.Username, nil)
	return user, nil
}

// Refresh exchanges the retained refresh token for a new access token and
// replaces the stored credential. Explicit call only; nothing in the core
// refreshes automatically.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refreshToken
	s.mu.Unlock()

	if refresh == "" {
		return NewAuthFailure(nil, "no refresh token retained")
	}

	var pair TokenPair
	payload := map[string]string{"refresh": refresh}
	if err := s.client.Post(ctx, "token/refresh/", payload, &pair); err != nil {
		if status := StatusFromError(err); status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return NewAuthFailure(err, "refresh token rejected")
		}
		return err
	}

	if pair.Access == "" {
		return NewAuthFailure(nil, "refresh response missing access field")
	}

	if err := s.store.Save(pair.Access); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist refreshed credential")
	}

	s.emit(ctx, ActivityEventTokenRefresh, "", nil)
	return nil
}

// Logout clears the credential slot and the retained refresh token. Purely
// local, no network effect, idempotent.
func (s *Service) Logout() {
	if err := s.store.Clear(); err != nil {
		s.logger.Error("credential clear failed", "error", err)
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()

	s.emit(context.Background(), ActivityEventLogout, "", nil)
}

func (s *Service) emit(ctx context.Context, eventType ActivityEventType, username string, metadata map[string]any) {
	sink := normalizeActivitySink(s.sink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "user"},
		Username:   username,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Debug("activity sink record error: %v", err)
	}
}
