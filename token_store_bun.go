package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var _ TokenStore = (*BunTokenStore)(nil)

// BunTokenStore keeps the credential in a single keyed sqlite row. Access is
// synchronous; the TokenStore contract has no context, so calls run against
// a background context with a short timeout.
type BunTokenStore struct {
	db      *bun.DB
	timeout time.Duration
	logger  Logger
}

// BunTokenStoreOption customizes a BunTokenStore.
type BunTokenStoreOption func(*BunTokenStore)

// WithBunStoreTimeout bounds each storage call.
func WithBunStoreTimeout(d time.Duration) BunTokenStoreOption {
	return func(s *BunTokenStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBunStoreLogger overrides the logger used for load failures.
func WithBunStoreLogger(logger Logger) BunTokenStoreOption {
	return func(s *BunTokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewBunTokenStore(db *bun.DB, opts ...BunTokenStoreOption) *BunTokenStore {
	s := &BunTokenStore{
		db:      db,
		timeout: 5 * time.Second,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *BunTokenStore) Save(token string) error {
	ctx, cancel := s.callContext()
	defer cancel()

	record := &Credential{
		Key:       credentialKey,
		Token:     token,
		UpdatedAt: time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (key) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunTokenStore) Load() (string, bool) {
	ctx, cancel := s.callContext()
	defer cancel()

	record := new(Credential)
	err := s.db.NewSelect().
		Model(record).
		Where("key = ?", credentialKey).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("credential row load failed", "error", err)
		}
		return "", false
	}

	return record.Token, true
}

func (s *BunTokenStore) Clear() error {
	ctx, cancel := s.callContext()
	defer cancel()

	_, err := s.db.NewDelete().
		Model((*Credential)(nil)).
		Where("key = ?", credentialKey).
		Exec(ctx)
	return err
}

func (s *BunTokenStore) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// InitLocalStorage creates the local tables the session core persists into.
// Safe to call on every startup.
func InitLocalStorage(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*Credential)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	if _, err := db.NewCreateTable().
		Model((*SessionEvent)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	return nil
}
