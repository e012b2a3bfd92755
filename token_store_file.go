package session

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/nacl/secretbox"
)

var _ TokenStore = (*FileTokenStore)(nil)

// FileTokenStore persists the credential at a fixed path so it survives
// restarts, the way a browser profile keeps its storage slot. Writes go
// through a temp file and rename.
type FileTokenStore struct {
	mu     sync.Mutex
	path   string
	key    *[32]byte
	logger Logger
}

// FileTokenStoreOption customizes a FileTokenStore.
type FileTokenStoreOption func(*FileTokenStore)

// WithSealingKey seals the credential at rest with the given 32-byte key.
// Loading with a different key behaves as if no credential were stored.
func WithSealingKey(key [32]byte) FileTokenStoreOption {
	return func(s *FileTokenStore) {
		k := key
		s.key = &k
	}
}

// WithFileStoreLogger overrides the logger used for load failures.
func WithFileStoreLogger(logger Logger) FileTokenStoreOption {
	return func(s *FileTokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewFileTokenStore(path string, opts ...FileTokenStoreOption) *FileTokenStore {
	s := &FileTokenStore{
		path:   path,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *FileTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.seal([]byte(token))
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".bridge_token_*")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to stage credential file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to write credential file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to restrict credential file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to close credential file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to replace credential file")
	}

	return nil
}

func (s *FileTokenStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("credential file read failed", "path", s.path, "error", err)
		}
		return "", false
	}

	token, err := s.open(raw)
	if err != nil {
		// Unreadable is treated as absent; the next login rewrites the slot.
		s.logger.Error("credential file unreadable, treating as absent", "error", err)
		return "", false
	}

	return string(token), true
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to remove credential file")
	}
	return nil
}

func (s *FileTokenStore) seal(plain []byte) ([]byte, error) {
	if s.key == nil {
		return plain, nil
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to generate nonce")
	}

	sealed := secretbox.Seal(nonce[:], plain, &nonce, s.key)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

func (s *FileTokenStore) open(raw []byte) ([]byte, error) {
	if s.key == nil {
		return raw, nil
	}

	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(sealed, raw)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "credential encoding corrupt")
	}
	sealed = sealed[:n]

	if len(sealed) < 24 {
		return nil, goerrors.New("sealed credential truncated", goerrors.CategoryInternal)
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, s.key)
	if !ok {
		return nil, goerrors.New("sealed credential failed to open", goerrors.CategoryInternal)
	}
	return plain, nil
}
