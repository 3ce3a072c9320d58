package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yndnr/pairmesh-go/pkg/crypto/adaptive"
)

// TokenStore keeps the session token between connections.
type TokenStore interface {
	Load() string
	Save(token string)
	Clear()
}

// MemoryStore is a TokenStore that lives as long as the process.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// Load returns the stored token, or "".
func (s *MemoryStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Save replaces the stored token.
func (s *MemoryStore) Save(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear forgets the token.
func (s *MemoryStore) Clear() {
	s.Save("")
}

// Files written by FileStore.
const (
	tokenFile = "session"
	keyFile   = "session.key"
)

var tokenAAD = []byte("pairmesh-session-token")

// FileStore keeps the token on disk so a restarted client can resume
// within the grace window. The token is sealed with a key held in a
// second owner-only file. Disk errors fall back to the in-memory copy.
type FileStore struct {
	dir    string
	key    []byte
	cipher adaptive.Cipher

	mu     sync.Mutex
	token  string
	loaded bool
}

// NewFileStore opens the store in dir, creating it and its key if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("token store: %w", err)
	}

	keyPath := filepath.Join(dir, keyFile)
	key, err := os.ReadFile(keyPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if key, err = adaptive.NewKey(); err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0600); err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("token store: %w", err)
	case len(key) != adaptive.KeySize:
		return nil, fmt.Errorf("token store: %s: %w", keyPath, adaptive.ErrKeySize)
	}

	c, err := adaptive.New(key)
	if err != nil {
		return nil, fmt.Errorf("token store: %w", err)
	}
	return &FileStore{dir: dir, key: key, cipher: c}, nil
}

// Load returns the stored token. An unreadable or tampered file reads
// as no token.
func (s *FileStore) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.token
	}
	s.loaded = true

	sealed, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		return ""
	}
	plain, err := adaptive.Open(s.key, sealed, tokenAAD)
	if err != nil {
		return ""
	}
	s.token = string(plain)
	return s.token
}

// Save replaces the stored token.
func (s *FileStore) Save(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.loaded = true

	if token == "" {
		os.Remove(filepath.Join(s.dir, tokenFile))
		return
	}
	sealed, err := s.cipher.Seal([]byte(token), tokenAAD)
	if err != nil {
		return
	}
	tmp := filepath.Join(s.dir, tokenFile+".tmp")
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return
	}
	os.Rename(tmp, filepath.Join(s.dir, tokenFile))
}

// Clear forgets the token and removes the file.
func (s *FileStore) Clear() {
	s.Save("")
}
