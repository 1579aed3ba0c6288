// Package tokenstore хранит пару токенов текущей сессии storyctl.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed возвращается при работе с закрытым хранилищем.
var ErrClosed = errors.New("token store is closed")

// Tokens - сохраненная сессия.
type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           uuid.UUID `json:"user_id,omitempty"`
	Username         string    `json:"username,omitempty"`
}

// Store - хранилище токенов. Реализации безопасны для конкурентного использования.
type Store interface {
	Get() (Tokens, bool)
	Set(t Tokens) error
	Clear() error
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// FileStore держит токены в JSON файле с правами 0600.
type FileStore struct {
	mu     sync.Mutex
	path   string
	tokens Tokens
	has    bool
	closed bool
}

// Open загружает токены из path. Отсутствующий файл означает пустую сессию.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", path, err)
	}
	s.has = s.tokens.AccessToken != ""
	return s, nil
}

func (s *FileStore) Get() (Tokens, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.has {
		return Tokens{}, false
	}
	return s.tokens, true
}

// Set атомарно перезаписывает файл: запись во временный файл и rename.
func (s *FileStore) Set(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	s.tokens, s.has = t, true
	return nil
}

// Clear удаляет файл сессии.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	s.tokens, s.has = Tokens{}, false
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tokens, s.has = Tokens{}, false
	return nil
}

// MemoryStore - хранилище в памяти для тестов и одноразовых сессий.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens Tokens
	has    bool
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (Tokens, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || !s.has {
		return Tokens{}, false
	}
	return s.tokens, true
}

func (s *MemoryStore) Set(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tokens, s.has = t, true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tokens, s.has = Tokens{}, false
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
