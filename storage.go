package mapty

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("key not found")

// Storage is a durable key-value store
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// OpenStorage opens the storage named by dsn:
//
//	memory:               in process only
//	file:<dir> or <dir>   one file per key in dir
//	postgres://...        a table in postgres
func OpenStorage(ctx context.Context, dsn string) (Storage, func(), error) {
	noop := func() {}
	switch {
	case dsn == "" || dsn == "memory:":
		log.Info().Str("storage", "memory").Msg("storage")
		return NewMemoryStorage(), noop, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("storage", "postgres").Str("host", u.Host).Msg("storage")
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store, err := NewPostgresStorage(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		dir := strings.TrimPrefix(dsn, "file:")
		log.Info().Str("storage", "file").Str("dir", dir).Msg("storage")
		store, err := NewFileStorage(dir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}
}

// MemoryStorage keeps values in process
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStorage writes each key to its own file under a directory
type FileStorage struct {
	mu  sync.Mutex
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set replaces the value atomically
func (s *FileStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, err := os.CreateTemp(s.dir, ".mapty-*")
	if err != nil {
		return err
	}
	tmp := fp.Name()
	if _, err = fp.Write(value); err != nil {
		fp.Close()
		os.Remove(tmp)
		return err
	}
	if err = fp.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
