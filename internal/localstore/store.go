// Package localstore - локальный SQLite кэш storyctl: черновики и опубликованные
// истории, с push-подписками на изменения.
package localstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"story-server/internal/models"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrStorage оборачивает любые ошибки SQLite.
	ErrStorage = errors.New("local storage failure")
	// ErrNotFound - записи нет в кэше.
	ErrNotFound = errors.New("not found in local store")
	// ErrClosed - хранилище закрыто.
	ErrClosed = errors.New("local store is closed")
)

const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Store - локальное хранилище. Записи сериализуются внутри хранилища.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	// writeMu сериализует транзакции записи и рассылку снимков после них.
	writeMu sync.Mutex

	drafts  *feed[[]DraftSummary]
	stories *feed[[]models.StorySummary]

	closeOnce sync.Once
	done      chan struct{}
}

// Open открывает (или создает) базу по path и применяет миграции.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: database path is required", ErrStorage)
	}
	dsn := "file:" + filepath.Clean(path) + "?" + dsnPragmas
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open sqlite db", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storageErr("ping sqlite db", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		logger:  logger.With().Str("component", "LocalStore").Logger(),
		drafts:  newFeed[[]DraftSummary](),
		stories: newFeed[[]models.StorySummary](),
		done:    make(chan struct{}),
	}
	s.logger.Debug().Str("path", path).Msg("Local store opened")
	return s, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return storageErr("open embedded migrations", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return storageErr("create migrate driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return storageErr("create migrator", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return storageErr("apply migrations", err)
	}
	return nil
}

// Close закрывает все подписки и базу. Повторный вызов безопасен.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		close(s.done)
		s.drafts.closeAll()
		s.stories.closeAll()
		if cErr := s.db.Close(); cErr != nil {
			err = storageErr("close sqlite db", cErr)
		}
	})
	return err
}

func (s *Store) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// write выполняет fn в транзакции и после коммита рассылает свежие снимки.
func (s *Store) write(ctx context.Context, op string, fn func(tx *sql.Tx) error, after ...func(context.Context)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed() {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
			return err
		}
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}
	for _, notify := range after {
		notify(context.WithoutCancel(ctx))
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ensureTags добавляет теги в общий справочник.
func ensureTags(ctx context.Context, tx *sql.Tx, tags []string) error {
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}
