package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/go-immers-client/internal/config"
	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

// storeKey is the single fixed key the whole session record lives under.
const storeKey = "_immers_client_store"

const createStoreTable = `CREATE TABLE IF NOT EXISTS session_store (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const (
	selectRecord = `SELECT value FROM session_store WHERE key = $1;`
	upsertRecord = `INSERT INTO session_store (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;`
	deleteRecord = `DELETE FROM session_store WHERE key = $1;`
)

// record is the durable shape of the session state, one JSON blob under the
// fixed key.
type record struct {
	Handle     string             `json:"handle,omitempty"`
	Credential *models.Credential `json:"credential,omitempty"`
}

type sqliteStore struct {
	db     *sql.DB
	logger *logger.Logger

	mu  sync.RWMutex
	rec record
}

// NewDurableStore opens (creating if necessary) the SQLite session store at
// cfg.DSN and hydrates the in-memory mirror from it. Corrupt stored data is
// treated as empty, never surfaced as an error.
func NewDurableStore(ctx context.Context, cfg config.Storage, log *logger.Logger) (SessionStore, error) {
	if err := createLocalDBFileIfNotExists(cfg.DSN); err != nil {
		log.Err(err).Str("func", "NewDurableStore").Msg("error creating database file")
		return nil, fmt.Errorf("error creating database file: %w", err)
	}

	conn, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("error opening connection to DB: %w", err)
	}
	if err = conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting database: %w", err)
	}

	if _, err = conn.ExecContext(ctx, createStoreTable); err != nil {
		return nil, fmt.Errorf("error preparing session store schema: %w", err)
	}

	s := &sqliteStore{db: conn, logger: log}
	s.hydrate(ctx)
	return s, nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		return f.Close()
	}
	return nil
}

func (s *sqliteStore) hydrate(ctx context.Context) {
	var value string
	err := s.db.QueryRowContext(ctx, selectRecord, storeKey).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn().Err(err).Msg("unable to read stored session, starting empty")
		}
		return
	}

	var rec record
	if err = json.Unmarshal([]byte(value), &rec); err != nil {
		s.logger.Warn().Err(err).Msg("stored session is corrupt, starting empty")
		return
	}
	s.rec = rec
}

// persist mirrors the in-memory record to the database. Callers must hold
// the write lock.
func (s *sqliteStore) persist() error {
	value, err := json.Marshal(s.rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if _, err = s.db.Exec(upsertRecord, storeKey, string(value)); err != nil {
		return fmt.Errorf("persist session record: %w", err)
	}
	return nil
}

func (s *sqliteStore) Handle() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Handle, s.rec.Handle != ""
}

func (s *sqliteStore) SetHandle(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Handle = handle
	return s.persist()
}

func (s *sqliteStore) Credential() (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec.Credential == nil {
		return models.Credential{}, false
	}
	return *s.rec.Credential, true
}

func (s *sqliteStore) SetCredential(cred models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Credential = &cred
	return s.persist()
}

func (s *sqliteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = record{}
	if _, err := s.db.Exec(deleteRecord, storeKey); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}
