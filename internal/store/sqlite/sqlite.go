package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tempvox/tempvox/internal/platform"
	"github.com/tempvox/tempvox/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS communities (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps one JSON document per community in a single table.
// The document is read whole and rewritten whole on every mutation.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads the full document for a community.
func (s *SQLiteStore) Load(ctx context.Context, community platform.CommunityID) (*store.CommunityDoc, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM communities WHERE id = ?`, string(community),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load community %s: %w", community, err)
	}

	doc := store.NewCommunityDoc()
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, fmt.Errorf("decode community %s: %w", community, err)
	}
	if doc.Rooms == nil {
		doc.Rooms = make(map[platform.UserID]*store.RoomRecord)
	}
	return doc, nil
}

// Save rewrites the full document for a community.
func (s *SQLiteStore) Save(ctx context.Context, community platform.CommunityID, doc *store.CommunityDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode community %s: %w", community, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO communities (id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		string(community), string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save community %s: %w", community, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ store.Store = (*SQLiteStore)(nil)
