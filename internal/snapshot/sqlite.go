package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/playperu/monikers/internal/monikers"
)

// SQLite stores the snapshot as a JSONB document in the snapshots table
// created by the migrations package.
type SQLite struct {
	db        *sql.DB
	namespace string
}

func NewSQLite(db *sql.DB, namespace string) *SQLite {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &SQLite{db: db, namespace: namespace}
}

func (s *SQLite) Load(ctx context.Context) (map[string]*monikers.Room, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM snapshots WHERE namespace = ?`, s.namespace,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]*monikers.Room{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(data))
}

func (s *SQLite) Save(ctx context.Context, rooms map[string]*monikers.Room) error {
	data, err := encode(rooms)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (namespace, data, updated_at) VALUES (?, jsonb(?), ?)
		 ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.namespace, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLite) Check(ctx context.Context) error { return s.db.PingContext(ctx) }
