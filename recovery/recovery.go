// Package recovery keeps autosave snapshots of project documents in a SQLite
// database, so that a crashed or killed session can be restored.
package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/library"
	_ "modernc.org/sqlite"
)

type (
	Store struct {
		db   *sql.DB
		keep int
		log  *logrus.Entry
	}

	// Snapshot is a saved project document.
	Snapshot struct {
		ID       int64
		Name     string
		Saved    time.Time
		Document []byte
	}
)

// DefaultKeep is the number of snapshots kept per name if not specified.
const DefaultKeep = 20

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	saved INTEGER NOT NULL,
	document BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, saved);
`

// Open opens or creates the database at path. keep bounds the number of
// snapshots retained per project name.
func Open(path string, keep int, log *logrus.Entry) (*Store, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create recovery directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recovery database: %w", err)
	}
	// a single connection serializes the writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create recovery tables: %w", err)
	}
	return &Store{db: db, keep: keep, log: log.WithField("component", "recovery")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores document under name and prunes the oldest snapshots beyond
// the retention limit.
func (s *Store) Save(ctx context.Context, name string, document []byte, saved time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots (name, saved, document) VALUES (?, ?, ?)`, name, saved.UnixNano(), document); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ? AND id NOT IN (
		SELECT id FROM snapshots WHERE name = ? ORDER BY saved DESC, id DESC LIMIT ?)`, name, name, s.keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return tx.Commit()
}

// SaveProject marshals p and stores it under name.
func (s *Store) SaveProject(ctx context.Context, name string, p *library.Project) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("cannot encode project: %w", err)
	}
	return s.Save(ctx, name, data, time.Now())
}

// Latest returns the most recent snapshot saved under name.
func (s *Store) Latest(ctx context.Context, name string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, saved, document FROM snapshots
		WHERE name = ? ORDER BY saved DESC, id DESC LIMIT 1`, name)
	var snap Snapshot
	var saved int64
	err := row.Scan(&snap.ID, &snap.Name, &saved, &snap.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, lumo.Errorf(lumo.ResourceNotFoundError, fmt.Sprintf("no snapshot of %v", name))
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap.Saved = time.Unix(0, saved)
	return snap, nil
}

// List returns the snapshots of name, newest first, without their
// documents.
func (s *Store) List(ctx context.Context, name string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, saved FROM snapshots
		WHERE name = ? ORDER BY saved DESC, id DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()
	var ret []Snapshot
	for rows.Next() {
		var snap Snapshot
		var saved int64
		if err := rows.Scan(&snap.ID, &snap.Name, &saved); err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}
		snap.Saved = time.Unix(0, saved)
		ret = append(ret, snap)
	}
	return ret, rows.Err()
}

// Autosave saves a snapshot every interval until ctx is done. snapshot is
// called to produce the document; it must be safe to call from the
// autosave goroutine, e.g. by marshalling on the scheduler goroutine.
func (s *Store) Autosave(ctx context.Context, name string, interval time.Duration, snapshot func() ([]byte, error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			data, err := snapshot()
			if err != nil {
				s.log.WithError(err).Warn("autosave skipped")
				continue
			}
			if err := s.Save(ctx, name, data, now); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("autosave failed")
				continue
			}
			s.log.WithField("name", name).Debug("autosaved")
		}
	}
}
