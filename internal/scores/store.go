// Package scores keeps a local history of finished games in SQLite. It is
// a best-effort collaborator: the game never waits on it or fails with it.
package scores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
)

// Store persists game results.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS result (
    id TEXT PRIMARY KEY,
    score INTEGER NOT NULL,
    rounds INTEGER NOT NULL,
    category TEXT NOT NULL,
    input TEXT NOT NULL,
    caught TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_score ON result(score DESC);
`

// Open opens (or creates) the results database at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Entry is one finished game.
type Entry struct {
	ID        string    `json:"id"`
	Score     int       `json:"score"`
	Rounds    int       `json:"rounds"`
	Category  string    `json:"category"`
	Input     string    `json:"input"`
	Caught    []string  `json:"caught"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record implements game.Recorder.
func (s *Store) Record(ctx context.Context, summary game.Summary) error {
	caught := make([]string, 0, len(summary.Caught))
	for _, entity := range summary.Caught {
		caught = append(caught, entity.Name)
	}
	caughtJSON, err := json.Marshal(caught)
	if err != nil {
		return fmt.Errorf("marshal caught list: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO result (id, score, rounds, category, input, caught, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), summary.Score, summary.Config.Rounds,
		string(summary.Config.Category), string(summary.Config.Input),
		string(caughtJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Top returns the best results, highest score first, newest breaking ties.
func (s *Store) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, score, rounds, category, input, caught, created_at
		FROM result
		ORDER BY score DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var caughtJSON string
		if err := rows.Scan(&entry.ID, &entry.Score, &entry.Rounds,
			&entry.Category, &entry.Input, &caughtJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(caughtJSON), &entry.Caught); err != nil {
			return nil, fmt.Errorf("decode caught list: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
