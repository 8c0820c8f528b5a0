// Package sqlite persists facts in a local SQLite database via the pure-Go
// modernc.org driver, so analyses survive across runs without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	component_id TEXT NOT NULL,
	check_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	confidence   REAL NOT NULL,
	evidence_ref TEXT NOT NULL,
	PRIMARY KEY (component_id, check_id)
);`

// FactStore stores facts in SQLite, one row per (component, check).
type FactStore struct {
	db *sql.DB
}

// NewFactStore opens (creating if necessary) the database at path and
// ensures the schema exists.
func NewFactStore(path string) (*FactStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening fact database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing fact schema: %w", err)
	}
	return &FactStore{db: db}, nil
}

// Upsert writes a fact, replacing any prior fact under the same key.
func (s *FactStore) Upsert(ctx context.Context, fact entities.Fact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (component_id, check_id, status, confidence, evidence_ref)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (component_id, check_id) DO UPDATE SET
			status = excluded.status,
			confidence = excluded.confidence,
			evidence_ref = excluded.evidence_ref`,
		fact.ComponentID, fact.CheckID, string(fact.Status), fact.Confidence, fact.EvidenceRef)
	if err != nil {
		return fmt.Errorf("upserting fact %s/%s: %w", fact.ComponentID, fact.CheckID, err)
	}
	return nil
}

// List returns a component's facts ordered by check ID.
func (s *FactStore) List(ctx context.Context, componentID string) ([]entities.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, check_id, status, confidence, evidence_ref
		FROM facts WHERE component_id = ? ORDER BY check_id`,
		componentID)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var out []entities.Fact
	for rows.Next() {
		var fact entities.Fact
		var status string
		if err := rows.Scan(&fact.ComponentID, &fact.CheckID, &status, &fact.Confidence, &fact.EvidenceRef); err != nil {
			return nil, fmt.Errorf("scanning fact row: %w", err)
		}
		fact.Status = entities.CheckStatus(status)
		out = append(out, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *FactStore) Close() error {
	return s.db.Close()
}
