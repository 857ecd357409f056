// Package memory handles persistent storage and in-process recall.
//
// A single SQLite database holds personas, learned weights and the
// interaction history; short-term recall (the interaction log and the
// conversation window) lives in memory with bounded capacity.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	// SQLite driver (required for database/sql registration).
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/scout-ai/scout/internal/errors"
	"github.com/scout-ai/scout/internal/persona"
)

// Store is the SQLite persistence layer. It implements persona.Store
// and the interaction history.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at the given path, creating it and
// its tables if they don't exist.
func Open(dbPath string) (*Store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailed, "failed to open database", apperrors.CategorySystem)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailed, "failed to initialize schema", apperrors.CategorySystem)
	}
	return s, nil
}

// openDB opens a single SQLite database with optimal settings.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Set performance pragmas
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ============================================================
// SCHEMA
// ============================================================

func (s *Store) initSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		description TEXT
	);

	-- ============================================================
	-- PERSONAS
	-- ============================================================

	CREATE TABLE IF NOT EXISTS personas (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		positive_json   TEXT NOT NULL DEFAULT '[]',
		negative_json   TEXT NOT NULL DEFAULT '[]',
		red_flags_json  TEXT NOT NULL DEFAULT '[]',
		weights_json    TEXT NOT NULL DEFAULT '{}',
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_personas_name ON personas(name);

	-- ============================================================
	-- LEARNED WEIGHTS
	-- ============================================================

	CREATE TABLE IF NOT EXISTS learned_weights (
		persona_id      TEXT NOT NULL,
		tag             TEXT NOT NULL,
		weight          REAL NOT NULL DEFAULT 0,
		like_count      INTEGER NOT NULL DEFAULT 0,
		dislike_count   INTEGER NOT NULL DEFAULT 0,
		last_updated    INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (persona_id, tag),
		FOREIGN KEY (persona_id) REFERENCES personas(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_weights_persona ON learned_weights(persona_id);

	-- ============================================================
	-- INTERACTION HISTORY
	-- ============================================================

	CREATE TABLE IF NOT EXISTS interactions (
		id              TEXT PRIMARY KEY,
		entity_id       TEXT NOT NULL,
		entity_type     TEXT NOT NULL,
		action          TEXT NOT NULL,
		snapshot_json   TEXT,
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_interactions_entity ON interactions(entity_id, created_at DESC);

	-- ============================================================
	-- TRIGGERS
	-- ============================================================

	CREATE TRIGGER IF NOT EXISTS personas_updated
		AFTER UPDATE ON personas
		BEGIN
			UPDATE personas SET updated_at = strftime('%s', 'now') WHERE id = NEW.id;
		END;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return ensureSchemaVersion(s.db, 1, "Initial schema")
}

func ensureSchemaVersion(db *sql.DB, version int, description string) error {
	var current sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	if !current.Valid || int(current.Int64) < version {
		_, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version,
			description,
		)
		return err
	}

	return nil
}

// ============================================================
// PERSONAS (persona.Store)
// ============================================================

// LoadRecipes returns every stored persona.
func (s *Store) LoadRecipes(ctx context.Context) ([]*persona.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, positive_json, negative_json, red_flags_json, weights_json
		FROM personas ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*persona.Recipe
	for rows.Next() {
		var r persona.Recipe
		var positive, negative, redFlags, weights string
		if err := rows.Scan(&r.ID, &r.Name, &positive, &negative, &redFlags, &weights); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(positive), &r.Positive); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(negative), &r.Negative); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(redFlags), &r.RedFlags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &r.Weights); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpsertRecipe inserts or replaces a persona by id.
func (s *Store) UpsertRecipe(ctx context.Context, r *persona.Recipe) error {
	positive, err := json.Marshal(r.Positive)
	if err != nil {
		return err
	}
	negative, err := json.Marshal(r.Negative)
	if err != nil {
		return err
	}
	redFlags, err := json.Marshal(r.RedFlags)
	if err != nil {
		return err
	}
	weights, err := json.Marshal(r.Weights)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personas (id, name, positive_json, negative_json, red_flags_json, weights_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			positive_json = excluded.positive_json,
			negative_json = excluded.negative_json,
			red_flags_json = excluded.red_flags_json,
			weights_json = excluded.weights_json`,
		r.ID, r.Name, string(positive), string(negative), string(redFlags), string(weights))
	return err
}

// LoadLearnedWeights returns every learned weight for one persona.
func (s *Store) LoadLearnedWeights(ctx context.Context, personaID string) ([]*persona.LearnedWeight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT persona_id, tag, weight, like_count, dislike_count, last_updated
		FROM learned_weights WHERE persona_id = ?`, personaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*persona.LearnedWeight
	for rows.Next() {
		var w persona.LearnedWeight
		var updated int64
		if err := rows.Scan(&w.PersonaID, &w.Tag, &w.Weight, &w.LikeCount, &w.DislikeCount, &updated); err != nil {
			return nil, err
		}
		w.LastUpdated = time.Unix(updated, 0).UTC()
		out = append(out, &w)
	}
	return out, rows.Err()
}

// UpsertLearnedWeight inserts or updates one (persona, tag) weight row.
func (s *Store) UpsertLearnedWeight(ctx context.Context, w *persona.LearnedWeight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learned_weights (persona_id, tag, weight, like_count, dislike_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(persona_id, tag) DO UPDATE SET
			weight = excluded.weight,
			like_count = excluded.like_count,
			dislike_count = excluded.dislike_count,
			last_updated = excluded.last_updated`,
		w.PersonaID, w.Tag, w.Weight, w.LikeCount, w.DislikeCount, w.LastUpdated.Unix())
	return err
}

// ============================================================
// INTERACTIONS
// ============================================================

// AppendInteraction persists one interaction record.
func (s *Store) AppendInteraction(ctx context.Context, rec *Record) error {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, entity_id, entity_type, action, snapshot_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EntityID, rec.EntityType, rec.Action, string(snapshot), rec.At.Unix())
	return err
}

// RecentInteractions returns up to limit records, newest first.
func (s *Store) RecentInteractions(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultInteractionCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, entity_type, action, snapshot_json, created_at
		FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var snapshot sql.NullString
		var created int64
		if err := rows.Scan(&rec.ID, &rec.EntityID, &rec.EntityType, &rec.Action, &snapshot, &created); err != nil {
			return nil, err
		}
		if snapshot.Valid && snapshot.String != "" {
			if err := json.Unmarshal([]byte(snapshot.String), &rec.Snapshot); err != nil {
				return nil, err
			}
		}
		rec.At = time.Unix(created, 0).UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// PruneInteractions deletes everything beyond the newest keep records.
func (s *Store) PruneInteractions(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = DefaultInteractionCap
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM interactions WHERE id NOT IN (
			SELECT id FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keep)
	return err
}
