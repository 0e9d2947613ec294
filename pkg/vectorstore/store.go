// Package vectorstore persists agent profiles and their embedding vectors
// in Postgres (pgvector). It feeds the resonance stage: the engine loads
// the agent_id to vector mapping from here, or delegates top-k directly to
// the database.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/towow-net/towow/pkg/resonance"
)

// Schema is the table this store expects. Dimension 1536 matches
// text-embedding-3-small; adjust for other encoders.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS agents (
    agent_id        TEXT PRIMARY KEY,
    display_name    TEXT NOT NULL DEFAULT '',
    profile         JSONB NOT NULL DEFAULT '{}',
    profile_vector  vector(1536),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// AgentRecord is one stored agent.
type AgentRecord struct {
	AgentID     string
	DisplayName string
	Profile     map[string]any
	Vector      []float32
}

// Store is a pgx-backed agent vector registry. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing connection pool. The pool stays
// owned by the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the agents table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("vectorstore: ensure schema: %w", err)
	}
	return nil
}

// Upsert inserts or fully replaces an agent record.
func (s *Store) Upsert(ctx context.Context, rec AgentRecord) error {
	const q = `
		INSERT INTO agents (agent_id, display_name, profile, profile_vector, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET
		    display_name   = EXCLUDED.display_name,
		    profile        = EXCLUDED.profile,
		    profile_vector = EXCLUDED.profile_vector,
		    updated_at     = NOW()`

	_, err := s.pool.Exec(ctx, q,
		rec.AgentID,
		rec.DisplayName,
		rec.Profile,
		pgvector.NewVector(rec.Vector),
	)
	if err != nil {
		return fmt.Errorf("vectorstore: upsert agent %s: %w", rec.AgentID, err)
	}
	return nil
}

// LoadVectors returns every agent's vector ordered by creation time, the
// shape the resonance detector consumes. Agents without a vector are
// skipped.
func (s *Store) LoadVectors(ctx context.Context) ([]resonance.AgentVector, error) {
	const q = `
		SELECT agent_id, profile_vector
		FROM   agents
		WHERE  profile_vector IS NOT NULL
		ORDER  BY created_at, agent_id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: load vectors: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (resonance.AgentVector, error) {
		var (
			av  resonance.AgentVector
			vec pgvector.Vector
		)
		if err := row.Scan(&av.AgentID, &vec); err != nil {
			return resonance.AgentVector{}, err
		}
		av.Vector = vec.Slice()
		return av, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan vectors: %w", err)
	}
	return out, nil
}

// DisplayNames returns the agent_id to display_name mapping for all
// stored agents.
func (s *Store) DisplayNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT agent_id, display_name FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: load display names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("vectorstore: scan display name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: iterate display names: %w", err)
	}
	return names, nil
}

// Profiles returns all stored profiles keyed by agent ID, the shape the
// simulated adapter consumes.
func (s *Store) Profiles(ctx context.Context) (map[string]map[string]any, error) {
	rows, err := s.pool.Query(ctx, `SELECT agent_id, profile FROM agents`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: load profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]map[string]any)
	for rows.Next() {
		var (
			id      string
			profile map[string]any
		)
		if err := rows.Scan(&id, &profile); err != nil {
			return nil, fmt.Errorf("vectorstore: scan profile: %w", err)
		}
		profiles[id] = profile
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: iterate profiles: %w", err)
	}
	return profiles, nil
}

// GetProfile returns one agent's stored profile, or nil when unknown.
func (s *Store) GetProfile(ctx context.Context, agentID string) (map[string]any, error) {
	var profile map[string]any
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM agents WHERE agent_id = $1`, agentID,
	).Scan(&profile)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get profile %s: %w", agentID, err)
	}
	return profile, nil
}

// Detect implements resonance.Detector by answering top-k in the database
// with the pgvector cosine distance operator. The candidate slice is
// ignored; stored vectors are the candidate set.
func (s *Store) Detect(ctx context.Context, demand []float32, _ []resonance.AgentVector, kStar int) ([]resonance.Match, error) {
	if kStar <= 0 {
		return nil, nil
	}

	const q = `
		SELECT agent_id,
		       1 - (profile_vector <=> $1) AS score
		FROM   agents
		WHERE  profile_vector IS NOT NULL
		ORDER  BY profile_vector <=> $1
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(demand), kStar)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: detect: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (resonance.Match, error) {
		var m resonance.Match
		if err := row.Scan(&m.AgentID, &m.Score); err != nil {
			return resonance.Match{}, err
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan matches: %w", err)
	}
	return matches, nil
}
