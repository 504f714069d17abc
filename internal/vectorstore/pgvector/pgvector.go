// Package pgvector stores index entries in PostgreSQL using the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"rfp/internal/domain"
)

// Store keeps one collection in a shared table keyed by (collection, id).
type Store struct {
	db         *pgxpool.Pool
	table      string
	collection string
	location   string
	dimension  int
}

var _ domain.VectorStore = (*Store)(nil)

// Config configures the pgvector store.
type Config struct {
	DSN        string
	Table      string
	Collection string
}

// NewStore connects to PostgreSQL and ensures the extension and table exist.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = "rfp_chunks"
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s := &Store{
		db:         pool,
		table:      pgx.Identifier{cfg.Table}.Sanitize(),
		collection: cfg.Collection,
		location:   pool.Config().ConnConfig.Host + "/" + pool.Config().ConnConfig.Database,
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			document   TEXT NOT NULL,
			embedding  vector NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			seq        BIGSERIAL,
			PRIMARY KEY (collection, id)
		)`, s.table),
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("preparing schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	return nil
}

// Upsert writes all entries in a single transaction.
func (s *Store) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`
		INSERT INTO %s (collection, id, document, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id) DO UPDATE SET
			document = EXCLUDED.document,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, s.table)
	for _, e := range entries {
		md := e.Metadata
		if md == nil {
			md = domain.Metadata{}
		}
		mdJSON, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("marshalling metadata for %s: %w", e.ID, err)
		}
		if _, err := tx.Exec(ctx, query, s.collection, e.ID, e.Text, pgvector.NewVector(e.Vector), string(mdJSON)); err != nil {
			return fmt.Errorf("upserting %s: %w", e.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.ScoredEntry, error) {
	if topK <= 0 {
		topK = 5
	}
	if filter == nil {
		filter = domain.Filter{}
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshalling filter: %w", err)
	}
	query := fmt.Sprintf(`
		SELECT id, document, metadata, embedding <=> $1 AS distance
		FROM %s
		WHERE collection = $2 AND metadata @> $3::jsonb
		ORDER BY distance, id
		LIMIT $4`, s.table)
	rows, err := s.db.Query(ctx, query, pgvector.NewVector(vector), s.collection, string(filterJSON), topK)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredEntry
	for rows.Next() {
		var (
			e      domain.ScoredEntry
			mdJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.Text, &mdJSON, &e.Distance); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(mdJSON, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE collection = $1`, s.table), s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE collection = $1`, s.table), s.collection); err != nil {
		return fmt.Errorf("clearing collection: %w", err)
	}
	return nil
}

// Drop deletes the collection's rows. The shared table is kept.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	s.dimension = 0
	return nil
}

func (s *Store) Location() string { return "postgres://" + s.location }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
