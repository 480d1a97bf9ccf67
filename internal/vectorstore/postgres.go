package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps each collection in its own pgvector table and records
// collection metadata in a registry table.
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex

	closed bool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required for the postgres backend")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS vecload_collections (
			name TEXT PRIMARY KEY,
			dimension INT NOT NULL,
			distance TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vecload_collections WHERE name = $1)`, name,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CreateCollection(ctx context.Context, col Collection) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if col.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d for collection %s", col.Dimension, col.Name)
	}
	distance := col.Distance
	if distance == "" {
		distance = Cosine
	}
	opclass, err := operatorClass(distance)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vecload_collections (name, dimension, distance) VALUES ($1, $2, $3)`,
		col.Name, col.Dimension, string(distance),
	); err != nil {
		return fmt.Errorf("register collection: %w", err)
	}
	table := tableIdent(col.Name)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, table, col.Dimension),
		fmt.Sprintf(`CREATE INDEX ON %s USING hnsw (embedding %s)`, table, opclass),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create collection table: %w", err)
		}
	}
	return tx.Commit()
}

// Upsert runs in one transaction; wait is implied by the commit.
func (s *PostgresStore) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, tableIdent(collection)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		payload := p.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, pgvector.NewVector(p.Vector), payloadJSON); err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableIdent(collection))).Scan(&n)
	return n, err
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *PostgresStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func tableIdent(collection string) string {
	return pgx.Identifier{"vec_" + collection}.Sanitize()
}

func operatorClass(d Distance) (string, error) {
	switch d {
	case Cosine:
		return "vector_cosine_ops", nil
	case Dot:
		return "vector_ip_ops", nil
	case Euclid:
		return "vector_l2_ops", nil
	case Manhattan:
		return "vector_l1_ops", nil
	default:
		return "", errors.New("unsupported distance: " + string(d))
	}
}
