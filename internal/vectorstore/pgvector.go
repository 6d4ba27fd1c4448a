package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// PgvectorStore is a VectorIndex backed by PostgreSQL with the pgvector
// extension. All collections share one table; the vector column is
// unsized so projects with different embedding models can coexist.
type PgvectorStore struct {
	pool *pgxpool.Pool
}

// NewPgvectorStore connects to connURL and creates the table if needed.
func NewPgvectorStore(ctx context.Context, connURL string) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector ping: %w", err)
	}

	s := &PgvectorStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector migrate: %w", err)
	}

	log.Info().Msg("🐘 pgvector store initialized")
	return s, nil
}

func (s *PgvectorStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS rs_vectors (
			id         TEXT NOT NULL,
			collection TEXT NOT NULL,
			content    TEXT NOT NULL DEFAULT '',
			metadata   JSONB NOT NULL DEFAULT '{}',
			vector     vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_rs_vectors_source ON rs_vectors (collection, (metadata->>'source'));
	`)
	return err
}

func (s *PgvectorStore) Backend() string { return string(models.VectorStorePgvector) }

func (s *PgvectorStore) Upsert(ctx context.Context, collection string, docs []models.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO rs_vectors (id, collection, content, metadata, vector, created_at) VALUES `)

	args := make([]interface{}, 0, len(docs)*6)
	for i, d := range docs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*6 + 1
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4, base+5)
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := d.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		metadata := d.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		args = append(args, id, collection, d.Content, metadata, toVector(d.Vector), created)
	}

	sb.WriteString(` ON CONFLICT (collection, id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		vector = EXCLUDED.vector`)

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("pgvector upsert: %w", err)
	}
	return nil
}

// Search orders by L2 distance (<->) and reports cosine similarity as the
// score.
func (s *PgvectorStore) Search(ctx context.Context, collection string, vector []float64, topK int) ([]models.SearchResult, error) {
	q := toVector(vector)
	rows, err := s.pool.Query(ctx, `
		SELECT id, collection, content, metadata, created_at,
			vector <-> $1 AS distance,
			1 - (vector <=> $1) AS score
		FROM rs_vectors
		WHERE collection = $2 AND vector_dims(vector) = $3
		ORDER BY vector <-> $1, id
		LIMIT $4`, q, collection, len(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.Doc.ID, &r.Doc.Collection, &r.Doc.Content, &r.Doc.Metadata, &r.Doc.CreatedAt, &r.Distance, &r.Score); err != nil {
			return nil, fmt.Errorf("pgvector scan: %w", err)
		}
		r.Score = clamp01(r.Score)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PgvectorStore) DeleteBySource(ctx context.Context, collection, source string) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM rs_vectors WHERE collection = $1 AND metadata->>'source' = $2", collection, source)
	if err != nil {
		return 0, fmt.Errorf("pgvector delete by source: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgvectorStore) DeleteByID(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM rs_vectors WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return fmt.Errorf("pgvector delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vector %s not found in %s", id, collection)
	}
	return nil
}

func (s *PgvectorStore) DeleteCollection(ctx context.Context, collection string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM rs_vectors WHERE collection = $1", collection); err != nil {
		return fmt.Errorf("pgvector delete collection: %w", err)
	}
	return nil
}

func (s *PgvectorStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM rs_vectors WHERE collection = $1", collection).Scan(&count)
	return count, err
}

// Ping checks the pool.
func (s *PgvectorStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() {
	s.pool.Close()
}

func toVector(v []float64) pgvector.Vector {
	f := make([]float32, len(v))
	for i, x := range v {
		f[i] = float32(x)
	}
	return pgvector.NewVector(f)
}
