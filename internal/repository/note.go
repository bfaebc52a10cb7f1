package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

// HNSW indexes in pgvector are limited to 2000 dimensions. Larger embeddings
// are searched exactly.
const maxHNSWDimensions = 2000

const uniqueViolation = "23505"

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NoteRepository stores the note graph in PostgreSQL with pgvector.
type NoteRepository struct {
	pool  *pgxpool.Pool
	index string
}

// NewNoteRepository returns a repository whose vector index is named index.
func NewNoteRepository(pool *pgxpool.Pool, index string) (*NoteRepository, error) {
	if !identifierRe.MatchString(index) {
		return nil, fmt.Errorf("%q: %w", index, domain.ErrInvalidIndexName)
	}
	return &NoteRepository{pool: pool, index: index}, nil
}

func (r *NoteRepository) VectorTopK(ctx context.Context, embedding []float32, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT title FROM notes ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(embedding), k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *NoteRepository) ScoreCandidates(ctx context.Context, titles []string, embedding []float32) ([]domain.ScoredTitle, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT title, 1 - (embedding <=> $1) AS score
		 FROM notes
		 WHERE title = ANY($2)
		 ORDER BY score DESC, title`,
		pgvector.NewVector(embedding), titles,
	)
	if err != nil {
		return nil, fmt.Errorf("candidate scoring failed: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredTitle
	for rows.Next() {
		var st domain.ScoredTitle
		if err := rows.Scan(&st.Title, &st.Score); err != nil {
			return nil, err
		}
		results = append(results, st)
	}

	return results, rows.Err()
}

// TextContaining matches case-sensitive substrings of the cleaned text.
func (r *NoteRepository) TextContaining(ctx context.Context, words []string) ([]string, error) {
	if len(words) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT n.title
		 FROM notes n
		 WHERE EXISTS (
		     SELECT 1 FROM unnest($1::text[]) AS w(word) WHERE strpos(n.text, w.word) > 0
		 )
		 ORDER BY n.title`,
		words,
	)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *NoteRepository) OutLinks(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT dst_title FROM note_links WHERE src_title = ANY($1) ORDER BY id`,
		titles,
	)
	if err != nil {
		return nil, fmt.Errorf("link lookup failed: %w", err)
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *NoteRepository) Fetch(ctx context.Context, title string) (*domain.NoteText, error) {
	var nt domain.NoteText
	err := r.pool.QueryRow(ctx,
		`SELECT title, text FROM notes WHERE title = $1`,
		title,
	).Scan(&nt.Title, &nt.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch note: %w", err)
	}
	return &nt, nil
}

// Reset deletes every note and link and releases the embedding dimension.
func (r *NoteRepository) Reset(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmts := []string{
		fmt.Sprintf(`DROP INDEX IF EXISTS %s`, pgx.Identifier{r.index}.Sanitize()),
		`TRUNCATE note_links, notes`,
		`ALTER TABLE notes ALTER COLUMN embedding TYPE vector`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// EnsureIndex pins the embedding column to dims and creates the cosine index.
// An existing column with another dimension is a mismatch.
func (r *NoteRepository) EnsureIndex(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("dimension %d: %w", dims, domain.ErrDimensionMismatch)
	}

	var current int
	err := r.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'notes'::regclass AND attname = 'embedding'`,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read embedding column: %w", err)
	}

	switch {
	case current == -1:
		if _, err := r.pool.Exec(ctx,
			fmt.Sprintf(`ALTER TABLE notes ALTER COLUMN embedding TYPE vector(%d)`, dims),
		); err != nil {
			return fmt.Errorf("failed to set embedding dimension: %w", err)
		}
	case current != dims:
		return fmt.Errorf("index has %d, embeddings have %d: %w", current, dims, domain.ErrDimensionMismatch)
	}

	if dims > maxHNSWDimensions {
		return nil
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON notes USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{r.index}.Sanitize(),
	))
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (r *NoteRepository) CreateNote(ctx context.Context, n *domain.Note) error {
	tags := n.SearchTags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO notes (title, note_type, original_text, text, search_tags, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.Title, string(n.Type), n.OriginalText, n.Text, tags, pgvector.NewVector(n.Embedding),
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrNoteAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// CreateLink adds a directed edge. It reports false when either end is missing.
func (r *NoteRepository) CreateLink(ctx context.Context, src, dst string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO note_links (src_title, dst_title)
		 SELECT s.title, d.title FROM notes s, notes d
		 WHERE s.title = $1 AND d.title = $2`,
		src, dst,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create link: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
