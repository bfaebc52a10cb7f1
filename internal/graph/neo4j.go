// Package graph stores the note graph in Neo4j with a native vector index.
package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Index    string
}

// Store implements the note store and writer on a Neo4j database.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	index    string
	logger   *zap.Logger
}

// Open connects to Neo4j and verifies connectivity.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if !identifierRe.MatchString(cfg.Index) {
		return nil, fmt.Errorf("%q: %w", cfg.Index, domain.ErrInvalidIndexName)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Store{
		driver:   driver,
		database: cfg.Database,
		index:    cfg.Index,
		logger:   logger,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Store) VectorTopK(ctx context.Context, embedding []float32, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score
		RETURN node.title AS title
		ORDER BY score DESC
	`

	result, err := session.Run(ctx, query, map[string]any{
		"index":     s.index,
		"k":         int64(k),
		"embedding": toFloat64s(embedding),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return collectStrings(ctx, result, "title")
}

func (s *Store) ScoreCandidates(ctx context.Context, titles []string, embedding []float32) ([]domain.ScoredTitle, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:Note)
		WHERE n.title IN $titles
		WITH n, vector.similarity.cosine(n.embedding, $embedding) AS score
		RETURN n.title AS title, score
		ORDER BY score DESC, title
	`

	result, err := session.Run(ctx, query, map[string]any{
		"titles":    titles,
		"embedding": toFloat64s(embedding),
	})
	if err != nil {
		return nil, fmt.Errorf("candidate scoring failed: %w", err)
	}

	var scored []domain.ScoredTitle
	for result.Next(ctx) {
		record := result.Record()
		scored = append(scored, domain.ScoredTitle{
			Title: getString(record, "title"),
			Score: getFloat(record, "score"),
		})
	}

	return scored, result.Err()
}

// TextContaining matches case-sensitive substrings of the cleaned text.
func (s *Store) TextContaining(ctx context.Context, words []string) ([]string, error) {
	if len(words) == 0 {
		return nil, nil
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:Note)
		WHERE any(word IN $words WHERE n.text CONTAINS word)
		RETURN n.title AS title
		ORDER BY title
	`

	result, err := session.Run(ctx, query, map[string]any{"words": words})
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	return collectStrings(ctx, result, "title")
}

func (s *Store) OutLinks(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (a:Note)-[:Link]->(b:Note)
		WHERE a.title IN $titles
		RETURN b.title AS title
	`

	result, err := session.Run(ctx, query, map[string]any{"titles": titles})
	if err != nil {
		return nil, fmt.Errorf("link lookup failed: %w", err)
	}

	return collectStrings(ctx, result, "title")
}

func (s *Store) Fetch(ctx context.Context, title string) (*domain.NoteText, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:Note {title: $title})
		RETURN n.title AS title, n.text AS text
		LIMIT 1
	`

	result, err := session.Run(ctx, query, map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch note: %w", err)
	}

	if result.Next(ctx) {
		record := result.Record()
		return &domain.NoteText{
			Title: getString(record, "title"),
			Text:  getString(record, "text"),
		}, nil
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch note: %w", err)
	}

	return nil, domain.ErrNoteNotFound
}

// Reset deletes every note, link and the vector index.
func (s *Store) Reset(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`MATCH (n:Note) DETACH DELETE n`,
		fmt.Sprintf("DROP INDEX `%s` IF EXISTS", s.index),
	}
	for _, stmt := range stmts {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
	}

	s.logger.Info("deleted all notes and the vector index", zap.String("index", s.index))
	return nil
}

// EnsureIndex creates the title constraint and the cosine vector index.
// An existing index with another dimension is a mismatch.
func (s *Store) EnsureIndex(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("dimension %d: %w", dims, domain.ErrDimensionMismatch)
	}

	current, err := s.indexDimensions(ctx)
	if err != nil {
		return err
	}
	if current > 0 && current != dims {
		return fmt.Errorf("index has %d, embeddings have %d: %w", current, dims, domain.ErrDimensionMismatch)
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []struct {
		query  string
		params map[string]any
	}{
		{
			query: `CREATE CONSTRAINT note_title_unique IF NOT EXISTS FOR (n:Note) REQUIRE n.title IS UNIQUE`,
		},
		{
			query: fmt.Sprintf("CREATE VECTOR INDEX `%s` IF NOT EXISTS "+
				"FOR (n:Note) ON (n.embedding) "+
				"OPTIONS {indexConfig: {`vector.dimensions`: $dims, `vector.similarity_function`: 'cosine'}}", s.index),
			params: map[string]any{"dims": int64(dims)},
		},
		{
			query: `CALL db.awaitIndexes(300)`,
		},
	}
	for _, stmt := range stmts {
		result, err := session.Run(ctx, stmt.query, stmt.params)
		if err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// indexDimensions returns 0 when the index does not exist.
func (s *Store) indexDimensions(ctx context.Context) (int, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`SHOW INDEXES YIELD name, options WHERE name = $name RETURN options`,
		map[string]any{"name": s.index},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect index: %w", err)
	}

	if !result.Next(ctx) {
		return 0, result.Err()
	}

	options, _ := result.Record().AsMap()["options"].(map[string]any)
	indexConfig, _ := options["indexConfig"].(map[string]any)
	switch v := indexConfig["vector.dimensions"].(type) {
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	}
	return 0, nil
}

func (s *Store) CreateNote(ctx context.Context, n *domain.Note) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	tags := n.SearchTags
	if tags == nil {
		tags = []string{}
	}

	query := `
		CREATE (note:Note {
			title: $title,
			note_type: $note_type,
			original_text: $original_text,
			text: $text,
			search_tags: $search_tags,
			embedding: $embedding
		})
	`

	result, err := session.Run(ctx, query, map[string]any{
		"title":         n.Title,
		"note_type":     string(n.Type),
		"original_text": n.OriginalText,
		"text":          n.Text,
		"search_tags":   tags,
		"embedding":     toFloat64s(n.Embedding),
	})
	if err == nil {
		_, err = result.Consume(ctx)
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintViolation {
		return domain.ErrNoteAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// CreateLink adds a directed edge. It reports false when either end is missing.
func (s *Store) CreateLink(ctx context.Context, src, dst string) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		MATCH (src:Note {title: $src}), (dst:Note {title: $dst})
		CREATE (src)-[:Link]->(dst)
	`

	result, err := session.Run(ctx, query, map[string]any{"src": src, "dst": dst})
	if err != nil {
		return false, fmt.Errorf("failed to create link: %w", err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create link: %w", err)
	}

	return summary.Counters().RelationshipsCreated() > 0, nil
}

func collectStrings(ctx context.Context, result neo4j.ResultWithContext, key string) ([]string, error) {
	var out []string
	for result.Next(ctx) {
		out = append(out, getString(result.Record(), key))
	}
	return out, result.Err()
}

func getString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getFloat(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
