package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

// dimensionProbe is embedded once to learn the embedding dimension.
const dimensionProbe = "aaa"

// IngestConfig controls batching of embedding requests.
type IngestConfig struct {
	BatchSize   int
	Concurrency int
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		BatchSize:   16,
		Concurrency: 4,
	}
}

type IngestOptions struct {
	// Nuke deletes every existing note and the vector index first
	Nuke bool
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Dimensions        int
	NotesCreated      int
	DuplicatesSkipped []string
	LinksCreated      int
	LinksUnresolved   int
}

// IngestService loads a vault into the note graph.
type IngestService struct {
	source   VaultSource
	writer   NoteWriter
	embedder Embedder
	cfg      IngestConfig
	logger   *zap.Logger
}

func NewIngestService(source VaultSource, writer NoteWriter, embedder Embedder, cfg IngestConfig, logger *zap.Logger) *IngestService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIngestConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultIngestConfig().Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{source: source, writer: writer, embedder: embedder, cfg: cfg, logger: logger}
}

// Ingest creates a node per note and an edge per resolvable wiki-link.
// Notes whose title already exists are skipped with a warning.
func (s *IngestService) Ingest(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{Stage: "ingest"})
	defer span.End()

	report, err := s.ingest(ctx, opts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetCount(report.NotesCreated)
	return report, nil
}

func (s *IngestService) ingest(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	if opts.Nuke {
		if err := s.writer.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset graph: %w", err)
		}
	}

	probe, err := s.embedder.Embed(ctx, dimensionProbe)
	if err != nil {
		return nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	dims := len(probe)
	s.logger.Info("embedding dimension", zap.Int("dimensions", dims))

	if err := s.writer.EnsureIndex(ctx, dims); err != nil {
		return nil, fmt.Errorf("failed to ensure vector index: %w", err)
	}

	files, err := s.source.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}

	report := &IngestReport{Dimensions: dims}

	docs := make([]*vault.Document, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if _, dup := seen[f.Title]; dup {
			s.logger.Warn("duplicate note title in vault, skipping", zap.String("title", f.Title), zap.String("type", string(f.Type)))
			report.DuplicatesSkipped = append(report.DuplicatesSkipped, f.Title)
			continue
		}
		seen[f.Title] = struct{}{}
		docs = append(docs, vault.Parse(f.Title, f.Type, f.Content))
	}

	embeddings, err := s.embedDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}

	created := make([]*vault.Document, 0, len(docs))
	for i, doc := range docs {
		if len(embeddings[i]) != dims {
			return nil, fmt.Errorf("note %q has %d dimensions, index has %d: %w",
				doc.Title, len(embeddings[i]), dims, domain.ErrDimensionMismatch)
		}

		note := domain.NewNote(doc.Title, doc.Type, doc.OriginalText, doc.Text, doc.SearchTags)
		note.Embedding = embeddings[i]
		if err := domain.ValidateNote(note); err != nil {
			return nil, fmt.Errorf("invalid note %q: %w", doc.Title, err)
		}

		err := s.writer.CreateNote(ctx, note)
		if errors.Is(err, domain.ErrNoteAlreadyExists) {
			s.logger.Warn("note already in graph, skipping", zap.String("title", doc.Title))
			report.DuplicatesSkipped = append(report.DuplicatesSkipped, doc.Title)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create note %q: %w", doc.Title, err)
		}

		report.NotesCreated++
		created = append(created, doc)
		s.logger.Info("uploaded note", zap.String("title", doc.Title), zap.String("type", string(doc.Type)))
	}

	for _, doc := range created {
		for _, target := range doc.Links {
			ok, err := s.writer.CreateLink(ctx, doc.Title, target)
			if err != nil {
				return nil, fmt.Errorf("failed to link %q to %q: %w", doc.Title, target, err)
			}
			if ok {
				report.LinksCreated++
			} else {
				report.LinksUnresolved++
				s.logger.Debug("unresolved link", zap.String("from", doc.Title), zap.String("to", target))
			}
		}
	}

	s.logger.Info("ingestion complete",
		zap.Int("notes", report.NotesCreated),
		zap.Int("skipped", len(report.DuplicatesSkipped)),
		zap.Int("links", report.LinksCreated),
		zap.Int("unresolved_links", report.LinksUnresolved))

	return report, nil
}

// embedDocuments embeds cleaned texts in batches, a few batches at a time,
// returning vectors in document order.
func (s *IngestService) embedDocuments(ctx context.Context, docs []*vault.Document) ([][]float32, error) {
	out := make([][]float32, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(docs))

		g.Go(func() error {
			texts := make([]string, end-start)
			for i, doc := range docs[start:end] {
				texts[i] = doc.Text
			}

			vectors, err := s.embedder.EmbedMany(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed notes %d-%d: %w", start, end-1, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(vectors), domain.ErrNoEmbedding)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
