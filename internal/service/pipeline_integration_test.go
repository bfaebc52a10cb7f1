//go:build integration

package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielbwilkinson/jargon-rag/internal/repository"
	"github.com/danielbwilkinson/jargon-rag/internal/service"
	"github.com/danielbwilkinson/jargon-rag/internal/testutil"
	"github.com/danielbwilkinson/jargon-rag/internal/tokenizer"
	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

const dims = 4

// topicEmbedder embeds by the topic named on a text's first line, which for
// ingested notes is the "# title" heading.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	first, _, _ := strings.Cut(strings.ToLower(text), "\n")
	switch {
	case strings.Contains(first, "kerberoast"):
		return testutil.UnitVector(dims, 0), nil
	case strings.Contains(first, "kerberos"):
		return testutil.Blend(dims, 0, 1, 0.5), nil
	case strings.Contains(first, "active directory"):
		return testutil.UnitVector(dims, 1), nil
	case strings.Contains(first, "nmap"):
		return testutil.UnitVector(dims, 2), nil
	default:
		return testutil.UnitVector(dims, 3), nil
	}
}

func (e topicEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

// agreeableLLM selects every offered document and answers with a fixed line.
type agreeableLLM struct{}

func (agreeableLLM) Complete(_ context.Context, prompt string) (string, error) {
	if !strings.Contains(prompt, "AVAILABLE DOCUMENTS") {
		return "Use GetUserSPNs.", nil
	}
	var titles []string
	for _, line := range strings.Split(prompt, "\n") {
		if title, ok := strings.CutPrefix(line, "* "); ok {
			titles = append(titles, title)
		}
	}
	data, err := json.Marshal(map[string][]string{"context": titles})
	return string(data), err
}

func TestIngestThenAnswer_Postgres(t *testing.T) {
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })
	pool := testutil.NewTestPool(ctx, t, pc)
	t.Cleanup(pool.Close)

	repo, err := repository.NewNoteRepository(pool, "note_embeddings")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	write := func(path, content string) {
		require.NoError(t, afero.WriteFile(fs, "/vault/"+path, []byte(content), 0o644))
	}
	write("01 - Primary Categories/Active Directory.md", "Domains and forests.\n[[Kerberos]]")
	write("02 - Secondary Categories/Kerberos.md", "Ticket based auth.\n[[Kerberoasting]] [[Nowhere]]")
	write("03 - Content/Kerberoasting.md", "Request service tickets with GetUserSPNs and crack them offline.")
	write("03 - Content/Nmap.md", "Port scanning.")

	ingest := service.NewIngestService(vault.NewDirSource(fs, "/vault"), repo, topicEmbedder{}, service.DefaultIngestConfig(), nil)
	report, err := ingest.Ingest(ctx, service.IngestOptions{Nuke: true})
	require.NoError(t, err)
	assert.Equal(t, dims, report.Dimensions)
	assert.Equal(t, 4, report.NotesCreated)
	assert.Equal(t, 2, report.LinksCreated)
	assert.Equal(t, 1, report.LinksUnresolved)

	cfg := service.DefaultPipelineConfig()
	cfg.Retriever.SemanticTopK = 1
	pipeline := service.NewPipeline(repo, topicEmbedder{}, agreeableLLM{}, tokenizer.Heuristic{}, cfg, nil)

	out, err := pipeline.Answer(ctx, service.AnswerInput{Query: "what is kerberos"})
	require.NoError(t, err)

	assert.Equal(t, "Use GetUserSPNs.", out.Answer)
	assert.Equal(t, []string{"Kerberos"}, out.Retrieval.Gathered.Semantic)
	assert.Equal(t, []string{"Kerberoasting"}, out.Retrieval.Gathered.Linked)
	assert.Equal(t, []string{"Kerberos", "Kerberoasting"}, out.Retrieval.Selected)
	assert.Contains(t, out.Retrieval.Context.JSON, "GetUserSPNs")

	again, err := ingest.Ingest(ctx, service.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.NotesCreated)
	assert.Len(t, again.DuplicatesSkipped, 4)
}
