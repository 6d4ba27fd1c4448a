package rag_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/agentoven/ragserve/internal/embeddings/embedtest"
	"github.com/agentoven/ragserve/internal/params"
	"github.com/agentoven/ragserve/internal/rag"
	"github.com/agentoven/ragserve/internal/vectorstore"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_ShortTextIsOneChunk(t *testing.T) {
	chunks := rag.NewSplitter(100, 10).Split("  hello world  ")
	assert.Equal(t, []string{"hello world"}, chunks)
	assert.Empty(t, rag.NewSplitter(100, 10).Split("   \n "))
}

func TestSplitter_RespectsSize(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	s := rag.NewSplitter(120, 20)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 120)
		assert.NotEmpty(t, c)
	}
}

func TestSplitter_PrefersParagraphs(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n\n" + strings.Repeat("c", 40)
	chunks := rag.NewSplitter(90, 0).Split(text)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0], "aaa"))
	assert.True(t, strings.HasSuffix(chunks[1], "ccc"))
}

func TestSplitter_HardCutsUnbrokenText(t *testing.T) {
	chunks := rag.NewSplitter(10, 0).Split(strings.Repeat("x", 35))
	require.Len(t, chunks, 4)
	assert.Equal(t, "xxxxx", chunks[3])
}

func TestIngestText(t *testing.T) {
	ctx := context.Background()
	idx := vectorstore.NewEmbeddedStore()
	ing := rag.NewIngester(embedtest.New(), idx)

	res, err := ing.IngestText(ctx, "docs", models.IngestTextRequest{
		Text:      strings.Repeat("Paris is the capital of France. ", 30),
		Source:    "geo.md",
		Keywords:  "france,paris",
		ChunkSize: 200,
	})
	require.NoError(t, err)
	assert.Greater(t, res.ChunksCreated, 1)
	assert.Equal(t, res.ChunksCreated, res.VectorsStored)

	n, _ := idx.Count(ctx, "docs")
	assert.Equal(t, res.ChunksCreated, n)

	hits, err := idx.Search(ctx, "docs", make([]float64, 64), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "geo.md", hits[0].Doc.Metadata[models.MetaSource])
	assert.Equal(t, "france,paris", hits[0].Doc.Metadata[models.MetaKeywords])
}

// recordingReranker keeps the candidates it saw and returns them reversed
// with a fixed score.
type recordingReranker struct {
	seen  []string
	score float64
}

func (r *recordingReranker) Rerank(_ context.Context, _ string, cands []models.SearchResult, topN int) ([]models.SearchResult, error) {
	r.seen = nil
	for _, c := range cands {
		r.seen = append(r.seen, c.Doc.ID)
	}
	out := make([]models.SearchResult, 0, len(cands))
	for i := len(cands) - 1; i >= 0; i-- {
		c := cands[i]
		c.Score = r.score
		out = append(out, c)
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func seed(t *testing.T, idx *vectorstore.EmbeddedStore, e *embedtest.Embedder, ids ...string) {
	t.Helper()
	docs := make([]models.VectorDoc, len(ids))
	for i, id := range ids {
		v, _ := e.Embed(context.Background(), []string{id})
		docs[i] = models.VectorDoc{ID: id, Content: id, Vector: v[0]}
	}
	require.NoError(t, idx.Upsert(context.Background(), "c", docs))
}

func TestPipeline_StageOrder(t *testing.T) {
	e := embedtest.New()
	e.Dims = 2
	e.Fixed = map[string][]float64{"q": {1, 0}, "d1": {1, 0}, "d2": {0.9, 0.1}, "d3": {0.5, 0.5}, "d4": {0, 1}}
	idx := vectorstore.NewEmbeddedStore()
	seed(t, idx, e, "d1", "d2", "d3", "d4")

	colbert := &recordingReranker{score: 0.8}
	judge := &recordingReranker{score: 0.4}
	p := rag.NewPipeline(e, idx, colbert, judge)

	res, err := p.Retrieve(context.Background(), "c", "q", params.Retrieval{K: 2, ColbertRerank: true, LLMRerank: true})
	require.NoError(t, err)

	// Index returns 2K candidates to ColBERT, ColBERT's top K go to the judge.
	assert.Equal(t, []string{"d1", "d2", "d3", "d4"}, colbert.seen)
	assert.Equal(t, []string{"d4", "d3"}, judge.seen)
	require.Len(t, res, 2)
	assert.Equal(t, "d3", res[0].Doc.ID)

	// The cutoff applies to the judge's scores, after both stages.
	res, err = p.Retrieve(context.Background(), "c", "q", params.Retrieval{K: 2, Score: 0.5, ColbertRerank: true, LLMRerank: true})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestPipeline_NoRerankFetchesK(t *testing.T) {
	e := embedtest.New()
	idx := vectorstore.NewEmbeddedStore()
	seed(t, idx, e, "alpha", "beta", "gamma")

	p := rag.NewPipeline(e, idx, nil, nil)
	res, err := p.Retrieve(context.Background(), "c", "alpha", params.Retrieval{K: 2})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "alpha", res[0].Doc.ID)

	_, err = p.Retrieve(context.Background(), "c", "alpha", params.Retrieval{K: 2, ColbertRerank: true})
	assert.Error(t, err)
}

func TestSources_Lite(t *testing.T) {
	results := []models.SearchResult{{Doc: models.VectorDoc{ID: "1", Content: "body", Metadata: map[string]string{models.MetaSource: "s"}}, Score: 0.7}}
	full := rag.Sources(results, false)
	lite := rag.Sources(results, true)
	assert.Equal(t, "body", full[0].Content)
	assert.Empty(t, lite[0].Content)
	assert.Equal(t, "s", lite[0].Source)
}
