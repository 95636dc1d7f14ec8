package service

import (
	"testing"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorCandidate(id string, score float32) *domain.SearchCandidate {
	return &domain.SearchCandidate{ChunkID: id, DocumentID: "doc-" + id, VectorScore: score}
}

func lexicalCandidate(id string, score float32) *domain.SearchCandidate {
	return &domain.SearchCandidate{ChunkID: id, DocumentID: "doc-" + id, LexicalScore: score}
}

func TestFuseCandidates(t *testing.T) {
	t.Run("weights normalized scores from both lists", func(t *testing.T) {
		vector := []*domain.SearchCandidate{
			vectorCandidate("a", 0.9),
			vectorCandidate("b", 0.5),
			vectorCandidate("c", 0.1),
		}
		lexical := []*domain.SearchCandidate{
			lexicalCandidate("b", 4.0),
			lexicalCandidate("c", 2.0),
			lexicalCandidate("d", 0.0),
		}

		out := fuseCandidates(vector, lexical, 0.5, 0, 0)
		require.Len(t, out, 4)

		scores := make(map[string]float32, len(out))
		for _, c := range out {
			scores[c.ChunkID] = c.CombinedScore
		}

		// a: vec norm 1.0, no lexical entry scores 0 on that axis.
		assert.InDelta(t, 0.5, scores["a"], 1e-6)
		// b: vec norm 0.5, lex norm 1.0.
		assert.InDelta(t, 0.75, scores["b"], 1e-6)
		// c: vec norm 0.0, lex norm 0.5.
		assert.InDelta(t, 0.25, scores["c"], 1e-6)
		// d: lexical only, lex norm 0.0.
		assert.InDelta(t, 0.0, scores["d"], 1e-6)

		assert.Equal(t, "b", out[0].ChunkID)
	})

	t.Run("missing axis scores zero instead of excluding the candidate", func(t *testing.T) {
		vector := []*domain.SearchCandidate{
			vectorCandidate("a", 0.9),
			vectorCandidate("b", 0.1),
		}

		out := fuseCandidates(vector, nil, 0.5, 0, 0)
		require.Len(t, out, 2)
		assert.Equal(t, domain.SearchTypeVector, out[0].SearchType)
		assert.Equal(t, "a", out[0].ChunkID)
	})

	t.Run("candidate in both lists is marked hybrid", func(t *testing.T) {
		out := fuseCandidates(
			[]*domain.SearchCandidate{vectorCandidate("a", 0.9)},
			[]*domain.SearchCandidate{lexicalCandidate("a", 3.0)},
			0.5, 0, 0,
		)
		require.Len(t, out, 1)
		assert.Equal(t, domain.SearchTypeHybrid, out[0].SearchType)
		// Single-entry lists normalize to 1 on both axes.
		assert.InDelta(t, 1.0, out[0].CombinedScore, 1e-6)
	})

	t.Run("ties on combined score break toward raw vector similarity", func(t *testing.T) {
		vector := []*domain.SearchCandidate{
			vectorCandidate("low", 0.2),
			vectorCandidate("high", 0.8),
		}
		// Pure vector weight: normalized scores are 0 and 1. Force a tie by
		// weighting lexical only, where neither appears.
		out := fuseCandidates(vector, nil, 0, 0, 0)
		require.Len(t, out, 2)
		assert.Equal(t, "high", out[0].ChunkID)
		assert.Equal(t, "low", out[1].ChunkID)
	})

	t.Run("threshold filters on the combined score", func(t *testing.T) {
		vector := []*domain.SearchCandidate{
			vectorCandidate("a", 0.9),
			vectorCandidate("b", 0.5),
			vectorCandidate("c", 0.1),
		}

		out := fuseCandidates(vector, nil, 1.0, 0.4, 0)
		require.Len(t, out, 2)
		assert.Equal(t, "a", out[0].ChunkID)
		assert.Equal(t, "b", out[1].ChunkID)
	})

	t.Run("limit truncates after ordering", func(t *testing.T) {
		vector := []*domain.SearchCandidate{
			vectorCandidate("a", 0.3),
			vectorCandidate("b", 0.9),
			vectorCandidate("c", 0.6),
		}

		out := fuseCandidates(vector, nil, 1.0, 0, 2)
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[0].ChunkID)
		assert.Equal(t, "c", out[1].ChunkID)
	})

	t.Run("empty lists fuse to empty", func(t *testing.T) {
		assert.Empty(t, fuseCandidates(nil, nil, 0.5, 0, 10))
	})
}

func TestKeywordQuery(t *testing.T) {
	assert.Equal(t, "deploy pipeline", keywordQuery("how to deploy the pipeline"))
	assert.Equal(t, "", keywordQuery("what is the of"))
	assert.Equal(t, "", keywordQuery("   "))
	assert.Equal(t, "Postgres", keywordQuery("the Postgres"))
}

func TestNormalizer(t *testing.T) {
	t.Run("spreads values over the unit interval", func(t *testing.T) {
		list := []*domain.SearchCandidate{
			vectorCandidate("a", 10),
			vectorCandidate("b", 20),
			vectorCandidate("c", 30),
		}
		norm := normalizer(list, func(c *domain.SearchCandidate) float32 { return c.VectorScore })
		assert.InDelta(t, 0.0, norm(10), 1e-6)
		assert.InDelta(t, 0.5, norm(20), 1e-6)
		assert.InDelta(t, 1.0, norm(30), 1e-6)
	})

	t.Run("constant list normalizes to one", func(t *testing.T) {
		list := []*domain.SearchCandidate{
			vectorCandidate("a", 7),
			vectorCandidate("b", 7),
		}
		norm := normalizer(list, func(c *domain.SearchCandidate) float32 { return c.VectorScore })
		assert.InDelta(t, 1.0, norm(7), 1e-6)
	})
}
