package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/quarrydocs/quarry/internal/domain"
)

const (
	defaultMatchCount          = 10
	defaultVectorWeight        = 0.5
	defaultCandidateMultiplier = 4
	defaultMaxCandidates       = 200

	rerankCandidateMultiplier = 5
	rerankCandidateCap        = 50
)

var searchStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "for": {}, "from": {},
	"how": {}, "in": {}, "is": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "what": {}, "with": {},
}

// keywordQuery strips stopwords so the lexical pass is skipped for queries
// with no usable keywords.
func keywordQuery(query string) string {
	var tokens []string
	for _, token := range strings.FieldsFunc(query, unicode.IsSpace) {
		clean := strings.ToLower(strings.TrimSpace(token))
		if clean == "" {
			continue
		}
		if _, ok := searchStopwords[clean]; ok {
			continue
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

// fuseCandidates merges the vector and lexical rank lists into one ordered
// list. Each list's raw scores are min-max normalized to [0,1] on their own
// scale before weighting, and a candidate missing from one list scores 0 on
// that axis instead of being excluded. Ties on the combined score break
// toward the higher raw vector similarity.
func fuseCandidates(vectorList, lexicalList []*domain.SearchCandidate, vectorWeight, threshold float32, limit int) []domain.SearchCandidate {
	type fusion struct {
		candidate  domain.SearchCandidate
		vectorNorm float32
		lexNorm    float32
		inVector   bool
		inLexical  bool
	}

	candidates := make(map[string]*fusion)
	order := make([]string, 0, len(vectorList)+len(lexicalList))

	get := func(c *domain.SearchCandidate) *fusion {
		f, ok := candidates[c.ChunkID]
		if !ok {
			f = &fusion{candidate: *c}
			candidates[c.ChunkID] = f
			order = append(order, c.ChunkID)
		}
		return f
	}

	vecNorm := normalizer(vectorList, func(c *domain.SearchCandidate) float32 { return c.VectorScore })
	for _, c := range vectorList {
		if c == nil {
			continue
		}
		f := get(c)
		f.inVector = true
		f.vectorNorm = vecNorm(c.VectorScore)
		f.candidate.VectorScore = c.VectorScore
	}

	lexNorm := normalizer(lexicalList, func(c *domain.SearchCandidate) float32 { return c.LexicalScore })
	for _, c := range lexicalList {
		if c == nil {
			continue
		}
		f := get(c)
		f.inLexical = true
		f.lexNorm = lexNorm(c.LexicalScore)
		f.candidate.LexicalScore = c.LexicalScore
	}

	out := make([]domain.SearchCandidate, 0, len(order))
	for _, id := range order {
		f := candidates[id]
		f.candidate.CombinedScore = vectorWeight*f.vectorNorm + (1-vectorWeight)*f.lexNorm

		switch {
		case f.inVector && f.inLexical:
			f.candidate.SearchType = domain.SearchTypeHybrid
		case f.inVector:
			f.candidate.SearchType = domain.SearchTypeVector
		default:
			f.candidate.SearchType = domain.SearchTypeLexical
		}

		if f.candidate.CombinedScore < threshold {
			continue
		}
		out = append(out, f.candidate)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].VectorScore > out[j].VectorScore
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// normalizer returns a min-max normalization function over one rank list.
// A constant or single-entry list normalizes to 1 so a lone top result is
// not zeroed out.
func normalizer(list []*domain.SearchCandidate, score func(*domain.SearchCandidate) float32) func(float32) float32 {
	var min, max float32
	first := true
	for _, c := range list {
		if c == nil {
			continue
		}
		v := score(c)
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	span := max - min
	return func(v float32) float32 {
		if span == 0 {
			return 1
		}
		return (v - min) / span
	}
}
