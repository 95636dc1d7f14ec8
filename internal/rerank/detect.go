package rerank

import (
	"encoding/json"
	"fmt"

	"github.com/quarrydocs/quarry/internal/domain"
)

// Detection confidence levels
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// FormatDetection records which wire shape a response was parsed with and
// why. It is surfaced for diagnostics and never blocks extraction.
type FormatDetection struct {
	Format     domain.RerankResponseFormat
	Confidence string
	Reason     string
}

// scoredIndex is one parsed result item: the index of the candidate in the
// request plus its relevance score.
type scoredIndex struct {
	Index int
	Score float32
}

type rawResultItem struct {
	Index          *int            `json:"index"`
	RelevanceScore *float32        `json:"relevance_score"`
	Score          *float32        `json:"score"`
	Document       json.RawMessage `json:"document"`
}

type rawResponse struct {
	Output *struct {
		Results []rawResultItem `json:"results"`
	} `json:"output"`
	Results []rawResultItem `json:"results"`
	Data    []rawResultItem `json:"data"`
}

// DetectFormat inspects a raw rerank response and classifies its shape.
// Priority: nested output.results, then a top-level results array
// (disambiguated by its first element), then a top-level data array.
func DetectFormat(raw []byte) (FormatDetection, error) {
	var resp rawResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return FormatDetection{}, domain.NewParseError("failed to decode rerank response", err)
	}

	switch {
	case resp.Output != nil && resp.Output.Results != nil:
		return FormatDetection{
			Format:     domain.RerankFormatAliyun,
			Confidence: ConfidenceHigh,
			Reason:     "nested output.results array",
		}, nil

	case resp.Results != nil:
		if len(resp.Results) == 0 {
			return FormatDetection{
				Format:     domain.RerankFormatCohere,
				Confidence: ConfidenceMedium,
				Reason:     "empty results array, assuming flat results format",
			}, nil
		}
		first := resp.Results[0]
		if len(first.Document) > 0 {
			return FormatDetection{
				Format:     domain.RerankFormatJina,
				Confidence: ConfidenceHigh,
				Reason:     "results array with nested document objects",
			}, nil
		}
		if first.RelevanceScore != nil {
			return FormatDetection{
				Format:     domain.RerankFormatCohere,
				Confidence: ConfidenceHigh,
				Reason:     "results array with relevance_score field",
			}, nil
		}
		if first.Score != nil {
			return FormatDetection{
				Format:     domain.RerankFormatCohere,
				Confidence: ConfidenceLow,
				Reason:     "results array with generic score field",
			}, nil
		}
		return FormatDetection{
			Format:     domain.RerankFormatCohere,
			Confidence: ConfidenceLow,
			Reason:     "results array without a recognized score field",
		}, nil

	case resp.Data != nil:
		return FormatDetection{
			Format:     domain.RerankFormatVoyage,
			Confidence: ConfidenceMedium,
			Reason:     "top-level data array",
		}, nil
	}

	return FormatDetection{}, domain.NewParseError("rerank response matched no known format", nil)
}

// parseResults extracts scored indices using the given format. Extraction is
// defensive: a missing score maps to 0 and a missing index to 0 rather than
// failing the whole response.
func parseResults(raw []byte, format domain.RerankResponseFormat) ([]scoredIndex, error) {
	var resp rawResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewParseError("failed to decode rerank response", err)
	}

	var items []rawResultItem
	switch format {
	case domain.RerankFormatAliyun:
		if resp.Output == nil {
			return nil, domain.NewParseError("rerank response has no output object", nil)
		}
		items = resp.Output.Results
	case domain.RerankFormatVoyage:
		items = resp.Data
	case domain.RerankFormatCohere, domain.RerankFormatJina:
		items = resp.Results
	default:
		return nil, domain.NewParseError(fmt.Sprintf("unknown rerank response format %q", format), nil)
	}

	out := make([]scoredIndex, 0, len(items))
	for _, item := range items {
		var si scoredIndex
		if item.Index != nil {
			si.Index = *item.Index
		}
		switch {
		case item.RelevanceScore != nil:
			si.Score = *item.RelevanceScore
		case item.Score != nil:
			si.Score = *item.Score
		}
		out = append(out, si)
	}
	return out, nil
}
