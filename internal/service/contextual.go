package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrydocs/quarry/internal/domain"
)

const (
	// contextSeparator joins the situating summary and the original chunk
	contextSeparator = "\n\n"
	// defaultContextWindowTokens bounds how much of the surrounding
	// document is sent with each context-generation call
	defaultContextWindowTokens = 2000
)

// CompletionClient defines the interface for generating contextual summaries
type CompletionClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// AugmentedChunk pairs a chunk with its situating summary.
type AugmentedChunk struct {
	Original       string
	Context        string
	Contextualized string
}

// ContextAugmenter asks a language model for a short summary situating each
// chunk within its document, to improve retrieval recall for chunks that
// lack surrounding context.
type ContextAugmenter struct {
	client       CompletionClient
	windowTokens int
}

// NewContextAugmenter creates a new ContextAugmenter instance
func NewContextAugmenter(client CompletionClient) *ContextAugmenter {
	return &ContextAugmenter{
		client:       client,
		windowTokens: defaultContextWindowTokens,
	}
}

// GenerateContextBatch produces one AugmentedChunk per input chunk, in input
// order. Contextual retrieval is configuration-mandatory for its callers, so
// a missing or unreachable model fails fast instead of degrading silently.
func (a *ContextAugmenter) GenerateContextBatch(ctx context.Context, documentText string, chunks []string, documentTitle string) ([]AugmentedChunk, error) {
	if a.client == nil {
		return nil, domain.NewConfigurationError("contextual retrieval enabled but no completion client configured")
	}

	window := headTokens(documentText, a.windowTokens)

	out := make([]AugmentedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := a.client.GenerateCompletion(ctx, contextPrompt(window, chunk, documentTitle))
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(
				domain.ErrCodeConfiguration,
				fmt.Sprintf("context generation failed for chunk %d", i),
				err,
			)
		}

		summary = strings.TrimSpace(summary)
		contextualized := chunk
		if summary != "" {
			contextualized = summary + contextSeparator + chunk
		}

		out = append(out, AugmentedChunk{
			Original:       chunk,
			Context:        summary,
			Contextualized: contextualized,
		})
	}

	return out, nil
}

func contextPrompt(documentWindow, chunk, title string) string {
	var b strings.Builder
	b.WriteString("<document>\n")
	if title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString(documentWindow)
	b.WriteString("\n</document>\n\n")
	b.WriteString("<chunk>\n")
	b.WriteString(chunk)
	b.WriteString("\n</chunk>\n\n")
	b.WriteString("Write one or two short sentences situating this chunk within the overall document, ")
	b.WriteString("so the chunk can be found by search without its surrounding text. ")
	b.WriteString("Answer with the sentences only.")
	return b.String()
}

// headTokens returns the prefix of s containing at most n tokens.
func headTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	inToken := false
	for i, r := range s {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inToken {
			if seen == n {
				return s[:i]
			}
			inToken = true
			seen++
		} else if isSpace {
			inToken = false
		}
	}
	return s
}
