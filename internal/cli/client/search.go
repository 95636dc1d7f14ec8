package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query            string   `json:"query"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids,omitempty"`
	DocumentID       string   `json:"document_id,omitempty"`
	MatchCount       int      `json:"match_count,omitempty"`
	MatchThreshold   *float32 `json:"match_threshold,omitempty"`
	VectorWeight     *float32 `json:"vector_weight,omitempty"`
	Rerank           bool     `json:"rerank,omitempty"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	DocumentTitle  string  `json:"document_title,omitempty"`
	Content        string  `json:"content"`
	ContextSummary string  `json:"context_summary,omitempty"`
	ChunkIndex     int     `json:"chunk_index"`
	Score          float32 `json:"score"`
	SearchType     string  `json:"search_type,omitempty"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Reranked   bool           `json:"reranked"`
	Degraded   bool           `json:"degraded"`
	DurationMs int64          `json:"duration_ms"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		knowledgeBases []string
		documentID     string
		limit          int
		threshold      float32
		vectorWeight   float32
		rerank         bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long:  "Runs a hybrid semantic and keyword search over one or more knowledge bases.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := SearchRequest{
				Query:            args[0],
				KnowledgeBaseIDs: knowledgeBases,
				DocumentID:       documentID,
				MatchCount:       limit,
				Rerank:           rerank,
			}
			if cmd.Flags().Changed("threshold") {
				req.MatchThreshold = &threshold
			}
			if cmd.Flags().Changed("vector-weight") {
				req.VectorWeight = &vectorWeight
			}
			return runSearch(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringSliceVarP(&knowledgeBases, "kb", "k", nil, "Knowledge base ID to search (repeatable)")
	cmd.Flags().StringVarP(&documentID, "document", "d", "", "Restrict search to a single document")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum similarity score (0 to 1)")
	cmd.Flags().Float32Var(&vectorWeight, "vector-weight", 0, "Weight of the vector score in hybrid fusion (0 to 1)")
	cmd.Flags().BoolVarP(&rerank, "rerank", "r", false, "Rerank results with the configured reranker")

	return cmd
}

func runSearch(cmd *cobra.Command, req SearchRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results (%dms):\n\n", len(searchResp.Results), searchResp.DurationMs)
	for i, result := range searchResp.Results {
		title := result.DocumentTitle
		if title == "" {
			title = result.DocumentID
		}
		fmt.Printf("%d. %s #%d (%.2f)\n", i+1, title, result.ChunkIndex, result.Score)
		content := strings.TrimSpace(result.Content)
		if len(content) > 160 {
			content = content[:157] + "..."
		}
		fmt.Printf("   %s\n", content)
		fmt.Printf("   Chunk: %s\n", result.ChunkID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if searchResp.Degraded {
		fmt.Printf("\nNote: reranking was unavailable, results are in fusion order.\n")
	}

	return nil
}
