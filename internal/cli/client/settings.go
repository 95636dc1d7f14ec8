package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// EmbeddingSettings represents the embedding provider configuration (API keys masked).
type EmbeddingSettings struct {
	Provider       string `json:"provider"`
	BaseURL        string `json:"base_url,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions"`
	BatchSize      int    `json:"batch_size"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	ContextEnabled bool   `json:"context_enabled"`
}

// RerankerSettings represents the reranker configuration (API keys masked).
type RerankerSettings struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// SettingsCmd creates the settings command group.
func SettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show server settings",
		Long:  "Shows the embedding and reranker configuration. API keys are always masked.",
	}

	cmd.AddCommand(settingsEmbeddingCmd())
	cmd.AddCommand(settingsRerankerCmd())

	return cmd
}

func settingsEmbeddingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embedding",
		Short: "Show embedding settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/settings/embedding")
			if err != nil {
				return fmt.Errorf("failed to get embedding settings: %w", err)
			}

			var settings EmbeddingSettings
			if err := json.Unmarshal(resp.Data, &settings); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(settings, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("Provider:       %s\n", settings.Provider)
			fmt.Printf("Model:          %s\n", settings.Model)
			fmt.Printf("Dimensions:     %d\n", settings.Dimensions)
			fmt.Printf("Batch size:     %d\n", settings.BatchSize)
			fmt.Printf("Chunk size:     %d\n", settings.ChunkSize)
			fmt.Printf("Chunk overlap:  %d\n", settings.ChunkOverlap)
			fmt.Printf("Context:        %v\n", settings.ContextEnabled)
			if settings.BaseURL != "" {
				fmt.Printf("Base URL:       %s\n", settings.BaseURL)
			}
			if settings.APIKey != "" {
				fmt.Printf("API key:        %s\n", settings.APIKey)
			}
			return nil
		},
	}

	return cmd
}

func settingsRerankerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reranker",
		Short: "Show reranker settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/settings/reranker")
			if err != nil {
				return fmt.Errorf("failed to get reranker settings: %w", err)
			}

			var settings RerankerSettings
			if err := json.Unmarshal(resp.Data, &settings); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(settings, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("Provider: %s\n", settings.Provider)
			fmt.Printf("Enabled:  %v\n", settings.Enabled)
			if settings.Model != "" {
				fmt.Printf("Model:    %s\n", settings.Model)
			}
			if settings.BaseURL != "" {
				fmt.Printf("Base URL: %s\n", settings.BaseURL)
			}
			if settings.APIKey != "" {
				fmt.Printf("API key:  %s\n", settings.APIKey)
			}
			return nil
		},
	}

	return cmd
}
