package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// CreateDocumentRequest represents the create document API request.
type CreateDocumentRequest struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	SourceURL       string `json:"source_url,omitempty"`
	Content         string `json:"content"`
}

// Document represents a document returned by the API.
type Document struct {
	ID              string `json:"id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	SourceURL       string `json:"source_url,omitempty"`
	EmbeddingStatus string `json:"embedding_status"`
	EmbeddingError  string `json:"embedding_error,omitempty"`
	ChunkCount      int    `json:"chunk_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// DocumentList represents a paginated document listing.
type DocumentList struct {
	Items   []Document `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

// DocumentStatus represents the embedding status of a document.
type DocumentStatus struct {
	ID              string `json:"id"`
	EmbeddingStatus string `json:"embedding_status"`
	EmbeddingError  string `json:"embedding_error,omitempty"`
	ChunkCount      int    `json:"chunk_count"`
}

// DocCmd creates the doc command group.
func DocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Manage documents",
		Long:  "Create, inspect, embed, and delete documents in a knowledge base.",
	}

	cmd.AddCommand(docAddCmd())
	cmd.AddCommand(docGetCmd())
	cmd.AddCommand(docListCmd())
	cmd.AddCommand(docStatusCmd())
	cmd.AddCommand(docEmbedCmd())
	cmd.AddCommand(docRetryCmd())
	cmd.AddCommand(docSourceCmd())
	cmd.AddCommand(docDeleteCmd())

	return cmd
}

func docAddCmd() *cobra.Command {
	var (
		knowledgeBaseID string
		title           string
		file            string
		sourceURL       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a document from a file or stdin",
		Long: `Adds a document to a knowledge base and queues it for embedding.

Examples:
  # Add from a file
  quarry doc add --kb kb-123 --file notes.md

  # Add from stdin with an explicit title
  cat README.md | quarry doc add --kb kb-123 --title "Project README"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocAdd(cmd, knowledgeBaseID, title, file, sourceURL, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&knowledgeBaseID, "kb", "k", "", "Knowledge base ID (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file (reads stdin if not set)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (defaults to the file name)")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "Original source URL of the document")
	_ = cmd.MarkFlagRequired("kb")

	return cmd
}

func runDocAdd(cmd *cobra.Command, knowledgeBaseID, title, file, sourceURL string, outputJSON bool) error {
	var content []byte
	var err error
	if file != "" {
		content, err = os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
	} else {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	if len(content) == 0 {
		return fmt.Errorf("document content is empty")
	}
	if title == "" {
		return fmt.Errorf("--title is required when reading from stdin")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := CreateDocumentRequest{
		KnowledgeBaseID: knowledgeBaseID,
		Title:           title,
		SourceURL:       sourceURL,
		Content:         string(content),
	}

	resp, err := api.Post("/documents", req)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Created document %s (%s)\n", doc.ID, doc.Title)
		fmt.Printf("Embedding status: %s\n", doc.EmbeddingStatus)
	}

	return nil
}

func docGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/documents/" + args[0])
			if err != nil {
				return fmt.Errorf("failed to get document: %w", err)
			}

			var doc Document
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(doc, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			printDocument(doc)
			return nil
		},
	}

	return cmd
}

func printDocument(doc Document) {
	fmt.Printf("ID:              %s\n", doc.ID)
	fmt.Printf("Title:           %s\n", doc.Title)
	fmt.Printf("Knowledge base:  %s\n", doc.KnowledgeBaseID)
	fmt.Printf("Status:          %s\n", doc.EmbeddingStatus)
	fmt.Printf("Chunks:          %d\n", doc.ChunkCount)
	if doc.SourceURL != "" {
		fmt.Printf("Source URL:      %s\n", doc.SourceURL)
	}
	if doc.EmbeddingError != "" {
		fmt.Printf("Last error:      %s\n", doc.EmbeddingError)
	}
	fmt.Printf("Created:         %s\n", doc.CreatedAt)
	fmt.Printf("Updated:         %s\n", doc.UpdatedAt)
}

func docListCmd() *cobra.Command {
	var (
		knowledgeBaseID string
		limit           int
		cursor          string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents in a knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/documents?knowledge_base_id=%s&limit=%d", knowledgeBaseID, limit)
			if cursor != "" {
				path += "&cursor=" + cursor
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}

			var list DocumentList
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(list.Items) == 0 {
				fmt.Println("No documents found.")
				return nil
			}

			for _, doc := range list.Items {
				fmt.Printf("%s  %-10s  %3d chunks  %s\n", doc.ID, doc.EmbeddingStatus, doc.ChunkCount, doc.Title)
			}
			if list.HasMore && list.Cursor != "" {
				fmt.Printf("\nMore documents available. Use --cursor %s\n", list.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&knowledgeBaseID, "kb", "k", "", "Knowledge base ID (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of documents")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	_ = cmd.MarkFlagRequired("kb")

	return cmd
}

func docStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show the embedding status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/documents/" + args[0] + "/status")
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			var status DocumentStatus
			if err := json.Unmarshal(resp.Data, &status); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(status, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("Status: %s (%d chunks)\n", status.EmbeddingStatus, status.ChunkCount)
			if status.EmbeddingError != "" {
				fmt.Printf("Error:  %s\n", status.EmbeddingError)
			}
			return nil
		},
	}

	return cmd
}

func docEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed <document-id>",
		Short: "Queue a document for embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Post("/documents/"+args[0]+"/embed", nil); err != nil {
				return fmt.Errorf("failed to queue embedding: %w", err)
			}

			fmt.Printf("Queued document %s for embedding\n", args[0])
			return nil
		},
	}

	return cmd
}

func docRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <document-id>",
		Short: "Retry embedding a failed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Post("/documents/"+args[0]+"/retry", nil); err != nil {
				return fmt.Errorf("failed to retry embedding: %w", err)
			}

			fmt.Printf("Queued document %s for retry\n", args[0])
			return nil
		},
	}

	return cmd
}

func docSourceCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "source <document-id>",
		Short: "Download the archived source of a document",
		Long:  "Fetches a short-lived download URL for the archived source text and downloads it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/documents/" + args[0] + "/source")
			if err != nil {
				return fmt.Errorf("failed to get source URL: %w", err)
			}

			var payload struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(resp.Data, &payload); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(payload, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if outputPath == "" {
				outputPath = args[0] + ".txt"
			}
			if err := api.DownloadFile(payload.URL, outputPath); err != nil {
				return fmt.Errorf("failed to download source: %w", err)
			}

			fmt.Printf("Downloaded source to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output file path (defaults to <document-id>.txt)")

	return cmd
}

func docDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <document-id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/documents/" + args[0]); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}

			fmt.Printf("Deleted document %s\n", args[0])
			return nil
		},
	}

	return cmd
}
