package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// KnowledgeBase represents a knowledge base returned by the API.
type KnowledgeBase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// KBCmd creates the kb command group.
func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge bases",
	}

	cmd.AddCommand(kbCreateCmd())
	cmd.AddCommand(kbListCmd())
	cmd.AddCommand(kbGetCmd())
	cmd.AddCommand(kbEmbedCmd())
	cmd.AddCommand(kbDeleteCmd())

	return cmd
}

func kbCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := map[string]string{
				"name":        args[0],
				"description": description,
			}

			resp, err := api.Post("/knowledge-bases", req)
			if err != nil {
				return fmt.Errorf("failed to create knowledge base: %w", err)
			}

			var kb KnowledgeBase
			if err := json.Unmarshal(resp.Data, &kb); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(kb, "", "  ")
				fmt.Println(string(output))
			} else {
				fmt.Printf("Created knowledge base %s (%s)\n", kb.ID, kb.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Knowledge base description")

	return cmd
}

func kbListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/knowledge-bases")
			if err != nil {
				return fmt.Errorf("failed to list knowledge bases: %w", err)
			}

			var kbs []KnowledgeBase
			if err := json.Unmarshal(resp.Data, &kbs); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(kbs, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(kbs) == 0 {
				fmt.Println("No knowledge bases found.")
				return nil
			}

			for _, kb := range kbs {
				line := fmt.Sprintf("%s  %s", kb.ID, kb.Name)
				if kb.Description != "" {
					line += "  (" + kb.Description + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	return cmd
}

func kbGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <knowledge-base-id>",
		Short: "Show a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/knowledge-bases/" + args[0])
			if err != nil {
				return fmt.Errorf("failed to get knowledge base: %w", err)
			}

			var kb KnowledgeBase
			if err := json.Unmarshal(resp.Data, &kb); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(kb, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("ID:          %s\n", kb.ID)
			fmt.Printf("Name:        %s\n", kb.Name)
			if kb.Description != "" {
				fmt.Printf("Description: %s\n", kb.Description)
			}
			fmt.Printf("Created:     %s\n", kb.CreatedAt)
			return nil
		},
	}

	return cmd
}

func kbEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed <knowledge-base-id>",
		Short: "Re-embed every document in a knowledge base",
		Long:  "Queues a background job that re-chunks and re-embeds all documents in the knowledge base.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/knowledge-bases/"+args[0]+"/embed", nil)
			if err != nil {
				return fmt.Errorf("failed to queue embedding: %w", err)
			}

			var payload struct {
				JobID string `json:"job_id"`
			}
			if err := json.Unmarshal(resp.Data, &payload); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			fmt.Printf("Queued embedding job %s\n", payload.JobID)
			return nil
		},
	}

	return cmd
}

func kbDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <knowledge-base-id>",
		Short: "Delete a knowledge base and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/knowledge-bases/" + args[0]); err != nil {
				return fmt.Errorf("failed to delete knowledge base: %w", err)
			}

			fmt.Printf("Deleted knowledge base %s\n", args[0])
			return nil
		},
	}

	return cmd
}
