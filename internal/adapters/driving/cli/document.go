package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentJSON bool

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents and their pipeline status",
	RunE:  runDocumentList,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	docs, err := documentStore.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if documentJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("  %s  %-14s  %-24s  %d chunks\n", d.ID, d.Status, d.Name, d.ChunkCount)
		if d.FailureReason != "" {
			cmd.Printf("      failed: %s\n", d.FailureReason)
		}
	}
	cmd.Printf("%d documents.\n", len(docs))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	cmd.Printf("Deleted %s.\n", args[0])
	return nil
}
