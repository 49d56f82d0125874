package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra-cli/internal/core/ports/driving"
)

var ingestMime string

var ingestCmd = &cobra.Command{
	Use:   "ingest [patterns...]",
	Short: "Ingest documents into the vector index",
	Long: `Reads the files matched by the glob patterns, chunks and embeds
them, and writes the vectors to the active backend.

Patterns support ** globs, e.g. "docs/**/*.md". Each document is
processed independently: a failing file is reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMime, "mime", "", "media type override for all files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	files, err := expandPatterns(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cmd.Println("No files matched.")
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	var failed int
	for _, path := range files {
		if err := ingestFile(cmd, path); err != nil {
			failed++
			cmd.PrintErrf("  %s: %v\n", path, err)
		}
		_ = bar.Add(1)
	}

	cmd.Printf("Ingested %d of %d files.\n", len(files)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d files failed", failed)
	}
	return nil
}

func ingestFile(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc, err := ingestService.Ingest(cmd.Context(), driving.IngestRequest{
		Name: filepath.Base(path),
		Mime: ingestMime,
		Text: string(data),
		Metadata: map[string]any{
			"path": path,
		},
	})
	if err != nil {
		return err
	}
	cmd.Printf("  %s -> %s (%d chunks)\n", path, doc.ID, doc.ChunkCount)
	return nil
}

// expandPatterns resolves the glob patterns to a deduplicated file list.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		// A non-glob argument is taken as a literal path.
		if matches == nil {
			if _, statErr := os.Stat(pattern); statErr == nil {
				matches = []string{pattern}
			}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
