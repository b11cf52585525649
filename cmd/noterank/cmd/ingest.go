package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noterank/noterank/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Scan a corpus and chunk it into passages",
		Long: `Walks the given directory (default: current directory) for files
matching the configured extension, splits each into passages at ATX
heading boundaries, and upserts changed files into the store. Unchanged
files (same content hash) are skipped entirely.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root, err := resolveCorpusRoot(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			s, cleanup, err := openStoreForBuild(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := buildContext()
			defer cancel()

			res, err := ingest.Run(ctx, s, ingest.Options{
				Root:      cfg.Paths.Root,
				Extension: cfg.Paths.Extension,
				Strict:    strict,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(),
				"scanned %d files (%d changed, %d skipped, %d failed), %d passages written\n",
				res.FilesScanned, res.FilesChanged, res.FilesSkipped, res.FilesFailed, res.Passages)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail a file on invalid UTF-8 instead of skipping it with a warning")
	return cmd
}
