package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noterank/noterank/internal/buildlog"
	"github.com/noterank/noterank/internal/embed"
)

func newEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed [path]",
		Short: "Embed every passage lacking a vector for the configured model",
		Long: `Runs the configured embedder adapter (local static backend by
default, or a remote OpenAI-compatible API when configured) over every
passage that has no embedding for the current model, resuming where a
previous interrupted run left off.`,
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

			embedder, err := newEmbedder(cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			ctx, cancel := buildContext()
			defer cancel()

			reporter := buildlog.New(c.OutOrStdout())
			reporter.Stage("embed")
			res, err := embed.Run(ctx, s, embedder, embed.BuildOptions{
				BatchSize: cfg.Embeddings.BatchSize,
				Progress: func(done, total int) {
					reporter.Progress(done, total, "passages embedded")
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "embedded %d/%d passages (%d already current) with model %q\n",
				res.Embedded, res.TotalPassages, res.Skipped, embedder.ModelName())
			return nil
		},
	}

	return cmd
}
