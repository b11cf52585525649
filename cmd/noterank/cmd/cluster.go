package cmd

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/noterank/noterank/internal/cluster"
)

func newClusterCmd() *cobra.Command {
	var kOverride int

	cmd := &cobra.Command{
		Use:   "cluster [path]",
		Short: "Partition passage embeddings into labeled topic clusters",
		Long: `Runs offline spherical k-means over every passage embedding for the
configured model, with K chosen by a round(sqrt(N/2)) heuristic (clamped
to [8, 128]) and a deterministic seed derived from the corpus
content hash. Drops and replaces all "kmeans"-method cluster rows
atomically.`,
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

			namer := cluster.Namer(cluster.FallbackNamer{})
			if cfg.Cluster.NameLLM && cfg.Embeddings.APIKey != "" {
				clientCfg := openai.DefaultConfig(cfg.Embeddings.APIKey)
				if cfg.Embeddings.APIBase != "" {
					clientCfg.BaseURL = cfg.Embeddings.APIBase
				}
				namer = cluster.NewLLMNamer(openai.NewClientWithConfig(clientCfg), cfg.Cluster.Model)
			}

			if err := cluster.Run(ctx, s, cluster.Options{
				Model: cfg.Embeddings.Model,
				K:     kOverride,
				Namer: namer,
			}); err != nil {
				return err
			}

			fmt.Fprintln(c.OutOrStdout(), "clustering complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&kOverride, "k", 0, "Cluster count override (default: round(sqrt(N/2)) clamped to [8, 128])")
	return cmd
}
