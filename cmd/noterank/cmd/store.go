package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noterank/noterank/internal/store"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the local store",
	}

	cmd.AddCommand(newStoreInfoCmd())
	return cmd
}

func newStoreInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [path]",
		Short: "Print row counts and build state for the store",
		Args:  cobra.MaximumNArgs(1),
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

			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			fmt.Fprintf(out, "store path:       %s\n", cfg.Store.Path)
			fmt.Fprintf(out, "lexical backend:  %s\n", cfg.Search.LexicalBackend)
			fmt.Fprintf(out, "files:            %d\n", stats.FileCount)
			fmt.Fprintf(out, "passages:         %d\n", stats.PassageCount)
			fmt.Fprintf(out, "embeddings:       %d\n", stats.EmbeddingCount)
			fmt.Fprintf(out, "clusters:         %d\n", stats.ClusterCount)

			for _, k := range []struct {
				label string
				key   string
			}{
				{"embedding model", store.StateKeyIndexModel},
				{"embedding dims", store.StateKeyIndexDims},
				{"corpus hash", store.StateKeyCorpusHash},
				{"build stage", store.StateKeyBuildStage},
				{"build progress", store.StateKeyBuildEmbedded},
				{"build total", store.StateKeyBuildTotal},
				{"last build", store.StateKeyBuildTimestamp},
			} {
				v, ok, err := s.GetState(ctx, k.key)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "%-17s %s\n", k.label+":", v)
				}
			}

			return nil
		},
	}
}
