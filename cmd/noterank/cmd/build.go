package cmd

import (
	"fmt"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/noterank/noterank/internal/buildlog"
	"github.com/noterank/noterank/internal/cluster"
	"github.com/noterank/noterank/internal/embed"
	"github.com/noterank/noterank/internal/ingest"
	"github.com/noterank/noterank/internal/store"
)

func newBuildCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Run ingest, embed, and cluster in one pass",
		Long: `Runs the full offline pipeline under a single build-lock
acquisition: scan and chunk the corpus, embed every passage lacking a
current-model vector, then recompute topic clusters from the result.`,
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

			out := c.OutOrStdout()
			reporter := buildlog.New(out)

			if err := s.SetState(ctx, store.StateKeyBuildStage, store.BuildStageScanning); err != nil {
				return err
			}
			reporter.Stage("ingest")
			ingestRes, err := ingest.Run(ctx, s, ingest.Options{
				Root:      cfg.Paths.Root,
				Extension: cfg.Paths.Extension,
				Strict:    strict,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ingest:  scanned %d files (%d changed, %d skipped, %d failed), %d passages written\n",
				ingestRes.FilesScanned, ingestRes.FilesChanged, ingestRes.FilesSkipped, ingestRes.FilesFailed, ingestRes.Passages)

			embedder, err := newEmbedder(cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			reporter.Stage("embed")
			embedRes, err := embed.Run(ctx, s, embedder, embed.BuildOptions{
				BatchSize: cfg.Embeddings.BatchSize,
				Progress: func(done, total int) {
					reporter.Progress(done, total, "passages embedded")
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "embed:   embedded %d/%d passages (%d already current) with model %q\n",
				embedRes.Embedded, embedRes.TotalPassages, embedRes.Skipped, embedder.ModelName())

			if err := s.SetState(ctx, store.StateKeyBuildStage, store.BuildStageClustering); err != nil {
				return err
			}
			namer := cluster.Namer(cluster.FallbackNamer{})
			if cfg.Cluster.NameLLM && cfg.Embeddings.APIKey != "" {
				clientCfg := openai.DefaultConfig(cfg.Embeddings.APIKey)
				if cfg.Embeddings.APIBase != "" {
					clientCfg.BaseURL = cfg.Embeddings.APIBase
				}
				namer = cluster.NewLLMNamer(openai.NewClientWithConfig(clientCfg), cfg.Cluster.Model)
			}
			reporter.Stage("cluster")
			if err := cluster.Run(ctx, s, cluster.Options{Model: cfg.Embeddings.Model, Namer: namer}); err != nil {
				return err
			}
			fmt.Fprintln(out, "cluster: complete")

			if err := s.SetState(ctx, store.StateKeyBuildStage, store.BuildStageComplete); err != nil {
				return err
			}
			if err := s.SetState(ctx, store.StateKeyBuildTimestamp, strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail a file on invalid UTF-8 instead of skipping it with a warning")
	return cmd
}
