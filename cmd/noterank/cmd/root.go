// Package cmd provides the noterank build CLI: offline ingest, embed, and
// cluster commands plus read-only store introspection. The online search
// surface is served by a separate HTTP layer, so no "serve" command lives
// here.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/noterank/noterank/internal/logging"
	"github.com/noterank/noterank/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the noterank CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "noterank",
		Short:   "Offline retrieval-and-relatedness build tooling for Markdown corpora",
		Version: version.Version,
		Long: `noterank indexes a corpus of long-form Markdown notes into a single
SQLite store and builds the hybrid search, clustering, and relatedness
data it serves at query time.

Writes only happen during the offline "ingest", "embed", and "cluster"
build phases (or "build", which runs all three in order). Everything
else is a read-only query against the resulting store snapshot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if debugMode {
				logger, cleanup, err := logging.Setup(logging.DebugConfig())
				if err != nil {
					return fmt.Errorf("failed to set up debug logging: %w", err)
				}
				loggingCleanup = cleanup
				slog.SetDefault(logger)
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}

	rootCmd.SetVersionTemplate("noterank version {{.Version}}\n")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.noterank/noterank.log")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newEmbedCmd())
	rootCmd.AddCommand(newClusterCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newStoreCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command and returns the process exit code:
// 0 success, 2 usage error, 3 I/O error, 4 store/consistency error.
func Execute() int {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return exitCode(err)
}
