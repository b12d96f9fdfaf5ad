package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/config"
	"github.com/nfrund/chorus/internal/logging"
	"github.com/nfrund/chorus/internal/server"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	logger       *slog.Logger
	outputFormat string
	logLevel     string

	// fs backs the token cache and avatar uploads.
	fs afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "chorus",
	Short: "Chorus community chat client",
	Long: `Chorus is a command-line client for a SurrealDB-backed community chat.

Sign in once with "chorus login"; the token is cached under CHORUS_HOME.
Servers, channels, direct conversations, profiles and messages are then
managed with their own command groups, and "chorus serve" starts the HTTP
and WebSocket gateway for browser clients.

Use "chorus [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.New()
		logger = logging.NewWithWriter(cmd.ErrOrStderr(), os.Getenv("LOG_FORMAT"), logLevel)
		slog.SetDefault(logger)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel its context.
func Execute() {
	ctx, stop := server.SignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", output.FormatTable, "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", level, "Log level (debug, info, warn, error)")
}

// render prints v in the selected output format.
func render(cmd *cobra.Command, v any, table *output.Table) error {
	return output.Render(cmd.OutOrStdout(), outputFormat, v, table)
}
