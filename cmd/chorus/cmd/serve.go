package cmd

import (
	"errors"
	"fmt"

	"github.com/nfrund/chorus/internal/logging"
	"github.com/nfrund/chorus/internal/server"
	"github.com/spf13/cobra"
)

var originPatterns []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket gateway",
	Long: `Run the gateway for browser clients on SERVER_ADDR. It serves the REST
API under /api, sign-in under /auth, avatars and the live message stream at
/ws/messages. SIGINT or SIGTERM shuts it down gracefully.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.GetSessionSecret() == "" {
			return errors.New("serve needs SESSION_SECRET")
		}

		root, release := newRoot()
		defer release()

		srv := server.New(cfg, root,
			server.WithLogger(logger),
			server.WithOriginPatterns(originPatterns...),
		)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringSliceVar(&originPatterns, "allow-origin", nil, "Extra origin patterns allowed to open the WebSocket")
	rootCmd.AddCommand(serveCmd)
}
