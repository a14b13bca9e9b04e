package main

import (
	"github.com/spf13/cobra"

	"github.com/msmafra/sogeBot/bootstrap"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the module host and admin API",
	Long: `Start the sogeBot module host.

The server will:
  - Load configuration from sogebot.yaml (or --config)
  - Or load configuration from SOGEBOT_* environment variables
  - Open the settings database and load persisted module state
  - Resolve inter-module dependencies
  - Serve the admin HTTP API

Environment variables (for container deployments):
  SOGEBOT_DATABASE_DRIVER   - sqlite or memory (default: sqlite)
  SOGEBOT_DATABASE_DSN      - Database path (default: sogebot.db)
  SOGEBOT_SERVER_PORT       - Server port (default: 8080)
  SOGEBOT_DISABLE_MODULES   - Comma-separated modules to force off
  SOGEBOT_NODE_ROLE         - primary or secondary
  SOGEBOT_LOG_LEVEL         - debug, info, warn, error

Examples:
  sogebot serve
  sogebot serve --config /etc/sogebot/config.yaml
  sogebot serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.NewFromConfigFile(cfgFile, hotReload)
	if err != nil {
		return err
	}
	return app.Run()
}
