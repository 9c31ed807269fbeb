// Command odoo-mcp-bridge exposes a remote Odoo ERP instance to MCP clients:
// record search/read/write as tools and resources, plus higher-level
// business-process tools (quotations, manufacturing, purchasing,
// deliveries) built on top of them.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/access"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/logging"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/server"
)

// buildVersion is overridden at build time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

const defaultPermissionCacheTTL = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "odoo-mcp-bridge",
		Short:   "Bridge a remote Odoo ERP instance to MCP clients",
		Version: buildVersion,
		RunE:    runBridge,
	}
	config.BindFlags(cmd)
	return cmd
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	env := logging.EnvProduction
	if cfg.LogLevel == "debug" {
		env = logging.EnvDevelopment
	}
	logger := logging.New(env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	server.Version = buildVersion

	conn, err := odooclient.NewConnection(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Odoo connection: %w", err)
	}

	accessController := access.New(cfg, logger, defaultPermissionCacheTTL)

	srv := server.New(cfg, logger, conn, accessController)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
