// Package server wires every component of the bridge together: it opens
// the Odoo connection, registers every MCP tool and resource, and runs the
// chosen wire transport until the process is asked to stop. Grounded on
// original_source/mcp_server_odoo/server.py's odoo_lifespan async context
// manager, translated to Go's synchronous defer-based cleanup, and on
// stacklok-toolhive's cmd/thv/app/mcp_serve.go for the mcp-go
// server/transport wiring.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/access"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/resources"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/tools"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/workflow"
)

// Version is the bridge's reported version, overridden at build time via
// -ldflags "-X .../pkg/server.Version=...".
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// Server owns every long-lived component and the lifetime of the Odoo
// connection underneath them.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	conn      *odooclient.Connection
	access    *access.Controller
	resources *resources.Handler
	tools     *tools.Handler
	workflow  *workflow.Handler

	mcpServer *mcpserver.MCPServer
}

// New builds a Server from its already-constructed components. conn is not
// yet opened; Run opens it and closes it on every exit path.
func New(cfg *config.Config, logger *zap.Logger, conn *odooclient.Connection, accessController *access.Controller) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		conn:      conn,
		access:    accessController,
		resources: resources.New(conn, accessController, cfg),
		tools:     tools.New(conn, accessController, cfg, logger),
		workflow:  workflow.New(conn, accessController, cfg, logger),
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"odoo-mcp-bridge",
		Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(true, false),
		mcpserver.WithLogging(),
	)

	s.tools.Register(s.mcpServer)
	s.workflow.Register(s.mcpServer)
	s.registerResourceTemplates()

	return s
}

// registerResourceTemplates wires every odoo:// URI shape ResourceHandler
// understands to a single dynamic resolver, since the actual model name and
// record id are only known at request time.
func (s *Server) registerResourceTemplates() {
	templates := []struct {
		uriTemplate string
		name        string
		description string
	}{
		{"odoo://{model}/record/{id}", "odoo-record", "Fetch a single Odoo record"},
		{"odoo://{model}/search{?domain,fields,limit,offset,order}", "odoo-search", "Search Odoo records matching a domain"},
		{"odoo://{model}/browse{?ids,fields}", "odoo-browse", "Fetch several Odoo records by id"},
		{"odoo://{model}/count{?domain}", "odoo-count", "Count Odoo records matching a domain"},
		{"odoo://{model}/fields", "odoo-fields", "List an Odoo model's field metadata"},
	}

	for _, t := range templates {
		template := mcp.NewResourceTemplate(t.uriTemplate, t.name,
			mcp.WithTemplateDescription(t.description),
			mcp.WithTemplateMIMEType("text/plain"),
		)
		s.mcpServer.AddResourceTemplate(template, s.readResource)
	}
}

func (s *Server) readResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := s.resources.Resolve(ctx, request.Params.URI)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: request.Params.URI, MIMEType: "text/plain", Text: text},
	}, nil
}

// Run opens the Odoo connection, starts the configured transport, and
// blocks until ctx is cancelled or a termination signal arrives. The
// connection is always closed on the way out, mirroring the teacher's
// lifespan context manager with a synchronous defer.
func (s *Server) Run(ctx context.Context) error {
	if err := s.conn.Open(ctx); err != nil {
		return fmt.Errorf("server: failed to connect to Odoo: %w", err)
	}
	defer s.conn.Disconnect()

	s.logger.Info("connected to Odoo",
		zap.String("database", s.conn.Database()),
		zap.String("server_version", s.conn.ServerVersion()),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	switch s.cfg.Transport {
	case config.TransportStdio:
		return s.runStdio(runCtx, sigChan)
	case config.TransportStreamableHTTP:
		return s.runStreamableHTTP(runCtx, cancel, sigChan)
	default:
		return fmt.Errorf("server: unsupported transport %q", s.cfg.Transport)
	}
}

func (s *Server) runStdio(ctx context.Context, sigChan chan os.Signal) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- mcpserver.ServeStdio(s.mcpServer)
	}()

	select {
	case <-sigChan:
		s.logger.Info("received shutdown signal, stopping stdio transport")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server: stdio transport failed: %w", err)
		}
		return nil
	}
}

func (s *Server) runStreamableHTTP(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) error {
	streamableServer := mcpserver.NewStreamableHTTPServer(
		s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(func(_ context.Context, _ *http.Request) context.Context {
			return ctx
		}),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamableServer)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting streamable-http transport", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case <-sigChan:
		s.logger.Info("received shutdown signal, stopping streamable-http transport")
	case <-ctx.Done():
	case err := <-errChan:
		cancel()
		if err != nil {
			return fmt.Errorf("server: streamable-http transport failed: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

type healthConnection struct {
	Connected bool   `json:"connected"`
	Database  string `json:"database,omitempty"`
}

type healthResponse struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Connection healthConnection `json:"connection"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.conn.Authenticated()
	status := "healthy"
	if !connected {
		status = "unhealthy"
	}

	resp := healthResponse{
		Status:  status,
		Version: Version,
		Connection: healthConnection{
			Connected: connected,
			Database:  s.conn.Database(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if !connected {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
