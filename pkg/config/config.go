// Package config is the sole source of truth for the bridge's runtime
// parameters. It rejects contradictory combinations before any other
// component is constructed.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// YoloMode controls client-side bypass of the ERP's MCP access-control
// allowlist.
type YoloMode string

const (
	YoloOff  YoloMode = "off"
	YoloRead YoloMode = "read"
	YoloTrue YoloMode = "true"
)

// Transport selects which MCP wire transport the Server exposes.
type Transport string

const (
	TransportStdio           Transport = "stdio"
	TransportStreamableHTTP  Transport = "streamable-http"
)

// Config holds every parameter needed to run the bridge. It is built once by
// Load and never mutated afterward; the one runtime exception (clearing an
// invalid locale) is tracked by Connection's session state instead, so a
// Config value stays immutable for its whole lifetime.
type Config struct {
	URL      string `validate:"required"`
	APIKey   string
	Username string
	Password string
	Database string

	DefaultLimit int `validate:"min=1"`
	MaxLimit     int `validate:"min=1"`

	LogLevel string `validate:"oneof=debug info warn error"`
	Locale   string

	YoloMode YoloMode `validate:"oneof=off read true"`

	Transport Transport `validate:"oneof=stdio streamable-http"`
	Host      string
	Port      int
}

// EndpointPaths is the fixed map of ERP endpoint paths the bridge talks to.
type EndpointPaths struct {
	DB            string
	Common        string
	Object        string
	WebSession    string
	MCPModels     string
	MCPModelPerms string // contains the literal "{model}" placeholder
	MCPSystemInfo string
	Health        string
}

// GetEndpointPaths returns the fixed ERP endpoint map described by the
// bridge's external interface.
func (c *Config) GetEndpointPaths() EndpointPaths {
	return EndpointPaths{
		DB:            "/xmlrpc/2/db",
		Common:        "/xmlrpc/2/common",
		Object:        "/xmlrpc/2/object",
		WebSession:    "/web/session/authenticate",
		MCPModels:     "/mcp/models",
		MCPModelPerms: "/mcp/models/{model}/permissions",
		MCPSystemInfo: "/mcp/system/info",
		Health:        "/mcp/health",
	}
}

// UsesAPIKey reports whether the configured auth path is API-key based.
func (c *Config) UsesAPIKey() bool {
	return c.APIKey != ""
}

// UsesCredentials reports whether the configured auth path is
// username+password based.
func (c *Config) UsesCredentials() bool {
	return c.Username != "" && c.Password != ""
}

var validate = validator.New()

// Load builds a Config from cobra flags bound through viper, after first
// loading an optional .env file. Precedence, highest first: CLI flag >
// environment variable > .env file > default.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: failed to load env file %q: %w", envFile, err)
		}
	}

	v.SetEnvPrefix("")
	v.AutomaticEnv()

	bind := func(flag, env string) {
		_ = v.BindPFlag(flag, cmd.Flags().Lookup(flag))
		_ = v.BindEnv(flag, env)
	}
	bind("url", "ODOO_URL")
	bind("db", "ODOO_DB")
	bind("api-key", "ODOO_API_KEY")
	bind("user", "ODOO_USER")
	bind("password", "ODOO_PASSWORD")
	bind("log-level", "ODOO_MCP_LOG_LEVEL")
	bind("default-limit", "ODOO_MCP_DEFAULT_LIMIT")
	bind("max-limit", "ODOO_MCP_MAX_LIMIT")
	bind("locale", "ODOO_LOCALE")
	bind("yolo", "ODOO_YOLO")
	bind("transport", "ODOO_MCP_TRANSPORT")
	bind("host", "ODOO_MCP_HOST")
	bind("port", "ODOO_MCP_PORT")

	v.SetDefault("log-level", "info")
	v.SetDefault("default-limit", 20)
	v.SetDefault("max-limit", 100)
	v.SetDefault("yolo", string(YoloOff))
	v.SetDefault("transport", string(TransportStdio))
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)

	cfg := &Config{
		URL:          v.GetString("url"),
		APIKey:       v.GetString("api-key"),
		Username:     v.GetString("user"),
		Password:     v.GetString("password"),
		Database:     v.GetString("db"),
		DefaultLimit: v.GetInt("default-limit"),
		MaxLimit:     v.GetInt("max-limit"),
		LogLevel:     strings.ToLower(v.GetString("log-level")),
		Locale:       v.GetString("locale"),
		YoloMode:     YoloMode(strings.ToLower(v.GetString("yolo"))),
		Transport:    Transport(strings.ToLower(v.GetString("transport"))),
		Host:         v.GetString("host"),
		Port:         v.GetInt("port"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return errors.New("ODOO_URL must start with http:// or https://")
	}

	if c.YoloMode != YoloOff {
		if c.Username == "" {
			return errors.New("YOLO mode requires username")
		}
	} else {
		if !c.UsesAPIKey() && !c.UsesCredentials() {
			return errors.New("Authentication required")
		}
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// BindFlags registers every CLI flag the bridge accepts on cmd.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Odoo base URL (ODOO_URL)")
	cmd.Flags().String("db", "", "Odoo database name (ODOO_DB)")
	cmd.Flags().String("api-key", "", "Odoo API key (ODOO_API_KEY)")
	cmd.Flags().String("user", "", "Odoo username (ODOO_USER)")
	cmd.Flags().String("password", "", "Odoo password (ODOO_PASSWORD)")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error (ODOO_MCP_LOG_LEVEL)")
	cmd.Flags().Int("default-limit", 0, "Default record limit (ODOO_MCP_DEFAULT_LIMIT)")
	cmd.Flags().Int("max-limit", 0, "Maximum record limit (ODOO_MCP_MAX_LIMIT)")
	cmd.Flags().String("locale", "", "Odoo locale, e.g. es_ES (ODOO_LOCALE)")
	cmd.Flags().String("yolo", "", "YOLO mode: off|read|true (ODOO_YOLO)")
	cmd.Flags().String("transport", "", "MCP transport: stdio|streamable-http (ODOO_MCP_TRANSPORT)")
	cmd.Flags().String("host", "", "Listen host for streamable-http (ODOO_MCP_HOST)")
	cmd.Flags().Int("port", 0, "Listen port for streamable-http (ODOO_MCP_PORT)")
	cmd.Flags().String("env-file", "", "Path to a .env file to load before other sources")
	cmd.Flags().String("token", "", "Legacy MCP module token (deprecated, prefer --api-key)")
}
