package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	return cmd
}

func TestLoad_RequiresAuthentication(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("url", "https://odoo.example.com"))

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication required")
}

func TestLoad_YoloRequiresUsername(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("url", "https://odoo.example.com"))
	require.NoError(t, cmd.Flags().Set("yolo", "true"))

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YOLO mode requires username")
}

func TestLoad_RejectsBadScheme(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("url", "ftp://odoo.example.com"))
	require.NoError(t, cmd.Flags().Set("api-key", "abc"))

	_, err := Load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with http")
}

func TestLoad_APIKeyPathSucceeds(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("url", "https://odoo.example.com"))
	require.NoError(t, cmd.Flags().Set("api-key", "abc123"))

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.True(t, cfg.UsesAPIKey())
	assert.False(t, cfg.UsesCredentials())
	assert.Equal(t, 20, cfg.DefaultLimit)
	assert.Equal(t, 100, cfg.MaxLimit)
}

func TestLoad_CredentialsPathSucceeds(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("url", "https://odoo.example.com"))
	require.NoError(t, cmd.Flags().Set("user", "alice"))
	require.NoError(t, cmd.Flags().Set("password", "secret"))

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.True(t, cfg.UsesCredentials())
}

func TestLoad_YoloWithUsernameAndAPIKeySucceeds(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set("url", "https://odoo.example.com"))
	require.NoError(t, cmd.Flags().Set("user", "alice"))
	require.NoError(t, cmd.Flags().Set("api-key", "abc123"))
	require.NoError(t, cmd.Flags().Set("yolo", "read"))

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, YoloRead, cfg.YoloMode)
}

func TestGetEndpointPaths(t *testing.T) {
	cfg := &Config{}
	paths := cfg.GetEndpointPaths()
	assert.Equal(t, "/xmlrpc/2/common", paths.Common)
	assert.Equal(t, "/mcp/models/{model}/permissions", paths.MCPModelPerms)
}
