package access

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
)

func newTestController(t *testing.T, srv *httptest.Server, cfg *config.Config) *Controller {
	t.Helper()
	cfg.URL = srv.URL
	c := New(cfg, zap.NewNop(), 50*time.Millisecond)
	return c
}

func apiKeyConfig() *config.Config {
	return &config.Config{APIKey: "test-key", Database: "testdb"}
}

func jsonResponse(w http.ResponseWriter, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestGetEnabledModels_CachesAfterFirstCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"models": []map[string]interface{}{
					{"model": "res.partner", "name": "Contact"},
					{"model": "res.users", "name": "Users"},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	models, err := c.GetEnabledModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)
	assert.Equal(t, "res.partner", models[0].Model)

	_, err = c.GetEnabledModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsModelEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"models": []map[string]interface{}{
					{"model": "res.partner", "name": "Contact"},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	enabled, err := c.IsModelEnabled(context.Background(), "res.partner")
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = c.IsModelEnabled(context.Background(), "account.move")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestCheckOperationAllowed_DeniedModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"model":      "res.partner",
				"enabled":    true,
				"operations": map[string]interface{}{"read": true, "write": false, "create": false, "unlink": false},
			},
		})
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	allowed, _, err := c.CheckOperationAllowed(context.Background(), "res.partner", "read")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, msg, err := c.CheckOperationAllowed(context.Background(), "res.partner", "write")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, msg, "not allowed")
}

func TestCheckOperationAllowed_ModelDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"model": "res.partner", "enabled": false, "operations": map[string]interface{}{}},
		})
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	allowed, msg, err := c.CheckOperationAllowed(context.Background(), "res.partner", "read")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, msg, "not enabled for MCP access")
}

func TestCheckOperationAllowed_YoloTrueBypassesEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("YOLO true mode must never call the REST API")
	}))
	defer srv.Close()

	cfg := apiKeyConfig()
	cfg.YoloMode = config.YoloTrue
	c := newTestController(t, srv, cfg)

	allowed, _, err := c.CheckOperationAllowed(context.Background(), "res.partner", "write")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckOperationAllowed_YoloReadOnlyBypassesReads(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"model": "res.partner", "enabled": true, "operations": map[string]interface{}{"write": false}},
		})
	}))
	defer srv.Close()

	cfg := apiKeyConfig()
	cfg.YoloMode = config.YoloRead
	c := newTestController(t, srv, cfg)

	allowed, _, err := c.CheckOperationAllowed(context.Background(), "res.partner", "read")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, calls)

	allowed, _, err = c.CheckOperationAllowed(context.Background(), "res.partner", "write")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, calls)
}

func TestMakeRequest_APIKeyRejectedOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	_, err := c.GetEnabledModels(context.Background())
	assert.ErrorContains(t, err, "API key rejected")
}

func TestMakeRequest_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	_, err := c.GetEnabledModels(context.Background())
	assert.ErrorContains(t, err, "endpoint not found")
}

func TestSessionAuth_AuthenticatesLazilyThenReusesCookie(t *testing.T) {
	sessionCalls, restCalls := 0, 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/web/session/authenticate":
			sessionCalls++
			w.Header().Set("Set-Cookie", "session_id=abc123; Path=/")
			jsonResponse(w, map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": map[string]interface{}{"uid": 2}})
		default:
			restCalls++
			assert.Equal(t, "session_id=abc123", r.Header.Get("Cookie"))
			jsonResponse(w, map[string]interface{}{"success": true, "data": map[string]interface{}{"models": []map[string]interface{}{}}})
		}
	}))
	defer srv.Close()

	cfg := &config.Config{Username: "admin", Password: "admin", Database: "testdb"}
	c := newTestController(t, srv, cfg)

	_, err := c.GetEnabledModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sessionCalls)
	assert.Equal(t, 1, restCalls)

	c.ClearCache()
	_, err = c.GetEnabledModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sessionCalls, "second request should reuse the existing session cookie")
	assert.Equal(t, 2, restCalls)
}

func TestFilterEnabledModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"models": []map[string]interface{}{
					{"model": "res.partner", "name": "Contact"},
					{"model": "res.users", "name": "Users"},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestController(t, srv, apiKeyConfig())

	filtered, err := c.FilterEnabledModels(context.Background(), []string{"res.partner", "account.move", "res.users"})
	require.NoError(t, err)
	assert.Equal(t, []string{"res.partner", "res.users"}, filtered)
}
