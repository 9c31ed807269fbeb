// transport.go — the REST transport beneath Controller: API-key headers for
// the direct auth path, lazy session-cookie authentication (with one
// automatic re-auth-and-retry on a 401) for the credentials path. Grounded
// on tests/test_access_control.py's TestSessionAuth cases.
package access

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/apierror"
)

type restEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// makeRequest issues a method request against path on the ERP's MCP REST API,
// authenticating via API key or session cookie as configured, and unwraps
// the {"success": ..., "data": ...} envelope every MCP REST endpoint uses.
// The returned bytes are the raw "data" payload, left for the caller to
// pick apart with gjson rather than a throwaway struct per endpoint shape.
func (c *Controller) makeRequest(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	req := c.client.R().SetContext(ctx)

	if c.cfg.UsesAPIKey() {
		req.SetHeader("X-API-Key", c.cfg.APIKey)
		if c.cfg.Database != "" {
			req.SetHeader("X-Odoo-Database", c.cfg.Database)
		}
	} else if c.cfg.UsesCredentials() {
		sessionID, err := c.ensureSession(ctx)
		if err != nil {
			return nil, err
		}
		req.SetHeader("Cookie", "session_id="+sessionID)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, apierror.Connection("request to %s failed: %v", path, err)
	}

	if resp.StatusCode() == 401 {
		if c.cfg.UsesAPIKey() {
			return nil, apierror.Authentication("API key rejected")
		}
		// Expired session: re-authenticate once and retry the request.
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		sessionID, err := c.ensureSession(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = req.SetHeader("Cookie", "session_id="+sessionID).Execute(method, path)
		if err != nil {
			return nil, apierror.Connection("request to %s failed: %v", path, err)
		}
	}

	if resp.StatusCode() == 404 {
		return nil, apierror.NotFound("endpoint not found: %s", path)
	}
	if resp.StatusCode() >= 400 {
		return nil, apierror.Connection("request to %s failed with status %d", path, resp.StatusCode())
	}

	var envelope restEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, apierror.Connection("malformed response from %s: %v", path, err)
	}
	if !envelope.Success {
		message := "unknown error"
		if envelope.Error != nil {
			message = envelope.Error.Message
		}
		return nil, apierror.Connection("API error: %s", message)
	}

	return envelope.Data, nil
}

type sessionAuthResponse struct {
	Result *struct {
		UID int `json:"uid"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ensureSession returns the current session cookie, authenticating lazily
// on first use.
func (c *Controller) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.sessionID != "" {
		sessionID := c.sessionID
		c.mu.Unlock()
		return sessionID, nil
	}
	c.mu.Unlock()
	return c.authenticateSession(ctx)
}

// authenticateSession performs the ERP's JSON-RPC web session login and
// extracts the resulting session_id cookie.
func (c *Controller) authenticateSession(ctx context.Context) (string, error) {
	paths := c.cfg.GetEndpointPaths()

	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "call",
		"params": map[string]interface{}{
			"db":       c.cfg.Database,
			"login":    c.cfg.Username,
			"password": c.cfg.Password,
		},
	}

	resp, err := c.client.R().SetContext(ctx).SetBody(payload).Post(paths.WebSession)
	if err != nil {
		return "", apierror.Connection("session authentication failed: %v", err)
	}

	var parsed sessionAuthResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", apierror.Connection("session authentication failed: malformed response: %v", err)
	}
	if parsed.Error != nil {
		return "", apierror.Authentication("session authentication failed: invalid credentials: %s", parsed.Error.Message)
	}

	sessionID := extractSessionCookie(resp.Header().Get("Set-Cookie"))
	if sessionID == "" {
		return "", apierror.Connection("session authentication failed: server returned no session cookie")
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()

	return sessionID, nil
}

func extractSessionCookie(setCookie string) string {
	for _, part := range strings.Split(setCookie, ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "session_id="); ok {
			return value
		}
	}
	return ""
}
