// Package access talks to the ERP's own MCP module over REST to decide
// which models and operations a caller may use. Grounded on
// tests/test_access_control.py's AccessController contract (there was no
// access_control.py in the retrieved original source, only its test suite,
// so this package is built directly from the behavior those tests pin
// down), and on the teacher's use of go.uber.org/zap for structured
// logging and functional construction options.
package access

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/apierror"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
)

// ModelSummary is one entry of the ERP's /mcp/models listing.
type ModelSummary struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

// ModelPermissions is the per-model operation allowlist reported by
// /mcp/models/{model}/permissions.
type ModelPermissions struct {
	Model     string
	Enabled   bool
	CanRead   bool
	CanWrite  bool
	CanCreate bool
	CanUnlink bool
}

// CanPerform reports whether operation op is allowed. "delete" is accepted
// as an alias for "unlink".
func (p ModelPermissions) CanPerform(op string) bool {
	switch op {
	case "read":
		return p.CanRead
	case "write":
		return p.CanWrite
	case "create":
		return p.CanCreate
	case "unlink", "delete":
		return p.CanUnlink
	default:
		return false
	}
}

const (
	modelsCacheKey    = "models"
	permCacheKeyFmt   = "perm:%s"
	defaultCacheTTL   = 5 * time.Minute
	defaultHTTPTimeout = 30 * time.Second
)

// Controller enforces the ERP's MCP model/operation allowlist, or bypasses
// it entirely/partially under YOLO mode.
type Controller struct {
	cfg    *config.Config
	logger *zap.Logger
	client *resty.Client
	cache  *cache.Cache

	mu        sync.Mutex
	sessionID string
}

// New builds a Controller for cfg. ttl of zero selects the default 5 minute
// permission cache lifetime.
func New(cfg *config.Config, logger *zap.Logger, ttl time.Duration) *Controller {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if !cfg.UsesAPIKey() && !cfg.UsesCredentials() {
		logger.Warn("access controller configured without any authentication")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(defaultHTTPTimeout).
		SetCookieJar(nil)

	return &Controller{
		cfg:    cfg,
		logger: logger,
		client: client,
		cache:  cache.New(ttl, ttl*2),
	}
}

// ClearCache discards every cached permission/model-list entry.
func (c *Controller) ClearCache() {
	c.cache.Flush()
}

// bypassRead reports whether YOLO mode permits skipping the allowlist for
// read-only operations.
func (c *Controller) bypassRead() bool {
	return c.cfg.YoloMode == config.YoloRead || c.cfg.YoloMode == config.YoloTrue
}

// bypassAll reports whether YOLO mode permits skipping the allowlist
// entirely, including writes.
func (c *Controller) bypassAll() bool {
	return c.cfg.YoloMode == config.YoloTrue
}

// GetEnabledModels returns the ERP's full MCP-enabled model list, cached.
func (c *Controller) GetEnabledModels(ctx context.Context) ([]ModelSummary, error) {
	if cached, ok := c.cache.Get(modelsCacheKey); ok {
		return cached.([]ModelSummary), nil
	}

	paths := c.cfg.GetEndpointPaths()
	data, err := c.makeRequest(ctx, http.MethodGet, paths.MCPModels, nil)
	if err != nil {
		return nil, err
	}

	rawModels := gjson.GetBytes(data, "models").Array()
	models := make([]ModelSummary, 0, len(rawModels))
	for _, entry := range rawModels {
		models = append(models, ModelSummary{
			Model: entry.Get("model").String(),
			Name:  entry.Get("name").String(),
		})
	}

	c.cache.SetDefault(modelsCacheKey, models)
	return models, nil
}

// IsModelEnabled reports whether model appears in the enabled models list.
func (c *Controller) IsModelEnabled(ctx context.Context, model string) (bool, error) {
	models, err := c.GetEnabledModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Model == model {
			return true, nil
		}
	}
	return false, nil
}

// GetModelPermissions fetches model's operation allowlist, cached.
func (c *Controller) GetModelPermissions(ctx context.Context, model string) (*ModelPermissions, error) {
	cacheKey := fmt.Sprintf(permCacheKeyFmt, model)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*ModelPermissions), nil
	}

	paths := c.cfg.GetEndpointPaths()
	path := strings.Replace(paths.MCPModelPerms, "{model}", model, 1)
	data, err := c.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(data)
	perms := &ModelPermissions{Model: model}
	if v := parsed.Get("model"); v.Exists() {
		perms.Model = v.String()
	}
	perms.Enabled = parsed.Get("enabled").Bool()
	perms.CanRead = parsed.Get("operations.read").Bool()
	perms.CanWrite = parsed.Get("operations.write").Bool()
	perms.CanCreate = parsed.Get("operations.create").Bool()
	perms.CanUnlink = parsed.Get("operations.unlink").Bool()

	c.cache.SetDefault(cacheKey, perms)
	return perms, nil
}

// CheckOperationAllowed reports whether op is allowed on model, along with a
// human-readable reason when it is not. It never returns an error for an
// access decision itself — only for a failed REST call — so callers at the
// handler edge decide how to wrap a "false" result into a typed error.
func (c *Controller) CheckOperationAllowed(ctx context.Context, model, op string) (bool, string, error) {
	if c.bypassAll() || (c.bypassRead() && op == "read") {
		return true, "", nil
	}
	if c.bypassRead() {
		return false, fmt.Sprintf("Operation '%s' not allowed for model '%s' in read-only YOLO mode", op, model), nil
	}

	perms, err := c.GetModelPermissions(ctx, model)
	if err != nil {
		return false, "", err
	}
	if !perms.Enabled {
		return false, fmt.Sprintf("Model '%s' is not enabled for MCP access", model), nil
	}
	if !perms.CanPerform(op) {
		return false, fmt.Sprintf("Operation '%s' not allowed for model '%s'", op, model), nil
	}
	return true, "", nil
}

// ValidateModelAccess is the handler-edge entry point: it converts a denied
// CheckOperationAllowed result into an apierror.Error, and a REST failure
// into an apierror.Connection error.
func (c *Controller) ValidateModelAccess(ctx context.Context, model, op string) error {
	allowed, reason, err := c.CheckOperationAllowed(ctx, model, op)
	if err != nil {
		return apierror.Connection("access control check failed: %v", err)
	}
	if !allowed {
		return apierror.Permission("%s", reason)
	}
	return nil
}

// FilterEnabledModels returns the subset of models that are MCP-enabled,
// preserving input order.
func (c *Controller) FilterEnabledModels(ctx context.Context, models []string) ([]string, error) {
	enabled, err := c.GetEnabledModels(ctx)
	if err != nil {
		return nil, err
	}
	enabledSet := make(map[string]struct{}, len(enabled))
	for _, m := range enabled {
		enabledSet[m.Model] = struct{}{}
	}

	filtered := make([]string, 0, len(models))
	for _, m := range models {
		if _, ok := enabledSet[m]; ok {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// GetAllPermissions fetches permissions for every enabled model.
func (c *Controller) GetAllPermissions(ctx context.Context) (map[string]*ModelPermissions, error) {
	models, err := c.GetEnabledModels(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*ModelPermissions, len(models))
	for _, m := range models {
		perms, err := c.GetModelPermissions(ctx, m.Model)
		if err != nil {
			return nil, err
		}
		result[m.Model] = perms
	}
	return result, nil
}
