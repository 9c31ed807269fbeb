// connection.go — the hardest subsystem: owns the authenticated session,
// translates the internal operation vocabulary into XML-RPC, enforces
// locale context, and presents a uniform error surface. Generalizes the
// teacher's client.go/crud.go (auth bootstrap, lazy re-auth, cancellable
// execute) with the state machine, locale fallback, version gating, and
// retry policy described by the bridge's specification.
package odooclient

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateAuthenticating
	stateAuthenticated
)

// AuthMethod names which credential path authenticated the current session.
type AuthMethod string

const (
	AuthAPIKey   AuthMethod = "api_key"
	AuthPassword AuthMethod = "password"
	AuthSession  AuthMethod = "session"
)

// FieldInfo is one entry of an Odoo fields_get response: type, string label,
// relation, required/readonly flags, selection choices, etc. Shape varies by
// field type, so it is kept as a loosely-typed map.
type FieldInfo map[string]interface{}

type cachedFields struct {
	fields   map[string]FieldInfo
	cachedAt time.Time
}

type recordKey struct {
	model string
	id    int64
}

const defaultRecordCacheSize = 2048

// ConnOption configures a Connection at construction time.
type ConnOption func(*Connection)

// WithHTTPClient sets a custom *http.Client the RpcProxy's transport is
// derived from.
func WithHTTPClient(c *http.Client) ConnOption {
	return func(conn *Connection) { conn.httpClient = c }
}

// WithRecordCacheSize overrides the bounded record cache's capacity.
func WithRecordCacheSize(size int) ConnOption {
	return func(conn *Connection) { conn.recordCacheSize = size }
}

// WithPerfSink attaches a sink that receives a duration for every execute_kw
// call. Its failures never affect correctness.
func WithPerfSink(sink PerfSink) ConnOption {
	return func(conn *Connection) { conn.perf = NewPerfTracker(sink) }
}

// Connection owns one authenticated session against an Odoo instance.
type Connection struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpClient *http.Client

	mu    sync.Mutex // serializes execute_kw: one RPC in flight at a time
	state connState

	proxy          *RpcProxy
	uid            int64
	database       string
	authMethod     AuthMethod
	authCredential string
	serverVersion  string
	serverMajor    int // -1 when unknown/unparseable

	locale string // mirrors cfg.Locale but may be cleared at runtime

	metaMu    sync.RWMutex
	metaCache map[string]*cachedFields

	recordCacheSize int
	recordCache     *lru.Cache[recordKey, map[string]interface{}]

	perf *PerfTracker
}

// NewConnection builds a Connection for cfg. It does not dial the ERP;
// call Open to connect and authenticate.
func NewConnection(cfg *config.Config, logger *zap.Logger, opts ...ConnOption) (*Connection, error) {
	conn := &Connection{
		cfg:             cfg,
		logger:          logger,
		httpClient:      http.DefaultClient,
		state:           stateDisconnected,
		database:        cfg.Database,
		locale:          cfg.Locale,
		metaCache:       make(map[string]*cachedFields),
		recordCacheSize: defaultRecordCacheSize,
		serverMajor:     -1,
		perf:            NewPerfTracker(nil),
	}
	for _, opt := range opts {
		opt(conn)
	}

	cache, err := lru.New[recordKey, map[string]interface{}](conn.recordCacheSize)
	if err != nil {
		return nil, fmt.Errorf("odooclient: failed to build record cache: %w", err)
	}
	conn.recordCache = cache

	return conn, nil
}

// Open connects, auto-selects a database if needed, and authenticates. It is
// the single entry point the server's lifespan wrapper calls on startup.
func (c *Connection) Open(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	if c.database == "" {
		if err := c.selectDatabase(ctx); err != nil {
			return err
		}
	}
	return c.authenticate(ctx)
}

// connect dials the ERP endpoints and confirms reachability: Disconnected
// -> Connecting -> Connected.
func (c *Connection) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = stateConnecting

	proxy, err := NewRpcProxy(c.cfg.URL, c.httpClient)
	if err != nil {
		c.state = stateDisconnected
		return Connection_ConnectionError("Connection failed: %v", err)
	}
	c.proxy = proxy

	if err := c.tcpReachable(ctx); err != nil {
		c.state = stateDisconnected
		proxy.Close()
		c.proxy = nil
		return Connection_ConnectionError("Connection failed: %v", err)
	}

	version, err := proxy.Version(ctx)
	if err != nil {
		c.state = stateDisconnected
		proxy.Close()
		c.proxy = nil
		return Connection_ConnectionError("Connection failed: %v", err)
	}
	c.serverVersion = version.ServerVersion
	c.serverMajor = parseServerMajor(version.ServerVersion)

	c.state = stateConnected
	return nil
}

func (c *Connection) tcpReachable(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	dialer := net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return err
	}
	return conn.Close()
}

// selectDatabase implements the auto-selection algorithm: if exactly one DB
// is listed, pick it; with multiple candidates and no list access, the
// caller must configure one explicitly.
func (c *Connection) selectDatabase(ctx context.Context) error {
	databases, err := c.proxy.ListDatabases(ctx)
	if err != nil {
		return Connection_ConnectionError("could not auto-select a database: %v", err)
	}
	switch len(databases) {
	case 0:
		return Connection_ConnectionError("no databases available on this Odoo instance")
	case 1:
		c.database = databases[0]
		return nil
	default:
		return Connection_ConnectionError(
			"multiple databases available (%s) and none configured; set ODOO_DB", strings.Join(databases, ", "))
	}
}

// authenticate runs the dual-path algorithm: Connected -> Authenticating ->
// Authenticated.
func (c *Connection) authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = stateAuthenticating

	var (
		method     AuthMethod
		loginName  string
		credential string
	)
	switch {
	case c.cfg.UsesAPIKey():
		method = AuthAPIKey
		loginName = c.cfg.Username
		if loginName == "" {
			loginName = "__api__"
		}
		credential = c.cfg.APIKey
	case c.cfg.UsesCredentials():
		method = AuthPassword
		loginName = c.cfg.Username
		credential = c.cfg.Password
	default:
		c.state = stateConnected
		return Connection_ConnectionError("no credentials configured")
	}

	uid, err := c.proxy.Authenticate(ctx, c.database, loginName, credential)
	if err != nil {
		c.state = stateConnected
		return Connection_ConnectionError("authentication failed: %v", err)
	}
	if uid == 0 {
		c.state = stateConnected
		if method == AuthAPIKey {
			return Connection_ConnectionError("API key rejected")
		}
		return Connection_ConnectionError("credentials rejected")
	}

	c.uid = uid
	c.authMethod = method
	c.authCredential = credential
	c.state = stateAuthenticated

	c.logger.Info("authenticated with Odoo",
		zap.Int64("uid", uid),
		zap.String("database", c.database),
		zap.String("auth_method", string(method)),
	)
	return nil
}

// AuthenticateLegacyToken authenticates via the legacy
// mcp.server.authenticate_token custom method, per the optional compatibility
// path documented in the bridge's specification. It is never called unless a
// caller explicitly opts in.
func (c *Connection) AuthenticateLegacyToken(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateConnected && c.state != stateAuthenticated {
		return ErrNotAuthenticated
	}

	var uid int64
	err := c.proxy.ExecuteKW(ctx, c.database, 1, "admin", "mcp.server", "authenticate_token",
		[]interface{}{token}, nil, &uid)
	if err != nil {
		return Connection_ConnectionError("legacy token authentication failed: %v", err)
	}
	if uid == 0 {
		return Connection_ConnectionError("invalid legacy MCP token")
	}

	c.uid = uid
	c.authMethod = AuthSession
	c.authCredential = token
	c.state = stateAuthenticated
	return nil
}

// Disconnect clears session-scoped state and proxy references. The metadata
// cache is preserved so a subsequent reconnect can keep serving memoized
// fields_get results.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proxy != nil {
		c.proxy.Close()
		c.proxy = nil
	}
	c.uid = 0
	c.authCredential = ""
	c.state = stateDisconnected
}

// Authenticated reports whether the session is connected and authenticated.
func (c *Connection) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateAuthenticated
}

// Database returns the currently selected database name, if any.
func (c *Connection) Database() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.database
}

// ServerVersion returns the raw server_version string reported by the ERP.
func (c *Connection) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverVersion
}

var versionPattern = regexp.MustCompile(`^(?:saas~)?(\d+)(?:\.\d+)?`)

func parseServerMajor(version string) int {
	matches := versionPattern.FindStringSubmatch(version)
	if len(matches) != 2 {
		return -1
	}
	major, err := strconv.Atoi(matches[1])
	if err != nil {
		return -1
	}
	return major
}

// BuildRecordURL returns the ERP's form-view URL for (model, id), choosing
// between the modern and legacy URL shapes by server major version.
func (c *Connection) BuildRecordURL(model string, id int64) string {
	c.mu.Lock()
	major := c.serverMajor
	c.mu.Unlock()

	base := strings.TrimRight(c.cfg.URL, "/")
	if major >= 18 {
		return fmt.Sprintf("%s/odoo/%s/%d", base, model, id)
	}
	return fmt.Sprintf("%s/web#id=%d&model=%s&view_type=form", base, id, model)
}

// Connection_ConnectionError is a small constructor kept in this package to
// avoid a dependency on apierror from the lowest RPC layer; Connection's
// callers (ResourceHandler, ToolHandler, WorkflowHandler) are the ones that
// convert a returned error into apierror.ConnectionError at the handler
// edge. Named distinctly so it is never mistaken for the edge-level type.
func Connection_ConnectionError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func cloneContextMap(m map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// executeKW is the single funnel every RPC operation below goes through. It
// enforces the authenticated-session precondition, clones and injects the
// locale into the call's context (never overriding a caller-supplied lang),
// retries once without lang if the ERP rejects it as invalid, retries up to
// three times with a one-second linear backoff on transient transport
// failures, and sanitizes any fault message before returning it.
func (c *Connection) executeKW(ctx context.Context, model Model, method string, positional []interface{}, opts *Options, reply interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateAuthenticated {
		return ErrNotAuthenticated
	}

	baseKwargs := opts.ToRPC()
	localeCtx, _ := baseKwargs["context"].(map[string]interface{})
	localeCtx = cloneContextMap(localeCtx)
	if c.locale != "" {
		if _, exists := localeCtx["lang"]; !exists {
			localeCtx["lang"] = c.locale
		}
	}

	attempt := func(odooCtx map[string]interface{}) error {
		kwargs := make(map[string]interface{}, len(baseKwargs))
		for k, v := range baseKwargs {
			kwargs[k] = v
		}
		if len(odooCtx) > 0 {
			kwargs["context"] = odooCtx
		} else {
			delete(kwargs, "context")
		}
		return c.perf.Track(string(model), method, func() error {
			return c.proxy.ExecuteKW(ctx, c.database, c.uid, c.authCredential, string(model), method, positional, kwargs, reply)
		})
	}

	withLocaleFallback := func() error {
		err := attempt(localeCtx)
		if err != nil && isInvalidLanguageFault(err) {
			if _, hadLang := localeCtx["lang"]; hadLang {
				c.logger.Warn("Odoo rejected configured locale, retrying without it",
					zap.String("locale", c.locale))
				delete(localeCtx, "lang")
				c.locale = ""
				err = attempt(localeCtx)
			}
		}
		return err
	}

	var err error
	for try := 1; try <= 3; try++ {
		err = withLocaleFallback()
		if err == nil {
			return nil
		}
		if !isTransientError(err) {
			break
		}
		if try < 3 {
			time.Sleep(time.Duration(try) * time.Second)
		}
	}

	if fault, ok := err.(*RpcFault); ok {
		fault.Message = sanitizeFaultMessage(fault.Message)
		return fault
	}
	return err
}

// Search returns the ids matching domain.
func (c *Connection) Search(ctx context.Context, model Model, domain Domain, opts *Options) ([]int64, error) {
	var ids []int64
	err := c.executeKW(ctx, model, "search", []interface{}{domain.ToRPC()}, opts, &ids)
	return ids, err
}

// SearchCount returns the number of records matching domain.
func (c *Connection) SearchCount(ctx context.Context, model Model, domain Domain, opts *Options) (int, error) {
	var count int
	err := c.executeKW(ctx, model, "search_count", []interface{}{domain.ToRPC()}, opts, &count)
	return count, err
}

// Read fetches ids' field values. Results are served from the bounded record
// cache only when fields is empty (a full-record read); partial reads always
// go to the wire since a cached full record cannot safely answer a narrower
// projection without risking stale-field drift if it was populated by a
// different projection.
func (c *Connection) Read(ctx context.Context, model Model, ids []int64, fields Fields, opts *Options) ([]map[string]interface{}, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	useCache := len(fields) == 0
	results := make([]map[string]interface{}, 0, len(ids))
	missing := make([]int64, 0, len(ids))

	if useCache {
		for _, id := range ids {
			if rec, ok := c.recordCache.Get(recordKey{model: string(model), id: id}); ok {
				results = append(results, rec)
			} else {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			return results, nil
		}
	} else {
		missing = ids
	}

	readOpts := *defaultOptions(opts)
	readOpts.Extra = mergeExtra(readOpts.Extra, map[string]interface{}{"fields": fields.ToRPC()})

	var fetched []map[string]interface{}
	if err := c.executeKW(ctx, model, "read", []interface{}{missing}, &readOpts, &fetched); err != nil {
		return nil, err
	}

	if useCache {
		for _, rec := range fetched {
			if id, ok := recordID(rec); ok {
				c.recordCache.Add(recordKey{model: string(model), id: id}, rec)
			}
		}
		results = append(results, fetched...)
		return results, nil
	}
	return fetched, nil
}

// SearchRead combines Search and Read in a single RPC.
func (c *Connection) SearchRead(ctx context.Context, model Model, domain Domain, fields Fields, opts *Options) ([]map[string]interface{}, error) {
	readOpts := *defaultOptions(opts)
	readOpts.Extra = mergeExtra(readOpts.Extra, map[string]interface{}{"fields": fields.ToRPC()})

	var results []map[string]interface{}
	err := c.executeKW(ctx, model, "search_read", []interface{}{domain.ToRPC()}, &readOpts, &results)
	return results, err
}

// FieldsGet returns model's field metadata, memoized without expiry for the
// lifetime of the process (Odoo model metadata changes only on module
// upgrade, which requires a restart of the bridge to pick up anyway).
func (c *Connection) FieldsGet(ctx context.Context, model Model) (map[string]FieldInfo, error) {
	c.metaMu.RLock()
	entry, ok := c.metaCache[string(model)]
	c.metaMu.RUnlock()
	if ok {
		return entry.fields, nil
	}

	var fields map[string]FieldInfo
	if err := c.executeKW(ctx, model, "fields_get", nil,
		&Options{Extra: map[string]interface{}{"attributes": []string{"string", "type", "relation", "required", "readonly", "selection", "help", "digits", "currency_field"}}},
		&fields); err != nil {
		return nil, err
	}

	c.metaMu.Lock()
	c.metaCache[string(model)] = &cachedFields{fields: fields, cachedAt: time.Now()}
	c.metaMu.Unlock()

	return fields, nil
}

// Create inserts a new record and invalidates model's cached records, since
// a new record can change computed/related fields on siblings.
func (c *Connection) Create(ctx context.Context, model Model, data Data, opts *Options) (int64, error) {
	var id int64
	if err := c.executeKW(ctx, model, "create", []interface{}{data.ToRPC()}, opts, &id); err != nil {
		return 0, err
	}
	c.invalidateModel(model)
	return id, nil
}

// Write updates ids and invalidates their cached entries.
func (c *Connection) Write(ctx context.Context, model Model, ids []int64, data Data, opts *Options) error {
	var ok bool
	if err := c.executeKW(ctx, model, "write", []interface{}{ids, data.ToRPC()}, opts, &ok); err != nil {
		return err
	}
	c.invalidateRecords(model, ids)
	return nil
}

// Unlink deletes ids and invalidates their cached entries.
func (c *Connection) Unlink(ctx context.Context, model Model, ids []int64, opts *Options) error {
	var ok bool
	if err := c.executeKW(ctx, model, "unlink", []interface{}{ids}, opts, &ok); err != nil {
		return err
	}
	c.invalidateRecords(model, ids)
	return nil
}

// Execute is the generic escape hatch WorkflowHandler uses to call
// non-CRUD business methods (action_confirm, action_assign, button_validate,
// …) that have no dedicated convenience wrapper here.
func (c *Connection) Execute(ctx context.Context, model Model, method string, positional []interface{}, opts *Options, reply interface{}) error {
	return c.executeKW(ctx, model, method, positional, opts, reply)
}

func (c *Connection) invalidateRecords(model Model, ids []int64) {
	for _, id := range ids {
		c.recordCache.Remove(recordKey{model: string(model), id: id})
	}
}

func (c *Connection) invalidateModel(model Model) {
	for _, key := range c.recordCache.Keys() {
		if key.model == string(model) {
			c.recordCache.Remove(key)
		}
	}
}

func defaultOptions(opts *Options) *Options {
	if opts == nil {
		return &Options{}
	}
	clone := *opts
	return &clone
}

func mergeExtra(extra map[string]interface{}, additions map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(extra)+len(additions))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range additions {
		merged[k] = v
	}
	return merged
}

func recordID(rec map[string]interface{}) (int64, bool) {
	switch v := rec["id"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
