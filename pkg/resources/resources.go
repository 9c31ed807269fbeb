// Package resources resolves odoo:// URIs into the formatted text MCP
// resource reads return: single records, searches, bulk browses, counts,
// and field metadata. Grounded on
// original_source/mcp_server_odoo/resource_handlers.py's URI-pattern
// dispatch table and server.py's exception-to-envelope wrapping.
package resources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/access"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/apierror"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/format"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/uri"
)

// Handler resolves odoo:// resource URIs against a live Connection, gated
// by access.Controller.
type Handler struct {
	conn      *odooclient.Connection
	access    *access.Controller
	cfg       *config.Config
	formatter *format.Formatter
}

// New builds a Handler.
func New(conn *odooclient.Connection, controller *access.Controller, cfg *config.Config) *Handler {
	return &Handler{conn: conn, access: controller, cfg: cfg, formatter: format.New(conn)}
}

// Resolve dispatches rawURI to the matching operation and returns its
// formatted text body. Every error path returns an *apierror.Error so the
// caller can render the standard is_error envelope.
func (h *Handler) Resolve(ctx context.Context, rawURI string) (string, error) {
	parsed, err := uri.Parse(rawURI)
	if err != nil {
		return "", apierror.Validation("%v", err)
	}

	if !h.conn.Authenticated() {
		return "", apierror.Validation("not connected to Odoo")
	}

	switch {
	case parsed.Operation == "fields":
		return h.fields(ctx, parsed)
	case parsed.Operation == "search":
		return h.search(ctx, parsed)
	case parsed.Operation == "count":
		return h.count(ctx, parsed)
	case strings.HasPrefix(parsed.Operation, "browse"):
		return h.browse(ctx, parsed)
	case strings.HasPrefix(parsed.Operation, "record/"):
		return h.record(ctx, parsed)
	default:
		return "", apierror.Validation("unsupported resource operation: %s", parsed.Operation)
	}
}

func (h *Handler) validateAccess(ctx context.Context, model, op string) error {
	err := h.access.ValidateModelAccess(ctx, model, op)
	if err != nil {
		return err
	}
	return nil
}

func (h *Handler) record(ctx context.Context, parsed *uri.Parsed) (string, error) {
	idStr := strings.TrimPrefix(parsed.Operation, "record/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", apierror.Validation("invalid record id: %s", idStr)
	}

	if err := h.validateAccess(ctx, parsed.Model, "read"); err != nil {
		return "", err
	}

	fields, err := h.safeFields(ctx, parsed.Model, nil)
	if err != nil {
		return "", wrapConnectionError(err)
	}

	records, err := h.conn.Read(ctx, odooclient.Model(parsed.Model), []int64{id}, fields, nil)
	if err != nil {
		return "", wrapConnectionError(err)
	}
	if len(records) == 0 {
		return "", apierror.NotFound("%s id %d not found", parsed.Model, id)
	}

	text, err := h.formatter.FormatRecord(ctx, parsed.Model, records[0], true)
	if err != nil {
		return "", wrapConnectionError(err)
	}
	return text, nil
}

func (h *Handler) search(ctx context.Context, parsed *uri.Parsed) (string, error) {
	if err := h.validateAccess(ctx, parsed.Model, "read"); err != nil {
		return "", err
	}

	domain, err := uri.ParseDomain(parsed.Param("domain"))
	if err != nil {
		return "", apierror.Validation("%v", err)
	}

	limit := intParam(parsed, "limit", h.cfg.DefaultLimit)
	if limit > h.cfg.MaxLimit {
		limit = h.cfg.MaxLimit
	}
	offset := intParam(parsed, "offset", 0)

	var fields odooclient.Fields
	if raw := parsed.Param("fields"); raw != "" {
		fields = strings.Split(raw, ",")
	}

	opts := &odooclient.Options{Limit: limit, Offset: offset, Order: parsed.Param("order")}

	records, err := h.conn.SearchRead(ctx, odooclient.Model(parsed.Model), domain, fields, opts)
	if err != nil {
		return "", wrapConnectionError(err)
	}

	total, err := h.conn.SearchCount(ctx, odooclient.Model(parsed.Model), domain, nil)
	if err != nil {
		return "", wrapConnectionError(err)
	}

	return format.FormatSearchResults(parsed.Model, records, total, limit, offset, domain), nil
}

func (h *Handler) browse(ctx context.Context, parsed *uri.Parsed) (string, error) {
	if err := h.validateAccess(ctx, parsed.Model, "read"); err != nil {
		return "", err
	}

	ids, skipped := parseIDList(parsed.Param("ids"))
	if len(ids) == 0 {
		return "", apierror.Validation("No valid IDs provided")
	}

	var requested odooclient.Fields
	if raw := parsed.Param("fields"); raw != "" {
		requested = strings.Split(raw, ",")
	}
	fields, err := h.safeFields(ctx, parsed.Model, requested)
	if err != nil {
		return "", wrapConnectionError(err)
	}

	records, err := h.conn.Read(ctx, odooclient.Model(parsed.Model), ids, fields, nil)
	if err != nil {
		return "", wrapConnectionError(err)
	}

	var lines []string
	if len(skipped) > 0 {
		lines = append(lines, fmt.Sprintf("Skipped invalid IDs: %s", strings.Join(skipped, ", ")))
	}
	for _, record := range records {
		text, err := h.formatter.FormatRecord(ctx, parsed.Model, record, true)
		if err != nil {
			return "", wrapConnectionError(err)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n\n"), nil
}

func (h *Handler) count(ctx context.Context, parsed *uri.Parsed) (string, error) {
	if err := h.validateAccess(ctx, parsed.Model, "read"); err != nil {
		return "", err
	}

	domain, err := uri.ParseDomain(parsed.Param("domain"))
	if err != nil {
		return "", apierror.Validation("%v", err)
	}

	count, err := h.conn.SearchCount(ctx, odooclient.Model(parsed.Model), domain, nil)
	if err != nil {
		return "", wrapConnectionError(err)
	}
	return fmt.Sprintf("Count: %d %s records match the given criteria", count, parsed.Model), nil
}

func (h *Handler) fields(ctx context.Context, parsed *uri.Parsed) (string, error) {
	if err := h.validateAccess(ctx, parsed.Model, "read"); err != nil {
		return "", err
	}

	fieldsInfo, err := h.conn.FieldsGet(ctx, odooclient.Model(parsed.Model))
	if err != nil {
		return "", wrapConnectionError(err)
	}
	return format.FormatFieldList(parsed.Model, fieldsInfo), nil
}

// safeFields resolves the fields projection record/browse pass to Read:
// requested, filtered against fields_get to drop binary/html/serialized
// types and underscore-prefixed names, or the model's full safe-field set
// when requested is empty. Requested names that fields_get does not report
// are passed through unchanged. A filter that leaves nothing returns nil,
// which tells Read to omit the projection and fetch everything.
func (h *Handler) safeFields(ctx context.Context, model string, requested odooclient.Fields) (odooclient.Fields, error) {
	fieldsInfo, err := h.conn.FieldsGet(ctx, odooclient.Model(model))
	if err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		return format.SafeFields(fieldsInfo), nil
	}

	safe := format.SafeFields(fieldsInfo)
	safeSet := make(map[string]struct{}, len(safe))
	for _, name := range safe {
		safeSet[name] = struct{}{}
	}

	fields := make(odooclient.Fields, 0, len(requested))
	for _, name := range requested {
		if _, ok := fieldsInfo[name]; !ok {
			fields = append(fields, name)
			continue
		}
		if _, ok := safeSet[name]; ok {
			fields = append(fields, name)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func intParam(parsed *uri.Parsed, key string, fallback int) int {
	raw := parsed.Param(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// parseIDList parses a comma-separated ids parameter, skipping any token
// that isn't a positive integer rather than failing the whole request. The
// skipped tokens are returned alongside the valid ids so the caller can
// report them.
func parseIDList(raw string) (ids []int64, skipped []string) {
	if raw == "" {
		return nil, nil
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			skipped = append(skipped, p)
			continue
		}
		ids = append(ids, id)
	}
	return ids, skipped
}

// wrapConnectionError classifies an odooclient-layer error into the
// resource-handler's error taxonomy: an *apierror.Error passes through
// unchanged, everything else becomes a 503 the same way an unreachable ERP
// would.
func wrapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*apierror.Error); ok {
		return apiErr
	}
	return apierror.Connection("%v", err)
}
