// Package tools implements the bridge's MCP tool surface: record CRUD and
// model discovery operations callable by an MCP client, registered on an
// mcp-go server the same way the teacher's ToolHive handler registers its
// tools (mcp.Tool + mcp.ToolInputSchema, one method per tool,
// request.BindArguments into a local args struct, mcp.NewToolResultError /
// NewToolResultStructuredOnly / NewToolResultText on the way out).
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/access"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/apierror"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/tools/logctx"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/uri"
)

// Handler implements every record-level MCP tool.
type Handler struct {
	conn   *odooclient.Connection
	access *access.Controller
	cfg    *config.Config
	logger *zap.Logger
}

// New builds a Handler.
func New(conn *odooclient.Connection, controller *access.Controller, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{conn: conn, access: controller, cfg: cfg, logger: logger}
}

// Register adds every tool this package implements to mcpServer.
func (h *Handler) Register(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "search_records",
		Description: "Search Odoo records matching a domain and return one page of matching records",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"model":  map[string]interface{}{"type": "string", "description": "Odoo model, e.g. res.partner"},
				"domain": map[string]interface{}{"type": "string", "description": "Search domain as JSON or Python-literal text"},
				"fields": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Fields to return; all fields if omitted"},
				"limit":  map[string]interface{}{"type": "integer", "description": "Maximum records to return"},
				"offset": map[string]interface{}{"type": "integer", "description": "Number of matching records to skip"},
				"order":  map[string]interface{}{"type": "string", "description": "Sort order, e.g. 'name asc'"},
			},
			Required: []string{"model"},
		},
	}, h.withDiagnostics(h.SearchRecords))

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_record",
		Description: "Fetch a single Odoo record by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"model":  map[string]interface{}{"type": "string", "description": "Odoo model, e.g. res.partner"},
				"id":     map[string]interface{}{"type": "integer", "description": "Record id"},
				"fields": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Fields to return; a smart default subset if omitted"},
			},
			Required: []string{"model", "id"},
		},
	}, h.withDiagnostics(h.GetRecord))

	mcpServer.AddTool(mcp.Tool{
		Name:        "list_models",
		Description: "List Odoo models available to the bridge",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}, h.ListModels)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_record",
		Description: "Create a new Odoo record",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"model":  map[string]interface{}{"type": "string", "description": "Odoo model, e.g. res.partner"},
				"values": map[string]interface{}{"type": "object", "description": "Field values for the new record"},
			},
			Required: []string{"model", "values"},
		},
	}, h.CreateRecord)

	mcpServer.AddTool(mcp.Tool{
		Name:        "update_record",
		Description: "Update an existing Odoo record",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"model":  map[string]interface{}{"type": "string", "description": "Odoo model, e.g. res.partner"},
				"id":     map[string]interface{}{"type": "integer", "description": "Record id to update"},
				"values": map[string]interface{}{"type": "object", "description": "Field values to write"},
			},
			Required: []string{"model", "id", "values"},
		},
	}, h.UpdateRecord)

	mcpServer.AddTool(mcp.Tool{
		Name:        "delete_record",
		Description: "Delete an Odoo record",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"model": map[string]interface{}{"type": "string", "description": "Odoo model, e.g. res.partner"},
				"id":    map[string]interface{}{"type": "integer", "description": "Record id to delete"},
			},
			Required: []string{"model", "id"},
		},
	}, h.DeleteRecord)

	mcpServer.AddTool(mcp.Tool{
		Name:        "list_resource_templates",
		Description: "List the odoo:// resource URI templates this bridge supports",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}, h.ListResourceTemplates)
}

func errorResult(err error) *mcp.CallToolResult {
	resp := apierror.FormatErrorResponse(err)
	return mcp.NewToolResultError(resp.Content[0].Text)
}

// toolHandlerFunc is the signature mcp-go expects from a registered tool.
type toolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// withDiagnostics attaches a fresh logctx.Sink to the request context before
// calling next, then emits everything the call recorded as one structured
// log line, so a handler's Set calls never need to know how or whether
// their fields end up logged.
func (h *Handler) withDiagnostics(next toolHandlerFunc) toolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sink := logctx.New()
		ctx = logctx.WithSink(ctx, sink)

		result, err := next(ctx, request)

		fields := sink.Snapshot()
		if len(fields) > 0 {
			logFields := make([]zap.Field, 0, len(fields))
			for k, v := range fields {
				logFields = append(logFields, zap.Any(k, v))
			}
			h.logger.Debug("tool call diagnostics", logFields...)
		}
		return result, err
	}
}

// commonFields is the small fixed set of columns smartDefaultFields always
// tries to include after name/display_name/code and any simple many2one.
var commonFields = []string{"email", "phone", "date", "state", "amount_total", "user_id", "company_id"}

// maxSmartDefaultFields bounds how many columns a smart-default selection
// returns, so a wide model never silently balloons into a near-full read.
const maxSmartDefaultFields = 15

// allFieldsSentinel is the special fields value that requests every column
// on a model instead of a curated subset; passing it is logged, not
// rejected, since it is occasionally a deliberate, expensive choice.
const allFieldsSentinel = "__all__"

// smartDefaultFields picks a short, useful field list from a model's
// fields_get metadata: name, display_name, code first, then any simple
// many2one (a relational field whose own type is not one2many/many2many),
// then the common business columns, capped at maxSmartDefaultFields.
func smartDefaultFields(fieldsInfo map[string]odooclient.FieldInfo) odooclient.Fields {
	var out odooclient.Fields
	seen := map[string]bool{}
	add := func(name string) bool {
		if seen[name] {
			return false
		}
		if _, ok := fieldsInfo[name]; !ok {
			return false
		}
		seen[name] = true
		out = append(out, name)
		return len(out) >= maxSmartDefaultFields
	}

	for _, name := range []string{"name", "display_name", "code"} {
		if add(name) {
			return out
		}
	}
	for name, info := range fieldsInfo {
		if len(out) >= maxSmartDefaultFields {
			break
		}
		if !strings.HasSuffix(name, "_id") {
			continue
		}
		if fieldType, _ := info["type"].(string); fieldType != "many2one" {
			continue
		}
		if add(name) {
			return out
		}
	}
	for _, name := range commonFields {
		if add(name) {
			return out
		}
	}
	if len(out) == 0 {
		return odooclient.Fields{"name", "display_name"}
	}
	return out
}

type searchRecordsArgs struct {
	Model  string   `json:"model"`
	Domain string   `json:"domain"`
	Fields []string `json:"fields"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Order  string   `json:"order"`
}

// searchResult is the search_records envelope per spec.
type searchResult struct {
	Model   string                   `json:"model"`
	Total   int                      `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
	Records []map[string]interface{} `json:"records"`
}

// SearchRecords implements the search_records tool.
func (h *Handler) SearchRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchRecordsArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, args.Model, "read"); err != nil {
		return errorResult(err), nil
	}

	domain, err := uri.ParseDomain(args.Domain)
	if err != nil {
		return errorResult(apierror.Validation("%v", err)), nil
	}

	if len(args.Fields) == 1 && args.Fields[0] == allFieldsSentinel {
		h.logger.Warn("search_records requested every field on a model",
			zap.String("model", args.Model), zap.String("special_value", allFieldsSentinel))
		if sink, ok := logctx.FromContext(ctx); ok {
			sink.Set("fields", allFieldsSentinel)
		}
		args.Fields = nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = h.cfg.DefaultLimit
	}
	if limit > h.cfg.MaxLimit {
		limit = h.cfg.MaxLimit
	}

	opts := &odooclient.Options{Limit: limit, Offset: args.Offset, Order: args.Order}
	records, err := h.conn.SearchRead(ctx, odooclient.Model(args.Model), domain, args.Fields, opts)
	if err != nil {
		return errorResult(err), nil
	}

	total, err := h.conn.SearchCount(ctx, odooclient.Model(args.Model), domain, nil)
	if err != nil {
		return errorResult(err), nil
	}

	if sink, ok := logctx.FromContext(ctx); ok {
		sink.Set("model", args.Model)
		sink.Set("result_count", len(records))
	}

	return mcp.NewToolResultStructuredOnly(searchResult{
		Model:   args.Model,
		Total:   total,
		Limit:   limit,
		Offset:  args.Offset,
		Records: records,
	}), nil
}

type getRecordArgs struct {
	Model  string   `json:"model"`
	ID     int64    `json:"id"`
	Fields []string `json:"fields"`
}

// recordResult is the get_record envelope per spec.
type recordResult struct {
	Record   map[string]interface{} `json:"record"`
	Metadata recordResultMetadata    `json:"metadata"`
}

type recordResultMetadata struct {
	FieldSelectionMethod string `json:"field_selection_method"`
}

// GetRecord implements the get_record tool.
func (h *Handler) GetRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getRecordArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, args.Model, "read"); err != nil {
		return errorResult(err), nil
	}

	fields := odooclient.Fields(args.Fields)
	selectionMethod := "explicit"
	allFields := false
	if len(fields) == 1 && fields[0] == allFieldsSentinel {
		h.logger.Warn("get_record requested every field on a model",
			zap.String("model", args.Model), zap.String("special_value", allFieldsSentinel))
		fields = nil
		allFields = true
	}
	if len(fields) == 0 && !allFields {
		fieldsInfo, err := h.conn.FieldsGet(ctx, odooclient.Model(args.Model))
		if err != nil {
			return errorResult(err), nil
		}
		fields = smartDefaultFields(fieldsInfo)
		selectionMethod = "smart_defaults"
	}

	records, err := h.conn.Read(ctx, odooclient.Model(args.Model), []int64{args.ID}, fields, nil)
	if err != nil {
		return errorResult(err), nil
	}
	if len(records) == 0 {
		return errorResult(apierror.NotFound("%s id %d not found", args.Model, args.ID)), nil
	}

	return mcp.NewToolResultStructuredOnly(recordResult{
		Record:   records[0],
		Metadata: recordResultMetadata{FieldSelectionMethod: selectionMethod},
	}), nil
}

// modelEntry is one row of the list_models envelope: a model name/label
// plus which of the four CRUD operations the caller may perform on it.
type modelEntry struct {
	Model      string          `json:"model"`
	Name       string          `json:"name"`
	Operations modelOperations `json:"operations"`
}

type modelOperations struct {
	Read   bool `json:"r"`
	Write  bool `json:"w"`
	Create bool `json:"c"`
	Unlink bool `json:"u"`
}

// modelsResult is the unified list_models envelope both code paths return,
// per the decision to keep YOLO and standard-mode discovery as separate
// internal functions but merge only the result shape.
type modelsResult struct {
	Models   []modelEntry  `json:"models"`
	YoloMode *yoloModeInfo `json:"yolo_mode,omitempty"`
}

type yoloModeInfo struct {
	Enabled    bool            `json:"enabled"`
	Level      string          `json:"level"`
	Operations modelOperations `json:"operations"`
}

// irModelAllowlist names non-ir.*/base.* technical models still worth
// exposing under YOLO mode, mirroring the REST endpoint's own allowlist.
var irModelAllowlist = map[string]bool{"ir.attachment": true}

// ListModels implements the list_models tool. Under any non-off YOLO level
// the ERP's own MCP allowlist is bypassed for listing, so the model list is
// read directly from ir.model instead of the access controller's REST
// endpoint; the two paths are kept as separate functions but both return
// modelsResult.
func (h *Handler) ListModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.cfg.YoloMode != config.YoloOff {
		result, err := h.listModelsYOLO(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultStructuredOnly(result), nil
	}

	result, err := h.listModelsREST(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultStructuredOnly(result), nil
}

// listModelsYOLO bypasses the ERP's MCP model allowlist entirely and lists
// every non-transient, non-technical model straight from ir.model. Under
// the "true" level this also means unrestricted CRUD on anything returned;
// under "read" only read access is implied.
func (h *Handler) listModelsYOLO(ctx context.Context) (modelsResult, error) {
	domain := odooclient.Domain{
		{"transient", "=", false},
	}
	var raw []map[string]interface{}
	opts := &odooclient.Options{Extra: map[string]interface{}{"fields": []string{"model", "name"}}}
	if err := h.conn.Execute(ctx, odooclient.ModelIrModel, "search_read", []interface{}{domain.ToRPC()}, opts, &raw); err != nil {
		return modelsResult{}, err
	}

	allOps := modelOperations{Read: true, Write: true, Create: true, Unlink: true}
	if h.cfg.YoloMode == config.YoloRead {
		allOps = modelOperations{Read: true}
	}

	var entries []modelEntry
	for _, r := range raw {
		model, _ := r["model"].(string)
		name, _ := r["name"].(string)
		if strings.HasPrefix(model, "ir.") || strings.HasPrefix(model, "base.") {
			if !irModelAllowlist[model] {
				continue
			}
		}
		entries = append(entries, modelEntry{Model: model, Name: name, Operations: allOps})
	}

	return modelsResult{
		Models:   entries,
		YoloMode: &yoloModeInfo{Enabled: true, Level: string(h.cfg.YoloMode), Operations: allOps},
	}, nil
}

// listModelsREST asks the ERP's own MCP module which models it has enabled
// and what operations each one permits, the standard (non-YOLO) path.
func (h *Handler) listModelsREST(ctx context.Context) (modelsResult, error) {
	perms, err := h.access.GetAllPermissions(ctx)
	if err != nil {
		return modelsResult{}, err
	}
	models, err := h.access.GetEnabledModels(ctx)
	if err != nil {
		return modelsResult{}, err
	}

	entries := make([]modelEntry, 0, len(models))
	for _, m := range models {
		entry := modelEntry{Model: m.Model, Name: m.Name}
		if p, ok := perms[m.Model]; ok {
			entry.Operations = modelOperations{Read: p.CanRead, Write: p.CanWrite, Create: p.CanCreate, Unlink: p.CanUnlink}
		}
		entries = append(entries, entry)
	}
	return modelsResult{Models: entries}, nil
}

// recordRef is the {id, display_name} pair every create/update/delete
// envelope below reports, read back from the ERP rather than assumed.
type recordRef struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// createResult is the create_record envelope per spec.
type createResult struct {
	Success bool      `json:"success"`
	Record  recordRef `json:"record"`
	URL     string    `json:"url"`
	Message string    `json:"message"`
}

// updateResult is the update_record envelope.
type updateResult struct {
	Success bool      `json:"success"`
	Record  recordRef `json:"record"`
	Message string    `json:"message"`
}

// deleteResult is the delete_record envelope.
type deleteResult struct {
	Success   bool   `json:"success"`
	DeletedID int64  `json:"deleted_id"`
	Message   string `json:"message"`
}

// readDisplayName reads back a single record's display_name, used after
// create/update to report what the caller now has on the server.
func (h *Handler) readDisplayName(ctx context.Context, model string, id int64) (string, error) {
	records, err := h.conn.Read(ctx, odooclient.Model(model), []int64{id}, odooclient.Fields{"display_name"}, nil)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	name, _ := records[0]["display_name"].(string)
	return name, nil
}

type createRecordArgs struct {
	Model  string                 `json:"model"`
	Values map[string]interface{} `json:"values"`
}

// CreateRecord implements the create_record tool.
func (h *Handler) CreateRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createRecordArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if len(args.Values) == 0 {
		return errorResult(apierror.Validation("values must not be empty")), nil
	}
	if err := h.access.ValidateModelAccess(ctx, args.Model, "create"); err != nil {
		return errorResult(err), nil
	}

	id, err := h.conn.Create(ctx, odooclient.Model(args.Model), odooclient.Data(args.Values), nil)
	if err != nil {
		return errorResult(err), nil
	}

	displayName, err := h.readDisplayName(ctx, args.Model, id)
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultStructuredOnly(createResult{
		Success: true,
		Record:  recordRef{ID: id, DisplayName: displayName},
		URL:     h.conn.BuildRecordURL(args.Model, id),
		Message: fmt.Sprintf("Created %s record %d", args.Model, id),
	}), nil
}

type updateRecordArgs struct {
	Model  string                 `json:"model"`
	ID     int64                  `json:"id"`
	Values map[string]interface{} `json:"values"`
}

// UpdateRecord implements the update_record tool.
func (h *Handler) UpdateRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args updateRecordArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, args.Model, "write"); err != nil {
		return errorResult(err), nil
	}

	existing, err := h.conn.Read(ctx, odooclient.Model(args.Model), []int64{args.ID}, odooclient.Fields{"id"}, nil)
	if err != nil {
		return errorResult(err), nil
	}
	if len(existing) == 0 {
		return errorResult(apierror.Validation("Record not found")), nil
	}

	if err := h.conn.Write(ctx, odooclient.Model(args.Model), []int64{args.ID}, odooclient.Data(args.Values), nil); err != nil {
		return errorResult(err), nil
	}

	displayName, err := h.readDisplayName(ctx, args.Model, args.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultStructuredOnly(updateResult{
		Success: true,
		Record:  recordRef{ID: args.ID, DisplayName: displayName},
		Message: fmt.Sprintf("Updated %s record %d", args.Model, args.ID),
	}), nil
}

type deleteRecordArgs struct {
	Model string `json:"model"`
	ID    int64  `json:"id"`
}

// DeleteRecord implements the delete_record tool.
func (h *Handler) DeleteRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args deleteRecordArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, args.Model, "unlink"); err != nil {
		return errorResult(err), nil
	}

	existing, err := h.conn.Read(ctx, odooclient.Model(args.Model), []int64{args.ID}, odooclient.Fields{"id", "display_name"}, nil)
	if err != nil {
		return errorResult(err), nil
	}
	if len(existing) == 0 {
		return errorResult(apierror.Validation("Record not found")), nil
	}
	displayName, _ := existing[0]["display_name"].(string)

	if err := h.conn.Unlink(ctx, odooclient.Model(args.Model), []int64{args.ID}, nil); err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultStructuredOnly(deleteResult{
		Success:   true,
		DeletedID: args.ID,
		Message:   fmt.Sprintf("Deleted %s record %d (%s)", args.Model, args.ID, displayName),
	}), nil
}

// ListResourceTemplates implements the list_resource_templates tool,
// documenting every odoo:// shape ResourceHandler accepts.
func (h *Handler) ListResourceTemplates(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates := []map[string]string{
		{"uriTemplate": "odoo://{model}/record/{id}", "description": "Fetch a single record"},
		{"uriTemplate": "odoo://{model}/search?domain={domain}&fields={fields}&limit={limit}&offset={offset}", "description": "Search records"},
		{"uriTemplate": "odoo://{model}/browse?ids={ids}&fields={fields}", "description": "Fetch several records by id"},
		{"uriTemplate": "odoo://{model}/count?domain={domain}", "description": "Count records matching a domain"},
		{"uriTemplate": "odoo://{model}/fields", "description": "List a model's field metadata"},
	}
	return mcp.NewToolResultStructuredOnly(templates), nil
}
