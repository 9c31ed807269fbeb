// Package workflow implements the higher-level MCP tools that chain several
// record operations into one complete business process: quotations,
// manufacturing orders, purchase orders, receipts, deliveries, and bills of
// materials. Grounded on original_source/mcp_server_odoo/workflow_tools.go
// (itself distilled from a tested odoo-ai-agentic workflow set).
package workflow

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/access"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/apierror"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
)

// Handler implements every multi-step business-process MCP tool.
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

// Register adds every workflow tool to mcpServer.
func (h *Handler) Register(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "create_quotation",
		Description: "Create a sales quotation with order lines for a customer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"customer_id": map[string]interface{}{"type": "integer", "description": "Partner ID of the customer"},
				"product_lines": map[string]interface{}{
					"type":        "array",
					"description": "Order lines: each needs product_id and quantity, price_unit is optional",
					"items":       map[string]interface{}{"type": "object"},
				},
				"order_date": map[string]interface{}{"type": "string", "description": "Order date, YYYY-MM-DD; defaults to today"},
			},
			Required: []string{"customer_id", "product_lines"},
		},
	}, h.CreateQuotation)

	mcpServer.AddTool(mcp.Tool{
		Name:        "confirm_quotation",
		Description: "Confirm a draft quotation, converting it into a sales order",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"quotation_id": map[string]interface{}{"type": "integer"}},
			Required:   []string{"quotation_id"},
		},
	}, h.ConfirmQuotation)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_manufacturing_order",
		Description: "Create a manufacturing order for a product (requires the MRP module)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"product_id": map[string]interface{}{"type": "integer"},
				"quantity":   map[string]interface{}{"type": "number"},
				"origin":     map[string]interface{}{"type": "string", "description": "Source document reference, e.g. a sales order name"},
			},
			Required: []string{"product_id", "quantity"},
		},
	}, h.CreateManufacturingOrder)

	mcpServer.AddTool(mcp.Tool{
		Name:        "confirm_manufacturing_order",
		Description: "Confirm a manufacturing order and attempt to assign its raw materials",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"mo_id": map[string]interface{}{"type": "integer"}},
			Required:   []string{"mo_id"},
		},
	}, h.ConfirmManufacturingOrder)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_purchase_order",
		Description: "Create a purchase order for raw materials or products from a vendor",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vendor_id": map[string]interface{}{"type": "integer"},
				"product_lines": map[string]interface{}{
					"type":        "array",
					"description": "Purchase lines: each needs product_id, quantity, and price_unit",
					"items":       map[string]interface{}{"type": "object"},
				},
			},
			Required: []string{"vendor_id", "product_lines"},
		},
	}, h.CreatePurchaseOrder)

	mcpServer.AddTool(mcp.Tool{
		Name:        "confirm_purchase_order",
		Description: "Confirm a purchase order, creating its incoming shipment",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"po_id": map[string]interface{}{"type": "integer"}},
			Required:   []string{"po_id"},
		},
	}, h.ConfirmPurchaseOrder)

	mcpServer.AddTool(mcp.Tool{
		Name:        "receive_inventory",
		Description: "Validate an incoming shipment, receiving goods from a purchase order",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"picking_id": map[string]interface{}{"type": "integer", "description": "Stock picking id"},
				"po_name":    map[string]interface{}{"type": "string", "description": "Purchase order name, e.g. P00016"},
			},
		},
	}, h.ReceiveInventory)

	mcpServer.AddTool(mcp.Tool{
		Name:        "deliver_to_customer",
		Description: "Validate an outgoing delivery, shipping goods to a customer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"picking_id": map[string]interface{}{"type": "integer", "description": "Stock picking id"},
				"so_name":    map[string]interface{}{"type": "string", "description": "Sales order name, e.g. S00276"},
			},
		},
	}, h.DeliverToCustomer)

	mcpServer.AddTool(mcp.Tool{
		Name:        "create_bom",
		Description: "Create a Bill of Materials for a product (requires the MRP module)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"product_id": map[string]interface{}{"type": "integer", "description": "Finished product id"},
				"component_lines": map[string]interface{}{
					"type":        "array",
					"description": "Components: each needs product_id and quantity",
					"items":       map[string]interface{}{"type": "object"},
				},
				"bom_type": map[string]interface{}{"type": "string", "description": "normal, phantom, or subcontract; defaults to normal"},
			},
			Required: []string{"product_id", "component_lines"},
		},
	}, h.CreateBOM)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_workflow_status",
		Description: "Trace an order through its lifecycle: sale -> manufacturing -> purchase -> delivery",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_id":   map[string]interface{}{"type": "integer"},
				"order_type": map[string]interface{}{"type": "string", "description": "sale, purchase, or manufacturing; defaults to sale"},
			},
			Required: []string{"order_id"},
		},
	}, h.GetWorkflowStatus)
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	resp := apierror.FormatErrorResponse(err)
	return mcp.NewToolResultError(resp.Content[0].Text), nil
}

func (h *Handler) recordURL(model string, id int64) string {
	return h.conn.BuildRecordURL(model, id)
}

// readOne reads a single record by id and returns its first row, raising
// apierror.NotFound if nothing matched.
func (h *Handler) readOne(ctx context.Context, model string, id int64, fields odooclient.Fields, what string) (map[string]interface{}, error) {
	records, err := h.conn.Read(ctx, odooclient.Model(model), []int64{id}, fields, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apierror.NotFound("%s with ID %d not found", what, id)
	}
	return records[0], nil
}

func many2oneLabel(v interface{}) string {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 2 {
		return ""
	}
	label, _ := pair[1].(string)
	return label
}

func many2oneID(v interface{}) (int64, bool) {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 1 {
		return 0, false
	}
	switch id := pair[0].(type) {
	case int64:
		return id, true
	case int:
		return int64(id), true
	case float64:
		return int64(id), true
	}
	return 0, false
}

type createQuotationArgs struct {
	CustomerID   int64                    `json:"customer_id"`
	ProductLines []map[string]interface{} `json:"product_lines"`
	OrderDate    string                   `json:"order_date"`
}

// CreateQuotation implements the create_quotation tool.
func (h *Handler) CreateQuotation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createQuotationArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "sale.order", "create"); err != nil {
		return errorResult(err)
	}

	if _, err := h.readOne(ctx, "res.partner", args.CustomerID, odooclient.Fields{"name"}, "Customer"); err != nil {
		return errorResult(err)
	}

	orderLines, err := buildO2MLines(args.ProductLines, []string{"product_id", "quantity"}, func(line map[string]interface{}) map[string]interface{} {
		data := map[string]interface{}{
			"product_id":      line["product_id"],
			"product_uom_qty": line["quantity"],
		}
		if price, ok := line["price_unit"]; ok {
			data["price_unit"] = price
		}
		return data
	})
	if err != nil {
		return errorResult(apierror.Validation("%v", err))
	}

	quotationData := odooclient.Data{
		"partner_id": args.CustomerID,
		"order_line": orderLines,
	}
	if args.OrderDate != "" {
		quotationData["date_order"] = args.OrderDate
	}

	quotationID, err := h.conn.Create(ctx, "sale.order", quotationData, nil)
	if err != nil {
		return errorResult(err)
	}

	quotation, err := h.readOne(ctx, "sale.order", quotationID, odooclient.Fields{"name", "state", "amount_total", "partner_id"}, "Quotation")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":       true,
		"quotation_id":  quotationID,
		"quotation_name": quotation["name"],
		"customer":      many2oneLabel(quotation["partner_id"]),
		"total":         quotation["amount_total"],
		"state":         quotation["state"],
		"url":           h.recordURL("sale.order", quotationID),
		"message":       fmt.Sprintf("Successfully created quotation %v", quotation["name"]),
	}), nil
}

type confirmQuotationArgs struct {
	QuotationID int64 `json:"quotation_id"`
}

// ConfirmQuotation implements the confirm_quotation tool.
func (h *Handler) ConfirmQuotation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args confirmQuotationArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "sale.order", "write"); err != nil {
		return errorResult(err)
	}

	quotation, err := h.readOne(ctx, "sale.order", args.QuotationID, odooclient.Fields{"name", "state", "amount_total"}, "Quotation")
	if err != nil {
		return errorResult(err)
	}
	if quotation["state"] != "draft" {
		return errorResult(apierror.Validation("quotation %v is in state '%v', cannot confirm (must be 'draft')", quotation["name"], quotation["state"]))
	}

	if err := h.conn.Execute(ctx, "sale.order", "action_confirm", []interface{}{args.QuotationID}, nil, nil); err != nil {
		return errorResult(err)
	}

	updated, err := h.readOne(ctx, "sale.order", args.QuotationID, odooclient.Fields{"name", "state", "amount_total"}, "Quotation")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":    true,
		"order_id":   args.QuotationID,
		"order_name": updated["name"],
		"state":      updated["state"],
		"total":      updated["amount_total"],
		"url":        h.recordURL("sale.order", args.QuotationID),
		"message":    fmt.Sprintf("Successfully confirmed quotation %v -> sales order", updated["name"]),
	}), nil
}

type createMOArgs struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	Origin    string  `json:"origin"`
}

// CreateManufacturingOrder implements the create_manufacturing_order tool.
func (h *Handler) CreateManufacturingOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createMOArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "mrp.production", "create"); err != nil {
		return errorResult(apierror.Validation("MRP (Manufacturing) module not installed or not accessible. Install the Manufacturing app in Odoo first."))
	}

	if _, err := h.readOne(ctx, "product.product", args.ProductID, odooclient.Fields{"name"}, "Product"); err != nil {
		return errorResult(err)
	}

	moData := odooclient.Data{
		"product_id": args.ProductID,
		"product_qty": args.Quantity,
	}
	if args.Origin != "" {
		moData["origin"] = args.Origin
	}

	moID, err := h.conn.Create(ctx, "mrp.production", moData, nil)
	if err != nil {
		return errorResult(err)
	}

	mo, err := h.readOne(ctx, "mrp.production", moID, odooclient.Fields{"name", "state", "product_qty", "product_id"}, "Manufacturing order")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":  true,
		"mo_id":    moID,
		"mo_name":  mo["name"],
		"product":  many2oneLabel(mo["product_id"]),
		"quantity": mo["product_qty"],
		"state":    mo["state"],
		"url":      h.recordURL("mrp.production", moID),
		"message":  fmt.Sprintf("Successfully created manufacturing order %v", mo["name"]),
	}), nil
}

type confirmMOArgs struct {
	MOID int64 `json:"mo_id"`
}

// ConfirmManufacturingOrder implements the confirm_manufacturing_order
// tool. Material assignment is best-effort: a failure there is logged and
// swallowed rather than failing the whole confirmation, since the order is
// already confirmed and assignment can be retried later from the UI.
func (h *Handler) ConfirmManufacturingOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args confirmMOArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "mrp.production", "write"); err != nil {
		return errorResult(err)
	}

	if _, err := h.readOne(ctx, "mrp.production", args.MOID, odooclient.Fields{"name", "state"}, "Manufacturing order"); err != nil {
		return errorResult(err)
	}

	if err := h.conn.Execute(ctx, "mrp.production", "action_confirm", []interface{}{args.MOID}, nil, nil); err != nil {
		return errorResult(err)
	}

	if err := h.conn.Execute(ctx, "mrp.production", "action_assign", []interface{}{args.MOID}, nil, nil); err != nil {
		h.logger.Warn("could not auto-assign materials", zap.Int64("mo_id", args.MOID), zap.Error(err))
	}

	updated, err := h.readOne(ctx, "mrp.production", args.MOID, odooclient.Fields{"name", "state", "product_qty"}, "Manufacturing order")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":  true,
		"mo_id":    args.MOID,
		"mo_name":  updated["name"],
		"state":    updated["state"],
		"quantity": updated["product_qty"],
		"url":      h.recordURL("mrp.production", args.MOID),
		"message":  fmt.Sprintf("Successfully confirmed manufacturing order %v", updated["name"]),
	}), nil
}

type createPOArgs struct {
	VendorID     int64                    `json:"vendor_id"`
	ProductLines []map[string]interface{} `json:"product_lines"`
}

// CreatePurchaseOrder implements the create_purchase_order tool.
func (h *Handler) CreatePurchaseOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createPOArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "purchase.order", "create"); err != nil {
		return errorResult(err)
	}

	if _, err := h.readOne(ctx, "res.partner", args.VendorID, odooclient.Fields{"name"}, "Vendor"); err != nil {
		return errorResult(err)
	}

	orderLines, err := buildO2MLines(args.ProductLines, []string{"product_id", "quantity", "price_unit"}, func(line map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"product_id":  line["product_id"],
			"product_qty": line["quantity"],
			"price_unit":  line["price_unit"],
		}
	})
	if err != nil {
		return errorResult(apierror.Validation("%v", err))
	}

	poID, err := h.conn.Create(ctx, "purchase.order", odooclient.Data{
		"partner_id": args.VendorID,
		"order_line": orderLines,
	}, nil)
	if err != nil {
		return errorResult(err)
	}

	po, err := h.readOne(ctx, "purchase.order", poID, odooclient.Fields{"name", "state", "amount_total", "partner_id"}, "Purchase order")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success": true,
		"po_id":   poID,
		"po_name": po["name"],
		"vendor":  many2oneLabel(po["partner_id"]),
		"total":   po["amount_total"],
		"state":   po["state"],
		"url":     h.recordURL("purchase.order", poID),
		"message": fmt.Sprintf("Successfully created purchase order %v", po["name"]),
	}), nil
}

type confirmPOArgs struct {
	POID int64 `json:"po_id"`
}

// ConfirmPurchaseOrder implements the confirm_purchase_order tool.
func (h *Handler) ConfirmPurchaseOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args confirmPOArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "purchase.order", "write"); err != nil {
		return errorResult(err)
	}

	if _, err := h.readOne(ctx, "purchase.order", args.POID, odooclient.Fields{"name", "state"}, "Purchase order"); err != nil {
		return errorResult(err)
	}

	if err := h.conn.Execute(ctx, "purchase.order", "button_confirm", []interface{}{args.POID}, nil, nil); err != nil {
		return errorResult(err)
	}

	updated, err := h.readOne(ctx, "purchase.order", args.POID, odooclient.Fields{"name", "state", "amount_total"}, "Purchase order")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success": true,
		"po_id":   args.POID,
		"po_name": updated["name"],
		"state":   updated["state"],
		"total":   updated["amount_total"],
		"url":     h.recordURL("purchase.order", args.POID),
		"message": fmt.Sprintf("Successfully confirmed purchase order %v", updated["name"]),
	}), nil
}

// resolvePicking finds a stock.picking id directly, or by origin/direction
// when the caller names the originating order instead.
func (h *Handler) resolvePicking(ctx context.Context, pickingID int64, origin, direction, what string) (int64, error) {
	if pickingID != 0 {
		return pickingID, nil
	}
	if origin == "" {
		return 0, apierror.Validation("either picking_id or %s must be provided", what)
	}

	domain := odooclient.Domain{
		odooclient.DomainCondition{"origin", "=", origin},
		odooclient.DomainCondition{"picking_type_code", "=", direction},
	}
	ids, err := h.conn.Search(ctx, "stock.picking", domain, &odooclient.Options{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apierror.NotFound("no %s shipment found for %s", direction, origin)
	}
	return ids[0], nil
}

// validatePicking runs the assign-then-validate pair a warehouse operator
// would click through in the UI. The pair is best-effort: some picking
// configurations require manual intervention (backorders, serial numbers),
// and a failure there should surface as a picking still in its prior state,
// not as a tool failure. button_validate only runs once action_assign
// succeeds, matching the single try/except block this is grounded on.
func (h *Handler) validatePicking(ctx context.Context, pickingID int64) {
	if err := h.conn.Execute(ctx, "stock.picking", "action_assign", []interface{}{pickingID}, nil, nil); err != nil {
		h.logger.Warn("picking validation may require UI", zap.Int64("picking_id", pickingID), zap.Error(err))
		return
	}
	if err := h.conn.Execute(ctx, "stock.picking", "button_validate", []interface{}{pickingID}, nil, nil); err != nil {
		h.logger.Warn("picking validation may require UI", zap.Int64("picking_id", pickingID), zap.Error(err))
	}
}

type receiveInventoryArgs struct {
	PickingID int64  `json:"picking_id"`
	POName    string `json:"po_name"`
}

// ReceiveInventory implements the receive_inventory tool.
func (h *Handler) ReceiveInventory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args receiveInventoryArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "stock.picking", "write"); err != nil {
		return errorResult(err)
	}

	pickingID, err := h.resolvePicking(ctx, args.PickingID, args.POName, "incoming", "po_name")
	if err != nil {
		return errorResult(err)
	}
	if _, err := h.readOne(ctx, "stock.picking", pickingID, odooclient.Fields{"name", "state", "origin"}, "Stock picking"); err != nil {
		return errorResult(err)
	}

	h.validatePicking(ctx, pickingID)

	updated, err := h.readOne(ctx, "stock.picking", pickingID, odooclient.Fields{"name", "state", "origin"}, "Stock picking")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":      true,
		"picking_id":   pickingID,
		"picking_name": updated["name"],
		"origin":       updated["origin"],
		"state":        updated["state"],
		"url":          h.recordURL("stock.picking", pickingID),
		"message":      fmt.Sprintf("Successfully received inventory: %v", updated["name"]),
	}), nil
}

type deliverToCustomerArgs struct {
	PickingID int64  `json:"picking_id"`
	SOName    string `json:"so_name"`
}

// DeliverToCustomer implements the deliver_to_customer tool.
func (h *Handler) DeliverToCustomer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args deliverToCustomerArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	if err := h.access.ValidateModelAccess(ctx, "stock.picking", "write"); err != nil {
		return errorResult(err)
	}

	pickingID, err := h.resolvePicking(ctx, args.PickingID, args.SOName, "outgoing", "so_name")
	if err != nil {
		return errorResult(err)
	}
	if _, err := h.readOne(ctx, "stock.picking", pickingID, odooclient.Fields{"name", "state", "origin"}, "Stock picking"); err != nil {
		return errorResult(err)
	}

	h.validatePicking(ctx, pickingID)

	updated, err := h.readOne(ctx, "stock.picking", pickingID, odooclient.Fields{"name", "state", "origin"}, "Stock picking")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":      true,
		"picking_id":   pickingID,
		"picking_name": updated["name"],
		"origin":       updated["origin"],
		"state":        updated["state"],
		"url":          h.recordURL("stock.picking", pickingID),
		"message":      fmt.Sprintf("Successfully delivered to customer: %v", updated["name"]),
	}), nil
}

type createBOMArgs struct {
	ProductID      int64                    `json:"product_id"`
	ComponentLines []map[string]interface{} `json:"component_lines"`
	BOMType        string                   `json:"bom_type"`
}

// CreateBOM implements the create_bom tool.
func (h *Handler) CreateBOM(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createBOMArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	bomType := args.BOMType
	if bomType == "" {
		bomType = "normal"
	}

	if err := h.access.ValidateModelAccess(ctx, "mrp.bom", "create"); err != nil {
		return errorResult(apierror.Validation("MRP (Manufacturing) module not installed or not accessible"))
	}

	product, err := h.readOne(ctx, "product.product", args.ProductID, odooclient.Fields{"name", "product_tmpl_id"}, "Product")
	if err != nil {
		return errorResult(err)
	}
	templateID, ok := many2oneID(product["product_tmpl_id"])
	if !ok {
		return errorResult(apierror.Server("product %d has no product template", args.ProductID))
	}

	bomLines, err := buildO2MLines(args.ComponentLines, []string{"product_id", "quantity"}, func(line map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"product_id":  line["product_id"],
			"product_qty": line["quantity"],
		}
	})
	if err != nil {
		return errorResult(apierror.Validation("%v", err))
	}

	bomID, err := h.conn.Create(ctx, "mrp.bom", odooclient.Data{
		"product_tmpl_id": templateID,
		"product_qty":     1.0,
		"type":            bomType,
		"bom_line_ids":    bomLines,
	}, nil)
	if err != nil {
		return errorResult(err)
	}

	bom, err := h.readOne(ctx, "mrp.bom", bomID, odooclient.Fields{"product_tmpl_id", "product_qty", "type"}, "Bill of materials")
	if err != nil {
		return errorResult(err)
	}

	return mcp.NewToolResultStructuredOnly(map[string]interface{}{
		"success":          true,
		"bom_id":           bomID,
		"product":          product["name"],
		"product_id":       args.ProductID,
		"template_id":      templateID,
		"components_count": len(args.ComponentLines),
		"type":             bom["type"],
		"url":              h.recordURL("mrp.bom", bomID),
		"message":          fmt.Sprintf("Successfully created BOM for %v", product["name"]),
	}), nil
}

type workflowStatusArgs struct {
	OrderID   int64  `json:"order_id"`
	OrderType string `json:"order_type"`
}

// GetWorkflowStatus implements the get_workflow_status tool, tracing an
// order through sale -> manufacturing -> purchase -> delivery. Related
// lookups on other models are best-effort: a model that is missing or
// inaccessible just omits that section of the status rather than failing
// the whole call.
func (h *Handler) GetWorkflowStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args workflowStatusArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	orderType := args.OrderType
	if orderType == "" {
		orderType = "sale"
	}

	status := map[string]interface{}{"order_type": orderType, "order_id": args.OrderID}

	switch orderType {
	case "sale":
		if err := h.access.ValidateModelAccess(ctx, "sale.order", "read"); err != nil {
			return errorResult(err)
		}
		order, err := h.readOne(ctx, "sale.order", args.OrderID, odooclient.Fields{"name", "state", "amount_total", "partner_id"}, "Sales order")
		if err != nil {
			return errorResult(err)
		}
		status["order"] = order
		orderName, _ := order["name"].(string)

		if mos := h.findRelated(ctx, "mrp.production", orderName, "", odooclient.Fields{"name", "state", "product_qty"}); mos != nil {
			status["manufacturing_orders"] = mos
		}
		if deliveries := h.findRelated(ctx, "stock.picking", orderName, "outgoing", odooclient.Fields{"name", "state"}); deliveries != nil {
			status["deliveries"] = deliveries
		}

	case "purchase":
		if err := h.access.ValidateModelAccess(ctx, "purchase.order", "read"); err != nil {
			return errorResult(err)
		}
		order, err := h.readOne(ctx, "purchase.order", args.OrderID, odooclient.Fields{"name", "state", "amount_total", "partner_id"}, "Purchase order")
		if err != nil {
			return errorResult(err)
		}
		status["order"] = order
		orderName, _ := order["name"].(string)

		if receipts := h.findRelated(ctx, "stock.picking", orderName, "incoming", odooclient.Fields{"name", "state"}); receipts != nil {
			status["receipts"] = receipts
		}

	case "manufacturing":
		if err := h.access.ValidateModelAccess(ctx, "mrp.production", "read"); err != nil {
			return errorResult(err)
		}
		order, err := h.readOne(ctx, "mrp.production", args.OrderID, odooclient.Fields{"name", "state", "product_qty", "product_id", "origin"}, "Manufacturing order")
		if err != nil {
			return errorResult(err)
		}
		status["order"] = order

	default:
		return errorResult(apierror.Validation("invalid order_type: %s. Must be 'sale', 'purchase', or 'manufacturing'", orderType))
	}

	return mcp.NewToolResultStructuredOnly(status), nil
}

// findRelated searches model by origin (and optionally picking direction),
// swallowing errors since these related-record lookups are advisory.
func (h *Handler) findRelated(ctx context.Context, model, origin, direction string, fields odooclient.Fields) []map[string]interface{} {
	domain := odooclient.Domain{odooclient.DomainCondition{"origin", "=", origin}}
	if direction != "" {
		domain = append(domain, odooclient.DomainCondition{"picking_type_code", "=", direction})
	}
	ids, err := h.conn.Search(ctx, odooclient.Model(model), domain, nil)
	if err != nil || len(ids) == 0 {
		return nil
	}
	records, err := h.conn.Read(ctx, odooclient.Model(model), ids, fields, nil)
	if err != nil {
		return nil
	}
	return records
}

// buildO2MLines converts a list of flat field maps into Odoo's one2many
// (0, 0, values) create-command triples, after checking every line carries
// the required field names. Every offending line is reported together via
// multierr instead of stopping at the first bad one, so a caller fixing a
// multi-line request doesn't have to resubmit once per mistake.
func buildO2MLines(lines []map[string]interface{}, required []string, build func(map[string]interface{}) map[string]interface{}) ([]interface{}, error) {
	var validationErr error
	out := make([]interface{}, 0, len(lines))
	for i, line := range lines {
		missing := false
		for _, field := range required {
			if _, ok := line[field]; !ok {
				validationErr = multierr.Append(validationErr, fmt.Errorf("line %d: missing required field %q (needs %v)", i, field, required))
				missing = true
			}
		}
		if missing {
			continue
		}
		out = append(out, []interface{}{0, 0, build(line)})
	}
	if validationErr != nil {
		return nil, validationErr
	}
	return out, nil
}
