// types.go — domain value types for building Odoo RPC calls, generalized
// from the teacher's types.go.
package odooclient

// Model is an Odoo model's technical name, e.g. "res.partner". It matches
// [a-z_][a-z0-9_.]*.
type Model string

// A small set of models referenced directly by WorkflowHandler; the bridge
// otherwise treats model names as opaque strings supplied by the client.
const (
	ModelResPartner       Model = "res.partner"
	ModelSaleOrder        Model = "sale.order"
	ModelSaleOrderLine    Model = "sale.order.line"
	ModelPurchaseOrder    Model = "purchase.order"
	ModelPurchaseOrderLine Model = "purchase.order.line"
	ModelMrpProduction    Model = "mrp.production"
	ModelMrpBom           Model = "mrp.bom"
	ModelMrpBomLine       Model = "mrp.bom.line"
	ModelStockPicking     Model = "stock.picking"
	ModelProductProduct   Model = "product.product"
	ModelAccountMove      Model = "account.move"
	ModelIrModel          Model = "ir.model"
)

// DomainCondition is one element of a search Domain: either a 3-element
// [field, operator, value] triple or a single-element logical operator
// ("&", "|", "!").
type DomainCondition []interface{}

// Domain is a flat, ordered sequence of DomainCondition elements expressing
// an Odoo search predicate in prefix notation.
type Domain []DomainCondition

// ToRPC converts Domain into the []interface{} shape Odoo's RPC expects,
// unwrapping single-element logical-operator conditions into bare strings.
func (d Domain) ToRPC() []interface{} {
	if d == nil {
		return []interface{}{}
	}

	rpcDomain := make([]interface{}, 0, len(d))
	for _, cond := range d {
		if len(cond) == 1 {
			if op, ok := cond[0].(string); ok {
				rpcDomain = append(rpcDomain, op)
				continue
			}
		}
		rpcDomain = append(rpcDomain, []interface{}(cond))
	}
	return rpcDomain
}

// Fields is the list of field names to retrieve in a read/search_read call.
type Fields []string

// ToRPC converts Fields to the []string Odoo's RPC expects.
func (f Fields) ToRPC() []string {
	return []string(f)
}

// OdooContext is the 'context' dict carried in an execute_kw call's kwargs,
// e.g. {"lang": "es_ES", "tz": "Europe/Madrid"}.
type OdooContext map[string]interface{}

// Clone returns a shallow copy of ctx, used so Connection never mutates a
// caller-supplied context map in place.
func (ctx OdooContext) Clone() OdooContext {
	cloned := make(OdooContext, len(ctx))
	for k, v := range ctx {
		cloned[k] = v
	}
	return cloned
}

// Options carries the common kwargs of an execute_kw call: limit, offset,
// order, and the Odoo context.
type Options struct {
	Context OdooContext
	Limit   int
	Offset  int
	Order   string
	Extra   map[string]interface{}
}

// ToRPC converts Options into the map[string]interface{} kwargs shape,
// omitting zero-valued limit/offset/order/context as Odoo expects.
func (o *Options) ToRPC() map[string]interface{} {
	rpcOptions := make(map[string]interface{})
	if o == nil {
		return rpcOptions
	}
	if len(o.Context) > 0 {
		rpcOptions["context"] = map[string]interface{}(o.Context)
	}
	if o.Limit > 0 {
		rpcOptions["limit"] = o.Limit
	}
	if o.Offset > 0 {
		rpcOptions["offset"] = o.Offset
	}
	if o.Order != "" {
		rpcOptions["order"] = o.Order
	}
	for k, v := range o.Extra {
		rpcOptions[k] = v
	}
	return rpcOptions
}

// Data is a field-name-to-value map for create/write payloads.
type Data map[string]interface{}

// ToRPC converts Data to the map[string]interface{} Odoo's RPC expects.
func (d Data) ToRPC() map[string]interface{} {
	return map[string]interface{}(d)
}
