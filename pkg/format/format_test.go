package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
)

func TestFormatFieldValue_Boolean(t *testing.T) {
	f := &Formatter{}
	assert.Equal(t, "Active: Yes", f.FormatFieldValue("res.partner", "active", "Active", true, "boolean", nil, 0))
	assert.Equal(t, "Active: No", f.FormatFieldValue("res.partner", "active", "Active", false, "boolean", nil, 0))
}

func TestFormatFieldValue_NilIsNotSet(t *testing.T) {
	f := &Formatter{}
	assert.Equal(t, "Parent: Not set", f.FormatFieldValue("res.partner", "parent_id", "Parent", nil, "many2one", nil, 0))
}

func TestFormatFieldValue_Many2one_UsesRelationForURI(t *testing.T) {
	f := &Formatter{}
	info := odooclient.FieldInfo{"relation": "res.partner"}
	got := f.FormatFieldValue("res.partner", "parent_id", "Customer", []interface{}{int64(7), "Acme Corp"}, "many2one", info, 0)
	assert.Equal(t, "Customer: Acme Corp [odoo://res.partner/record/7]", got)
}

func TestFormatFieldValue_Many2one_FallsBackToFieldNameWithoutRelation(t *testing.T) {
	f := &Formatter{}
	got := f.FormatFieldValue("res.partner", "parent_id", "Parent", []interface{}{int64(7), "Acme Corp"}, "many2one", nil, 0)
	assert.Equal(t, "Parent: Acme Corp [odoo://parent_id/record/7]", got)
}

func TestFormatFieldValue_Many2one_BareIntValue(t *testing.T) {
	f := &Formatter{}
	info := odooclient.FieldInfo{"relation": "res.partner"}
	got := f.FormatFieldValue("res.partner", "parent_id", "Parent", int64(7), "many2one", info, 0)
	assert.Equal(t, "Parent: Record #7 [odoo://res.partner/record/7]", got)
}

func TestFormatFieldValue_Float_DefaultsToTwoDecimals(t *testing.T) {
	f := &Formatter{}
	got := f.FormatFieldValue("product.product", "weight", "Weight", 1.5, "float", nil, 0)
	assert.Equal(t, "Weight: 1.50", got)
}

func TestFormatFieldValue_Float_DigitsOverride(t *testing.T) {
	f := &Formatter{}
	info := odooclient.FieldInfo{"digits": []interface{}{float64(16), float64(3)}}
	got := f.FormatFieldValue("product.product", "weight", "Weight", 1.5, "float", info, 0)
	assert.Equal(t, "Weight: 1.500", got)
}

func TestFormatFieldValue_Monetary_DefaultsToOneDecimal(t *testing.T) {
	f := &Formatter{}
	got := f.FormatFieldValue("sale.order", "amount_total", "Total", 42.0, "monetary", nil, 0)
	assert.Equal(t, "Total: 42.0", got)
}

func TestFormatFieldValue_Monetary_CurrencySymbolPrefix(t *testing.T) {
	f := &Formatter{}
	info := odooclient.FieldInfo{"currency_symbol": "USD"}
	got := f.FormatFieldValue("sale.order", "amount_total", "Total", 42.0, "monetary", info, 0)
	assert.Equal(t, "Total: USD42.0", got)
}

func TestFormatFieldValue_OneToMany(t *testing.T) {
	f := &Formatter{}
	info := odooclient.FieldInfo{"relation": "sale.order.line"}
	got := f.FormatFieldValue("sale.order", "order_line", "Order Lines", []interface{}{int64(1), int64(2)}, "one2many", info, 0)
	assert.Equal(t, "Order Lines: 2 related records [odoo://sale.order.line/browse?ids=1,2]", got)
}

func TestFormatFieldValue_OneToMany_NoRelationInfo(t *testing.T) {
	f := &Formatter{}
	got := f.FormatFieldValue("sale.order", "order_line", "Order Lines", []interface{}{int64(1)}, "one2many", nil, 0)
	assert.Equal(t, "Order Lines: 1 related records", got)
}

func TestFormatFieldValue_Binary(t *testing.T) {
	f := &Formatter{}
	assert.Equal(t, "Image: [Binary data]", f.FormatFieldValue("res.partner", "image", "Image", "base64...", "binary", nil, 0))
}

func TestFieldSortKey_PrioritizesNamedFields(t *testing.T) {
	assert.True(t, fieldSortKey("name") < fieldSortKey("zzz_field"))
	assert.True(t, fieldSortKey("display_name") < fieldSortKey("code"))
}

func TestFormatSearchResults_NoRecords(t *testing.T) {
	got := FormatSearchResults("res.partner", nil, 0, 20, 0, nil)
	assert.Contains(t, got, "No records found matching the criteria.")
}

func TestFormatSearchResults_WithPaginationLinks(t *testing.T) {
	records := []map[string]interface{}{
		{"id": int64(1), "name": "Acme"},
	}
	got := FormatSearchResults("res.partner", records, 50, 10, 10, odooclient.Domain{})
	assert.Contains(t, got, "Records 11-20 of 50")
	assert.Contains(t, got, "1. Acme [odoo://res.partner/record/1]")
	assert.Contains(t, got, "Next page:")
	assert.Contains(t, got, "Previous page:")
}

func TestFormatFieldList(t *testing.T) {
	fields := map[string]odooclient.FieldInfo{
		"name":      {"type": "char", "string": "Name"},
		"parent_id": {"type": "many2one", "string": "Parent", "relation": "res.partner"},
	}
	got := FormatFieldList("res.partner", fields)
	assert.Contains(t, got, "name (char): Name")
	assert.Contains(t, got, "parent_id (many2one): Parent")
	assert.Contains(t, got, "Related model: res.partner")
}

func TestSafeFields_ExcludesUnsafeTypesAndUnderscoreNames(t *testing.T) {
	fieldsInfo := map[string]odooclient.FieldInfo{
		"name":        {"type": "char"},
		"description": {"type": "html"},
		"photo":       {"type": "binary"},
		"notes":       {"type": "serialized"},
		"_internal":   {"type": "char"},
		"partner_id":  {"type": "many2one"},
	}
	got := SafeFields(fieldsInfo)
	assert.Contains(t, got, "name")
	assert.Contains(t, got, "partner_id")
	assert.NotContains(t, got, "description")
	assert.NotContains(t, got, "photo")
	assert.NotContains(t, got, "notes")
	assert.NotContains(t, got, "_internal")
}

func TestSafeFields_EmptyWhenEverythingIsUnsafe(t *testing.T) {
	fieldsInfo := map[string]odooclient.FieldInfo{
		"photo": {"type": "binary"},
		"body":  {"type": "html"},
	}
	assert.Nil(t, SafeFields(fieldsInfo))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.0 KiB", HumanSize(1024))
	assert.Equal(t, "1.5 KiB", HumanSize(1536))
}
