// Package format renders Odoo records into the human-readable text MCP
// resources return, embedding odoo:// links for relational fields. Grounded
// on original_source/mcp_server_odoo/data_formatting.py (kept stdlib-only
// per DESIGN.md: no pack library renders Odoo field types into prose).
package format

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
)

// priorityFields lists the field names format_record promotes to the top of
// a record's rendering, in order.
var priorityFields = []string{"name", "display_name", "code", "reference", "number"}

// excludedFields lists technical bookkeeping fields never rendered.
var excludedFields = map[string]struct{}{
	"id": {}, "__last_update": {}, "create_uid": {}, "create_date": {},
	"write_uid": {}, "write_date": {}, "message_ids": {}, "message_follower_ids": {},
}

// fieldFormatterFunc renders one field's value given its metadata. fieldName
// is the technical column name (used to resolve a many2one's own relation
// when fields_get has none); label is what's actually shown to the reader.
type fieldFormatterFunc func(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string

var registry = map[string]fieldFormatterFunc{
	"char":      formatPlain,
	"text":      formatPlain,
	"integer":   formatPlain,
	"float":     formatFloat,
	"monetary":  formatMonetary,
	"date":      formatPlain,
	"datetime":  formatPlain,
	"selection": formatPlain,
	"boolean":   formatBoolean,
	"many2one":  formatMany2one,
	"one2many":  formatToMany,
	"many2many": formatToMany,
	"binary":    formatBinary,
}

// Formatter renders records and field metadata into display text. It holds
// a Connection so relational fields can resolve their target model's
// relation name.
type Formatter struct {
	conn *odooclient.Connection
}

// New builds a Formatter backed by conn.
func New(conn *odooclient.Connection) *Formatter {
	return &Formatter{conn: conn}
}

func indentString(indent int) string {
	return strings.Repeat("  ", indent)
}

// FormatFieldValue renders a single field's value based on its declared
// type, falling back to a plain rendering for unknown types. fieldName is
// the technical column name, label what's shown to the reader (the two
// differ whenever fields_get reports a "string" for the field).
func (f *Formatter) FormatFieldValue(model, fieldName, label string, value interface{}, fieldType string, info odooclient.FieldInfo, indent int) string {
	if value == nil {
		return fmt.Sprintf("%s%s: Not set", indentString(indent), label)
	}
	if fn, ok := registry[fieldType]; ok {
		return fn(f, model, fieldName, label, value, info, indent)
	}
	return formatPlain(f, model, fieldName, label, value, info, indent)
}

func formatPlain(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	return fmt.Sprintf("%s%s: %v", indentString(indent), label, value)
}

func formatBoolean(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	if b, ok := value.(bool); ok && !b {
		return fmt.Sprintf("%s%s: No", indentString(indent), label)
	}
	return fmt.Sprintf("%s%s: Yes", indentString(indent), label)
}

// fieldDigits reads a field's "digits" fields_get attribute, shaped as
// [total, decimals] by Odoo, returning the decimals component and whether
// one was present at all.
func fieldDigits(info odooclient.FieldInfo) (int, bool) {
	raw, ok := info["digits"].([]interface{})
	if !ok || len(raw) != 2 {
		return 0, false
	}
	switch v := raw[1].(type) {
	case float64:
		return int(v), true
	case int64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func formatFloat(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	n, ok := toFloat(value)
	if !ok {
		return formatPlain(f, model, fieldName, label, value, info, indent)
	}
	decimals := 2
	if d, ok := fieldDigits(info); ok {
		decimals = d
	}
	return fmt.Sprintf("%s%s: %.*f", indentString(indent), label, decimals, n)
}

func formatMonetary(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	n, ok := toFloat(value)
	if !ok {
		return formatPlain(f, model, fieldName, label, value, info, indent)
	}
	decimals := 1
	if d, ok := fieldDigits(info); ok {
		decimals = d
	}
	symbol, _ := info["currency_symbol"].(string)
	if symbol != "" {
		return fmt.Sprintf("%s%s: %s%.*f", indentString(indent), label, symbol, decimals, n)
	}
	return fmt.Sprintf("%s%s: %.*f", indentString(indent), label, decimals, n)
}

// many2oneRelation resolves the URI model segment for a many2one field:
// the related model from fields_get, falling back to the field's own
// technical name when fields_get reports no relation (a degenerate or
// stale metadata case).
func many2oneRelation(fieldName string, info odooclient.FieldInfo) string {
	if relation, ok := info["relation"].(string); ok && relation != "" {
		return relation
	}
	return fieldName
}

func formatMany2one(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	relation := many2oneRelation(fieldName, info)

	if pair, ok := value.([]interface{}); ok && len(pair) == 2 {
		relatedID, relatedName := pair[0], pair[1]
		return fmt.Sprintf("%s%s: %v [odoo://%s/record/%v]", indentString(indent), label, relatedName, relation, relatedID)
	}
	if id, ok := toFloat(value); ok {
		return fmt.Sprintf("%s%s: Record #%d [odoo://%s/record/%d]", indentString(indent), label, int64(id), relation, int64(id))
	}
	return fmt.Sprintf("%s%s: %v", indentString(indent), label, value)
}

func formatToMany(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	ids, ok := value.([]interface{})
	if !ok {
		return fmt.Sprintf("%s%s: %v", indentString(indent), label, value)
	}
	count := len(ids)
	relation, _ := info["relation"].(string)

	if relation != "" && count > 0 {
		idStrs := make([]string, 0, count)
		for _, id := range ids {
			idStrs = append(idStrs, fmt.Sprintf("%v", id))
		}
		return fmt.Sprintf("%s%s: %d related records [odoo://%s/browse?ids=%s]",
			indentString(indent), label, count, relation, strings.Join(idStrs, ","))
	}
	return fmt.Sprintf("%s%s: %d related records", indentString(indent), label, count)
}

func formatBinary(f *Formatter, model, fieldName, label string, value interface{}, info odooclient.FieldInfo, indent int) string {
	return fmt.Sprintf("%s%s: [Binary data]", indentString(indent), label)
}

// fieldSortKey mirrors format_record's priority-then-alphabetical ordering:
// priority fields sort by their position in priorityFields, everything else
// sorts after them, by first byte.
func fieldSortKey(fieldName string) int {
	for i, pf := range priorityFields {
		if fieldName == pf {
			return i
		}
	}
	if fieldName == "" {
		return len(priorityFields)
	}
	return len(priorityFields) + int(fieldName[0])
}

// FormatRecord renders one record as "Resource: model/record/id" followed by
// one line per non-excluded field, priority fields first.
func (f *Formatter) FormatRecord(ctx context.Context, model string, record map[string]interface{}, includeHeader bool) (string, error) {
	fieldsInfo, err := f.conn.FieldsGet(ctx, odooclient.Model(model))
	if err != nil {
		return "", err
	}

	var lines []string
	if includeHeader {
		recordID := "unknown"
		if v, ok := record["id"]; ok {
			recordID = fmt.Sprintf("%v", v)
		}
		lines = append(lines, fmt.Sprintf("Resource: %s/record/%s", model, recordID))
	}

	fieldNames := make([]string, 0, len(record))
	for name := range record {
		fieldNames = append(fieldNames, name)
	}
	sort.SliceStable(fieldNames, func(i, j int) bool {
		ki, kj := fieldSortKey(fieldNames[i]), fieldSortKey(fieldNames[j])
		if ki != kj {
			return ki < kj
		}
		return fieldNames[i] < fieldNames[j]
	})

	for _, fieldName := range fieldNames {
		if _, excluded := excludedFields[fieldName]; excluded {
			continue
		}
		value := record[fieldName]
		info := fieldsInfo[fieldName]
		fieldType, _ := info["type"].(string)
		if fieldType == "" {
			fieldType = "char"
		}
		label, _ := info["string"].(string)
		if label == "" {
			label = fieldName
		}
		if fieldType == "monetary" {
			info = withCurrencySymbol(info, record)
		}
		lines = append(lines, f.FormatFieldValue(model, fieldName, label, value, fieldType, info, 0))
	}

	return strings.Join(lines, "\n"), nil
}

// withCurrencySymbol copies info with a "currency_symbol" entry added, read
// from the sibling currency field the record's own data carries (Odoo reads
// a many2one currency_field back as [id, name], where name is the currency
// code). Returns info unchanged if there's no currency_field to look up.
func withCurrencySymbol(info odooclient.FieldInfo, record map[string]interface{}) odooclient.FieldInfo {
	currencyField, _ := info["currency_field"].(string)
	if currencyField == "" {
		return info
	}
	pair, ok := record[currencyField].([]interface{})
	if !ok || len(pair) != 2 {
		return info
	}
	code, _ := pair[1].(string)
	if code == "" {
		return info
	}
	out := make(odooclient.FieldInfo, len(info)+1)
	for k, v := range info {
		out[k] = v
	}
	out["currency_symbol"] = code
	return out
}

// FormatSearchResults renders a page of search results with a header,
// numbered record links, and next/previous pagination links.
func FormatSearchResults(model string, records []map[string]interface{}, totalCount, limit, offset int, domain odooclient.Domain) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Search Results: %s (%d total matches)", model, totalCount))

	fromRecord := offset + 1
	toRecord := offset + limit
	if toRecord > totalCount {
		toRecord = totalCount
	}
	if totalCount > 0 {
		lines = append(lines, fmt.Sprintf("Showing: Records %d-%d of %d", fromRecord, toRecord, totalCount))
	}

	if len(records) > 0 {
		lines = append(lines, "", "Records:")
		nameOptions := []string{"name", "display_name", "code", "reference", "number"}
		for i, record := range records {
			recordID := record["id"]
			var recordName interface{}
			for _, nf := range nameOptions {
				if v, ok := record[nf]; ok && v != nil && v != false {
					recordName = v
					break
				}
			}
			if recordName == nil {
				recordName = fmt.Sprintf("Record #%v", recordID)
			}
			lines = append(lines, fmt.Sprintf("%d. %v [odoo://%s/record/%v]", i+1, recordName, model, recordID))
		}
	} else {
		lines = append(lines, "", "No records found matching the criteria.")
	}

	domainStr := domainToPythonRepr(domain)
	if totalCount > toRecord {
		nextOffset := offset + limit
		lines = append(lines, "", fmt.Sprintf("Next page: odoo://%s/search?domain=%s&offset=%d&limit=%d", model, domainStr, nextOffset, limit))
	}
	if offset > 0 {
		prevOffset := offset - limit
		if prevOffset < 0 {
			prevOffset = 0
		}
		lines = append(lines, fmt.Sprintf("Previous page: odoo://%s/search?domain=%s&offset=%d&limit=%d", model, domainStr, prevOffset, limit))
	}

	return strings.Join(lines, "\n")
}

// domainToPythonRepr renders domain compactly for pagination links: no
// spaces, double-quoted strings and lowercase true/false, i.e. JSON-style
// text that ParseDomain reads back.
func domainToPythonRepr(domain odooclient.Domain) string {
	parts := make([]string, 0, len(domain))
	for _, cond := range domain {
		if len(cond) == 1 {
			parts = append(parts, fmt.Sprintf("%q", cond[0]))
			continue
		}
		elems := make([]string, 0, len(cond))
		for _, v := range cond {
			elems = append(elems, reprValue(v))
		}
		parts = append(parts, "["+strings.Join(elems, ",")+"]")
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func reprValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%q", fmt.Sprintf("%v", t))
	}
}

// unsafeFieldTypes lists fields_get types excluded from a safe-field
// projection, since reading them can pull large binary/serialized payloads
// over the wire for no benefit to a text rendering.
var unsafeFieldTypes = map[string]struct{}{
	"binary": {}, "html": {}, "serialized": {},
}

// SafeFields filters a model's fields_get metadata down to the field names
// worth actually reading: no binary/html/serialized type, no name starting
// with an underscore. If the filter would leave nothing, it returns nil so
// the caller omits the fields projection entirely and reads everything.
func SafeFields(fieldsInfo map[string]odooclient.FieldInfo) odooclient.Fields {
	fields := make(odooclient.Fields, 0, len(fieldsInfo))
	for name, info := range fieldsInfo {
		if strings.HasPrefix(name, "_") {
			continue
		}
		fieldType, _ := info["type"].(string)
		if _, unsafe := unsafeFieldTypes[fieldType]; unsafe {
			continue
		}
		fields = append(fields, name)
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	return fields
}

// FormatFieldList renders a model's field metadata as one block per field.
func FormatFieldList(model string, fieldsInfo map[string]odooclient.FieldInfo) string {
	names := make([]string, 0, len(fieldsInfo))
	for name := range fieldsInfo {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{fmt.Sprintf("Fields for %s:", model), ""}
	for _, name := range names {
		info := fieldsInfo[name]
		fieldType, _ := info["type"].(string)
		if fieldType == "" {
			fieldType = "unknown"
		}
		label, _ := info["string"].(string)
		if label == "" {
			label = name
		}
		help, _ := info["help"].(string)

		lines = append(lines, fmt.Sprintf("%s (%s): %s", name, fieldType, label))
		if help != "" {
			lines = append(lines, "  Description: "+help)
		}
		if fieldType == "many2one" || fieldType == "one2many" || fieldType == "many2many" {
			if relation, _ := info["relation"].(string); relation != "" {
				lines = append(lines, "  Related model: "+relation)
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// HumanSize renders a byte count using the same binary-prefix thresholds a
// file manager would (B, KiB, MiB, ...).
func HumanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
