// Package uri parses and builds the odoo:// resource URIs MCP clients use
// to address records, searches, and metadata. Grounded on
// original_source/mcp_server_odoo/utils.py's parse_uri/build_resource_uri
// (kept stdlib-only per DESIGN.md: no pack library offers Odoo-specific URI
// or Python-literal domain parsing).
package uri

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
)

// Parsed is a decoded odoo:// resource URI.
type Parsed struct {
	Model     string
	Operation string
	Params    url.Values
}

var uriPattern = regexp.MustCompile(`^odoo://([^/]+)/([^?]+)(?:\?(.*))?$`)

// Parse decodes an odoo://model/operation[?query] URI.
func Parse(uri string) (*Parsed, error) {
	matches := uriPattern.FindStringSubmatch(uri)
	if matches == nil {
		return nil, fmt.Errorf("uri: invalid URI format: %s", uri)
	}

	params, err := url.ParseQuery(matches[3])
	if err != nil {
		return nil, fmt.Errorf("uri: invalid query string in %s: %w", uri, err)
	}

	return &Parsed{Model: matches[1], Operation: matches[2], Params: params}, nil
}

// Param returns the single value of key, or "" if absent.
func (p *Parsed) Param(key string) string {
	return p.Params.Get(key)
}

// Build constructs an odoo://model/operation[?query] URI. []interface{} and
// map[string]interface{} values in params are JSON-encoded before being
// percent-escaped, matching the bridge's original URI-building convention;
// any other value is rendered with fmt's %v.
func Build(model, operation string, params map[string]interface{}) string {
	base := fmt.Sprintf("odoo://%s/%s", model, operation)
	if len(params) == 0 {
		return base
	}

	query := make(url.Values, len(params))
	for key, value := range params {
		query.Set(key, encodeParamValue(value))
	}
	return base + "?" + query.Encode()
}

func encodeParamValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []interface{}, map[string]interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetModelDisplayName derives a user-friendly label from a technical model
// name, e.g. "res.partner" -> "Partner", "account.move.line" -> "Line".
func GetModelDisplayName(model string) string {
	parts := strings.Split(model, ".")
	name := parts[len(parts)-1]
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

const maxSanitizedLength = 1000

// SanitizeString strips control characters (preserving \n\r\t) and
// truncates value to a safe display length.
func SanitizeString(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
		}
	}
	sanitized := b.String()
	if len(sanitized) > maxSanitizedLength {
		sanitized = sanitized[:maxSanitizedLength] + "... (truncated)"
	}
	return sanitized
}

// ParseDomain parses a search domain given on the wire either as JSON
// (["|", ["name", "=", "Acme"], ["active", "=", true]]) or as Python-literal
// text (the same, but with True/False/None and single-quoted strings). JSON
// is tried first; Python-literal text falls back to a hand-written
// recursive-descent tokenizer (domain_literal.go) that only recognizes
// literals and never evaluates the input.
func ParseDomain(raw string) (odooclient.Domain, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return odooclient.Domain{}, nil
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	decoded = strings.TrimSpace(decoded)

	var value interface{}
	if err := json.Unmarshal([]byte(decoded), &value); err != nil {
		value, err = parsePythonLiteral(decoded)
		if err != nil {
			return nil, fmt.Errorf("uri: invalid domain format: %s", raw)
		}
	}

	rawConditions, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("uri: domain must be a list")
	}

	domain := make(odooclient.Domain, 0, len(rawConditions))
	for _, rawCond := range rawConditions {
		switch cond := rawCond.(type) {
		case string:
			domain = append(domain, odooclient.DomainCondition{cond})
		case []interface{}:
			if len(cond) != 3 {
				return nil, fmt.Errorf("uri: each domain condition must be a 3-element list")
			}
			domain = append(domain, odooclient.DomainCondition(cond))
		default:
			return nil, fmt.Errorf("uri: invalid domain condition: %v", rawCond)
		}
	}
	return domain, nil
}
