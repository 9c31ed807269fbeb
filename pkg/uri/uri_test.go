package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RecordURI(t *testing.T) {
	p, err := Parse("odoo://res.partner/record/42")
	require.NoError(t, err)
	assert.Equal(t, "res.partner", p.Model)
	assert.Equal(t, "record/42", p.Operation)
}

func TestParse_WithQuery(t *testing.T) {
	p, err := Parse("odoo://res.partner/search?domain=%5B%5D&limit=10")
	require.NoError(t, err)
	assert.Equal(t, "[]", p.Param("domain"))
	assert.Equal(t, "10", p.Param("limit"))
}

func TestParse_InvalidFormat(t *testing.T) {
	_, err := Parse("not-a-uri")
	assert.Error(t, err)
}

func TestBuild_RoundTrips(t *testing.T) {
	built := Build("res.partner", "search", map[string]interface{}{"limit": 10})
	parsed, err := Parse(built)
	require.NoError(t, err)
	assert.Equal(t, "res.partner", parsed.Model)
	assert.Equal(t, "search", parsed.Operation)
	assert.Equal(t, "10", parsed.Param("limit"))
}

func TestGetModelDisplayName(t *testing.T) {
	assert.Equal(t, "Partner", GetModelDisplayName("res.partner"))
	assert.Equal(t, "Sale Order Line", GetModelDisplayName("sale_order_line"))
}

func TestSanitizeString_TruncatesAndStripsControlChars(t *testing.T) {
	assert.Equal(t, "ab", SanitizeString("a\x00b"))
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	got := SanitizeString(string(long))
	assert.Contains(t, got, "(truncated)")
}

func TestParseDomain_JSON(t *testing.T) {
	domain, err := ParseDomain(`["&", ["name", "=", "Acme"], ["active", "=", true]]`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"name", "=", "Acme"}, []interface{}(domain[1]))
}

func TestParseDomain_PythonLiteral(t *testing.T) {
	domain, err := ParseDomain(`[('name', '=', 'Acme'), ('active', '=', True)]`)
	require.NoError(t, err)
	require.Len(t, domain, 2)
	assert.Equal(t, "Acme", domain[0][2])
	assert.Equal(t, true, domain[1][2])
}

func TestParseDomain_PythonLiteralWithNone(t *testing.T) {
	domain, err := ParseDomain(`[('parent_id', '=', None)]`)
	require.NoError(t, err)
	assert.Nil(t, domain[0][2])
}

func TestParseDomain_Empty(t *testing.T) {
	domain, err := ParseDomain("")
	require.NoError(t, err)
	assert.Empty(t, domain)
}

func TestParseDomain_InvalidConditionLength(t *testing.T) {
	_, err := ParseDomain(`[["name", "="]]`)
	assert.Error(t, err)
}

func TestParseDomain_Garbage(t *testing.T) {
	_, err := ParseDomain("not a domain at all {{{")
	assert.Error(t, err)
}
