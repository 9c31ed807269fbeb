package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/uri"
)

func TestParseIDList(t *testing.T) {
	ids, skipped := parseIDList("1,2, 3")
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Empty(t, skipped)
}

func TestParseIDList_Empty(t *testing.T) {
	ids, skipped := parseIDList("")
	assert.Nil(t, ids)
	assert.Nil(t, skipped)
}

func TestParseIDList_SkipsNonNumericAndNonPositiveTokens(t *testing.T) {
	ids, skipped := parseIDList("1,abc,0,-2,3")
	assert.Equal(t, []int64{1, 3}, ids)
	assert.Equal(t, []string{"abc", "0", "-2"}, skipped)
}

func TestParseIDList_AllInvalidLeavesNoValidIDs(t *testing.T) {
	ids, skipped := parseIDList("abc,def")
	assert.Empty(t, ids)
	assert.Equal(t, []string{"abc", "def"}, skipped)
}

func TestIntParam_FallsBackOnMissingOrInvalid(t *testing.T) {
	parsed, err := uri.Parse("odoo://res.partner/search?limit=not-a-number")
	require.NoError(t, err)
	assert.Equal(t, 20, intParam(parsed, "limit", 20))
	assert.Equal(t, 20, intParam(parsed, "missing", 20))
}

func TestIntParam_ParsesValidValue(t *testing.T) {
	parsed, err := uri.Parse("odoo://res.partner/search?limit=50")
	require.NoError(t, err)
	assert.Equal(t, 50, intParam(parsed, "limit", 20))
}
