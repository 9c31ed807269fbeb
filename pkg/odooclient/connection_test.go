package odooclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
)

func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	cfg := &config.Config{URL: "https://erp.example.com", APIKey: "secret", Database: "prod"}
	conn, err := NewConnection(cfg, zap.NewNop())
	require.NoError(t, err)
	return conn
}

func TestParseServerMajor(t *testing.T) {
	cases := map[string]int{
		"17.0":      17,
		"18.0+e":    18,
		"saas~17.2": 17,
		"garbage":   -1,
		"":          -1,
	}
	for version, want := range cases {
		assert.Equal(t, want, parseServerMajor(version), version)
	}
}

func TestBuildRecordURL_ModernVersionUsesOdooPath(t *testing.T) {
	conn := newTestConnection(t)
	conn.serverMajor = 18
	url := conn.BuildRecordURL("res.partner", 42)
	assert.Equal(t, "https://erp.example.com/odoo/res.partner/42", url)
}

func TestBuildRecordURL_LegacyVersionUsesWebHash(t *testing.T) {
	conn := newTestConnection(t)
	conn.serverMajor = 16
	url := conn.BuildRecordURL("res.partner", 42)
	assert.Equal(t, "https://erp.example.com/web#id=42&model=res.partner&view_type=form", url)
}

func TestInvalidateRecords_RemovesOnlyNamedIDs(t *testing.T) {
	conn := newTestConnection(t)
	conn.recordCache.Add(recordKey{model: "res.partner", id: 1}, map[string]interface{}{"id": int64(1)})
	conn.recordCache.Add(recordKey{model: "res.partner", id: 2}, map[string]interface{}{"id": int64(2)})

	conn.invalidateRecords("res.partner", []int64{1})

	_, ok1 := conn.recordCache.Get(recordKey{model: "res.partner", id: 1})
	_, ok2 := conn.recordCache.Get(recordKey{model: "res.partner", id: 2})
	assert.False(t, ok1)
	assert.True(t, ok2)
}

func TestInvalidateModel_RemovesOnlyThatModelsEntries(t *testing.T) {
	conn := newTestConnection(t)
	conn.recordCache.Add(recordKey{model: "res.partner", id: 1}, map[string]interface{}{"id": int64(1)})
	conn.recordCache.Add(recordKey{model: "sale.order", id: 1}, map[string]interface{}{"id": int64(1)})

	conn.invalidateModel("res.partner")

	_, ok1 := conn.recordCache.Get(recordKey{model: "res.partner", id: 1})
	_, ok2 := conn.recordCache.Get(recordKey{model: "sale.order", id: 1})
	assert.False(t, ok1)
	assert.True(t, ok2)
}

func TestAuthenticated_FalseBeforeOpen(t *testing.T) {
	conn := newTestConnection(t)
	assert.False(t, conn.Authenticated())
}

func TestMergeExtra_DoesNotMutateInputs(t *testing.T) {
	base := map[string]interface{}{"fields": []string{"name"}}
	merged := mergeExtra(base, map[string]interface{}{"limit": 5})
	assert.Len(t, base, 1)
	assert.Equal(t, 5, merged["limit"])
	assert.Equal(t, []string{"name"}, merged["fields"])
}

func TestRecordID_HandlesIntAndInt64(t *testing.T) {
	id, ok := recordID(map[string]interface{}{"id": int64(7)})
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = recordID(map[string]interface{}{"id": 9})
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	_, ok = recordID(map[string]interface{}{"id": "oops"})
	assert.False(t, ok)
}
