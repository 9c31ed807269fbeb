package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildO2MLines_BuildsCreateCommandTriples(t *testing.T) {
	lines := []map[string]interface{}{
		{"product_id": int64(123), "quantity": 2.0, "price_unit": 350.0},
		{"product_id": int64(124), "quantity": 1.0},
	}

	out, err := buildO2MLines(lines, []string{"product_id", "quantity"}, func(line map[string]interface{}) map[string]interface{} {
		data := map[string]interface{}{
			"product_id":      line["product_id"],
			"product_uom_qty": line["quantity"],
		}
		if price, ok := line["price_unit"]; ok {
			data["price_unit"] = price
		}
		return data
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0].([]interface{})
	assert.Equal(t, 0, first[0])
	assert.Equal(t, 0, first[1])
	values := first[2].(map[string]interface{})
	assert.Equal(t, int64(123), values["product_id"])
	assert.Equal(t, 350.0, values["price_unit"])

	second := out[1].([]interface{})
	secondValues := second[2].(map[string]interface{})
	_, hasPrice := secondValues["price_unit"]
	assert.False(t, hasPrice)
}

func TestBuildO2MLines_RejectsMissingRequiredField(t *testing.T) {
	lines := []map[string]interface{}{{"product_id": int64(1)}}
	_, err := buildO2MLines(lines, []string{"product_id", "quantity"}, func(map[string]interface{}) map[string]interface{} { return nil })
	assert.Error(t, err)
}

func TestMany2oneLabel(t *testing.T) {
	assert.Equal(t, "Acme Corp", many2oneLabel([]interface{}{int64(7), "Acme Corp"}))
	assert.Equal(t, "", many2oneLabel(nil))
	assert.Equal(t, "", many2oneLabel(false))
}

func TestMany2oneID(t *testing.T) {
	id, ok := many2oneID([]interface{}{int64(42), "Table"})
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = many2oneID(nil)
	assert.False(t, ok)
}
