package odooclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomain_ToRPC_UnwrapsLogicalOperators(t *testing.T) {
	domain := Domain{
		{"|"},
		{"name", "=", "Acme"},
		{"active", "=", true},
	}
	rpc := domain.ToRPC()
	assert.Equal(t, "|", rpc[0])
	assert.Equal(t, []interface{}{"name", "=", "Acme"}, rpc[1])
	assert.Equal(t, []interface{}{"active", "=", true}, rpc[2])
}

func TestDomain_ToRPC_Nil(t *testing.T) {
	var domain Domain
	assert.Equal(t, []interface{}{}, domain.ToRPC())
}

func TestOptions_ToRPC_OmitsZeroValues(t *testing.T) {
	opts := &Options{}
	rpc := opts.ToRPC()
	assert.Empty(t, rpc)
}

func TestOptions_ToRPC_IncludesSetFields(t *testing.T) {
	opts := &Options{
		Context: OdooContext{"lang": "es_ES"},
		Limit:   10,
		Offset:  5,
		Order:   "name asc",
		Extra:   map[string]interface{}{"fields": []string{"name"}},
	}
	rpc := opts.ToRPC()
	assert.Equal(t, map[string]interface{}{"lang": "es_ES"}, rpc["context"])
	assert.Equal(t, 10, rpc["limit"])
	assert.Equal(t, 5, rpc["offset"])
	assert.Equal(t, "name asc", rpc["order"])
	assert.Equal(t, []string{"name"}, rpc["fields"])
}

func TestOdooContext_Clone_IsIndependent(t *testing.T) {
	original := OdooContext{"lang": "en_US"}
	cloned := original.Clone()
	cloned["lang"] = "fr_FR"
	assert.Equal(t, "en_US", original["lang"])
}

func TestData_ToRPC(t *testing.T) {
	data := Data{"name": "Acme"}
	assert.Equal(t, map[string]interface{}{"name": "Acme"}, data.ToRPC())
}
