package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/access"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/apierror"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/config"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/odooclient"
	"github.com/ivnvxd/mcp-server-odoo-sub000/pkg/tools/logctx"
)

func jsonResponse(w http.ResponseWriter, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestErrorResult_RendersStandardEnvelopeText(t *testing.T) {
	result := errorResult(apierror.NotFound("res.partner id 7 not found"))
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	block, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "Resource not found: res.partner id 7 not found", block.Text)
	assert.True(t, result.IsError)
}

func TestListModels_NonYoloReadsFromAccessController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"models": []map[string]interface{}{
					{"model": "res.partner", "name": "Contact"},
				},
			},
		})
	}))
	defer srv.Close()

	cfg := &config.Config{URL: srv.URL, APIKey: "test-key", Database: "testdb", YoloMode: config.YoloOff}
	h := &Handler{access: access.New(cfg, zap.NewNop(), 5*time.Minute), cfg: cfg}

	result, err := h.ListModels(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.NotNil(t, result.StructuredContent)

	res, ok := result.StructuredContent.(modelsResult)
	require.True(t, ok)
	require.Len(t, res.Models, 1)
	assert.Equal(t, "res.partner", res.Models[0].Model)
	assert.Equal(t, "Contact", res.Models[0].Name)
	assert.Nil(t, res.YoloMode)
}

func TestListResourceTemplates_ListsEveryURIShape(t *testing.T) {
	result, err := (&Handler{}).ListResourceTemplates(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	templates, ok := result.StructuredContent.([]map[string]string)
	require.True(t, ok)
	assert.Len(t, templates, 5)
	assert.Equal(t, "odoo://{model}/record/{id}", templates[0]["uriTemplate"])
}

func TestSmartDefaultFields_PrefersNameThenManyToOneThenCommonColumns(t *testing.T) {
	fieldsInfo := map[string]odooclient.FieldInfo{
		"name":       {"type": "char"},
		"partner_id": {"type": "many2one"},
		"line_ids":   {"type": "one2many"},
		"state":      {"type": "selection"},
		"note":       {"type": "text"},
	}
	fields := smartDefaultFields(fieldsInfo)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "partner_id")
	assert.Contains(t, fields, "state")
	assert.NotContains(t, fields, "line_ids")
	assert.NotContains(t, fields, "note")
}

func TestSmartDefaultFields_FallsBackWhenModelHasNoCommonColumns(t *testing.T) {
	fields := smartDefaultFields(map[string]odooclient.FieldInfo{"weird_field": {"type": "char"}})
	assert.Equal(t, odooclient.Fields{"name", "display_name"}, fields)
}

func TestWithDiagnostics_SinkFieldsDoNotLeakAcrossCalls(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}

	var capturedOK bool
	wrapped := h.withDiagnostics(func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sink, ok := logctx.FromContext(ctx)
		capturedOK = ok
		if ok {
			sink.Set("probe", "value")
		}
		return mcp.NewToolResultText("ok"), nil
	})

	_, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, capturedOK)

	_, ok := logctx.FromContext(context.Background())
	assert.False(t, ok, "a fresh context must not carry a sink from a prior call")
}
