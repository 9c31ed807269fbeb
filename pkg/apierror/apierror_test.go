package apierror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad id"), 400},
		{Authentication("nope"), 401},
		{Permission("denied"), 403},
		{NotFound("missing"), 404},
		{Connection("down"), 503},
		{Server("boom"), 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Status())
	}
}

func TestFormatErrorResponse_TypedError(t *testing.T) {
	resp := FormatErrorResponse(NotFound("res.partner id 42 not found"))
	assert.True(t, resp.IsError)
	assert.Len(t, resp.Content, 1)
	assert.Equal(t, "text", resp.Content[0].Type)
	assert.Equal(t, "Resource not found: res.partner id 42 not found", resp.Content[0].Text)
}

func TestFormatErrorResponse_UnclassifiedError(t *testing.T) {
	resp := FormatErrorResponse(errors.New("kaboom"))
	assert.Equal(t, "Server error: kaboom", resp.Content[0].Text)
}
