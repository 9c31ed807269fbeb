package odooclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRPCFault_ClassifiesInvalidModel(t *testing.T) {
	err := parseRPCFault(errors.New(`Fault 1: 'The model does not exist: not.a.model'`))
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestParseRPCFault_ClassifiesInvalidMethod(t *testing.T) {
	err := parseRPCFault(errors.New(`Fault 1: 'Object res.partner has no method not_a_method'`))
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestParseRPCFault_DefaultsToStructuredFault(t *testing.T) {
	err := parseRPCFault(errors.New(`Fault 2: 'Access Denied'`))
	var fault *RpcFault
	assert.ErrorAs(t, err, &fault)
	assert.Equal(t, 2, fault.Code)
	assert.Equal(t, "Access Denied", fault.Message)
}

func TestParseRPCFault_Nil(t *testing.T) {
	assert.Nil(t, parseRPCFault(nil))
}

func TestIsInvalidLanguageFault(t *testing.T) {
	err := parseRPCFault(errors.New(`Fault 1: 'Invalid language code: xx_XX'`))
	assert.True(t, isInvalidLanguageFault(err))
	assert.False(t, isInvalidLanguageFault(parseRPCFault(errors.New(`Fault 1: 'Access Denied'`))))
	assert.False(t, isInvalidLanguageFault(nil))
}

func TestSanitizeFaultMessage_StripsTracebackAndPaths(t *testing.T) {
	raw := "ValueError: boom at /opt/odoo/addons/sale/models/sale.py\nTraceback (most recent call last):\n  File stuff"
	got := sanitizeFaultMessage(raw)
	assert.Contains(t, got, "<path>")
	assert.NotContains(t, got, "Traceback")
	assert.NotContains(t, got, "/opt/odoo")
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, isTransientError(errors.New("dial tcp: connection refused")))
	assert.True(t, isTransientError(errors.New("read tcp: i/o timeout")))
	assert.False(t, isTransientError(parseRPCFault(errors.New(`Fault 1: 'Access Denied'`))))
	assert.False(t, isTransientError(nil))
}
