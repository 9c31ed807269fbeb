// errors.go — RPC-level error classification, generalized from the
// teacher's errors.go (parseOdooRPCError / OdooRPCError).
package odooclient

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel errors surfaced by the RPC layer before a Connection-level
// caller rewraps them into an apierror.Error.
var (
	ErrAuthenticationFailed = errors.New("odooclient: authentication failed")
	ErrRecordNotFound       = errors.New("odooclient: no record found for the given criteria")
	ErrInvalidModel         = errors.New("odooclient: invalid Odoo model")
	ErrInvalidMethod        = errors.New("odooclient: invalid Odoo method for the model")
	ErrOdooRPC              = errors.New("odooclient: Odoo XML-RPC call failed")
	ErrInvalidResponse      = errors.New("odooclient: invalid Odoo RPC response")
	ErrNotAuthenticated     = errors.New("odooclient: not connected and authenticated")
)

// RpcFault represents the single structured fault shape every ERP XML-RPC
// failure is normalized into.
type RpcFault struct {
	Code          int
	Message       string
	OriginalError error
}

func (f *RpcFault) Error() string {
	if f.OriginalError != nil {
		return fmt.Sprintf("%s: %s (original: %v)", ErrOdooRPC, f.Message, f.OriginalError)
	}
	return fmt.Sprintf("%s: %s", ErrOdooRPC, f.Message)
}

func (f *RpcFault) Unwrap() error {
	return f.OriginalError
}

var faultPattern = regexp.MustCompile(`Fault (\d+): '(.*?)'`)

// parseRPCFault inspects an error returned by the underlying XML-RPC
// transport and classifies it. This is the teacher's parseOdooRPCError,
// generalized to return *RpcFault instead of the teacher's *OdooRPCError and
// to classify invalid-language faults (needed by Connection's locale
// fallback) in addition to model/method faults.
func parseRPCFault(err error) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	var faultCode int
	faultMessage := errMsg

	if matches := faultPattern.FindStringSubmatch(errMsg); len(matches) == 3 {
		if code, cerr := strconv.Atoi(matches[1]); cerr == nil {
			faultCode = code
		}
		faultMessage = matches[2]
	} else if strings.HasPrefix(errMsg, "XML-RPC fault: ") {
		faultMessage = strings.TrimPrefix(errMsg, "XML-RPC fault: ")
	}

	switch {
	case strings.Contains(faultMessage, "The model does not exist"),
		strings.Contains(faultMessage, "No model named"),
		strings.Contains(faultMessage, "not found in registry"):
		return fmt.Errorf("%w: %s (original: %w)", ErrInvalidModel, faultMessage, err)
	case strings.Contains(faultMessage, "has no method"),
		strings.Contains(faultMessage, "method does not exist"):
		return fmt.Errorf("%w: %s (original: %w)", ErrInvalidMethod, faultMessage, err)
	}

	return &RpcFault{Code: faultCode, Message: faultMessage, OriginalError: err}
}

var invalidLanguagePattern = regexp.MustCompile(`(?i)invalid language code`)

// isInvalidLanguageFault reports whether err's message matches the ERP's
// invalid-locale fault text, triggering the one-time lang-retry in
// Connection.executeKW.
func isInvalidLanguageFault(err error) bool {
	if err == nil {
		return false
	}
	var fault *RpcFault
	if errors.As(err, &fault) {
		return invalidLanguagePattern.MatchString(fault.Message)
	}
	return invalidLanguagePattern.MatchString(err.Error())
}

var tracebackPattern = regexp.MustCompile(`(?s)Traceback \(most recent.*`)
var absolutePathPattern = regexp.MustCompile(`/(?:opt|usr)/\S*`)

// sanitizeFaultMessage strips embedded absolute file paths and Python
// tracebacks from a fault message before it is surfaced to an MCP client.
func sanitizeFaultMessage(message string) string {
	message = tracebackPattern.ReplaceAllString(message, "")
	message = absolutePathPattern.ReplaceAllString(message, "<path>")
	return strings.TrimSpace(message)
}

// isTransientError reports whether err looks like a transient transport
// failure (connection reset, timeout) as opposed to an application-level
// fault. Only transient errors are retried by Connection's execute path.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var fault *RpcFault
	if errors.As(err, &fault) {
		// parseRPCFault also wraps transport failures. A fault whose original
		// error is not a net.Error is an application-level error from the ERP
		// itself (access denied, bad arguments, …) — never transient.
		var netErr net.Error
		if !errors.As(fault.OriginalError, &netErr) {
			return false
		}
		if netErr.Timeout() {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection reset", "timeout", "eof", "broken pipe", "no such host", "connection refused"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
