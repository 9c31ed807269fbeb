// Package apierror defines the five-kind error taxonomy every handler-edge
// boundary in the bridge converts into before a response crosses the MCP
// boundary, grounded on the upstream project's error_handling.py.
package apierror

import "fmt"

// Kind identifies one of the five error categories the bridge exposes to
// clients, plus the catch-all ServerError.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindPermission     Kind = "permission"
	KindNotFound       Kind = "not_found"
	KindConnection     Kind = "connection"
	KindServer         Kind = "server"
)

var statusByKind = map[Kind]int{
	KindValidation:     400,
	KindAuthentication: 401,
	KindPermission:     403,
	KindNotFound:       404,
	KindConnection:     503,
	KindServer:         500,
}

var labelByStatus = map[int]string{
	400: "Invalid request",
	401: "Authentication failed",
	403: "Permission denied",
	404: "Resource not found",
	500: "Server error",
	503: "Service unavailable",
}

// Error is the typed error every handler boundary raises. It always carries
// a human-readable message and a fixed status code in {400,401,403,404,500,503}.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status returns the HTTP-like status code for this error's kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return 500
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a 400 ValidationError: bad id, missing required field in
// a line, malformed domain, unauthenticated session.
func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

// Authentication builds a 401 AuthenticationError: credentials rejected by
// the ERP or its REST surface.
func Authentication(format string, args ...any) *Error {
	return newf(KindAuthentication, format, args...)
}

// Permission builds a 403 PermissionError: access control denied.
func Permission(format string, args ...any) *Error { return newf(KindPermission, format, args...) }

// NotFound builds a 404 NotFoundError: record or model missing.
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// Connection builds a 503 ConnectionError: transport/RPC fault after retries.
func Connection(format string, args ...any) *Error { return newf(KindConnection, format, args...) }

// Server builds a 500 ServerError for anything unclassified.
func Server(format string, args ...any) *Error { return newf(KindServer, format, args...) }

// ContentBlock is one entry of an MCP error response's content array.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the MCP error envelope every crossing error is rendered into.
type Response struct {
	IsError bool           `json:"is_error"`
	Content []ContentBlock `json:"content"`
}

// FormatErrorResponse converts any error into the bridge's standard MCP
// error envelope, classifying non-*Error values as 500 ServerError. Callers
// are responsible for logging; this function only builds the response body.
func FormatErrorResponse(err error) Response {
	message := err.Error()
	status := 500
	if apiErr, ok := err.(*Error); ok {
		status = apiErr.Status()
	}

	label, ok := labelByStatus[status]
	if !ok {
		label = "Error"
	}

	return Response{
		IsError: true,
		Content: []ContentBlock{
			{Type: "text", Text: fmt.Sprintf("%s: %s", label, message)},
		},
	}
}
