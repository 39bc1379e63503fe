package mcp

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 standard error codes plus MCP and SDK-local extensions.
// Grounded on dominicnunez-codex-sdk-go/jsonrpc.go's ErrCode* constants,
// extended with a handful of MCP-specific codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// MCP-specific.
	CodeResourceNotFound      = -32002
	CodeURLElicitationRequired = -32042

	// SDK-local (runtime) errors.
	CodeConnectionClosed = -32000
	CodeRequestTimeout   = -32001
	CodeTransportError   = -32003
	CodeRequestCancelled = -32004
	CodeSessionExpired   = -32005
)

// ProtocolError is a typed JSON-RPC error. Handlers may return a
// *ProtocolError to control the exact code/message/data placed on the wire;
// any other error becomes CodeInternalError with a redacted message.
type ProtocolError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp: %s (code %d)", e.Message, e.Code)
}

func NewProtocolError(code int, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}

func (e *ProtocolError) WithData(data interface{}) *ProtocolError {
	raw, err := json.Marshal(data)
	if err != nil {
		return e
	}
	return &ProtocolError{Code: e.Code, Message: e.Message, Data: raw}
}

func ErrParseError(msg string) *ProtocolError     { return NewProtocolError(CodeParseError, msg) }
func ErrInvalidRequest(msg string) *ProtocolError { return NewProtocolError(CodeInvalidRequest, msg) }
func ErrMethodNotFound(method string) *ProtocolError {
	return NewProtocolError(CodeMethodNotFound, fmt.Sprintf("method not found: %s", method))
}
func ErrInvalidParams(msg string) *ProtocolError { return NewProtocolError(CodeInvalidParams, msg) }
func ErrInternalError(msg string) *ProtocolError { return NewProtocolError(CodeInternalError, msg) }
func ErrResourceNotFound(msg string) *ProtocolError {
	return NewProtocolError(CodeResourceNotFound, msg)
}
func ErrURLElicitationRequired(msg string) *ProtocolError {
	return NewProtocolError(CodeURLElicitationRequired, msg)
}
func ErrConnectionClosed() *ProtocolError {
	return NewProtocolError(CodeConnectionClosed, "connection closed")
}
func ErrRequestTimeout() *ProtocolError {
	return NewProtocolError(CodeRequestTimeout, "request timed out")
}
func ErrTransportError(msg string) *ProtocolError { return NewProtocolError(CodeTransportError, msg) }
func ErrRequestCancelled() *ProtocolError {
	return NewProtocolError(CodeRequestCancelled, "request cancelled")
}
func ErrSessionExpired() *ProtocolError { return NewProtocolError(CodeSessionExpired, "session expired") }

// AsProtocolError unwraps err into a *ProtocolError, synthesizing an
// internal-error wrapper (message redacted from the caller-visible wire
// value, full error logged by the caller) for anything else.
func AsProtocolError(err error) *ProtocolError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*ProtocolError); ok {
		return pe
	}
	return ErrInternalError("internal error")
}
