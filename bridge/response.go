package bridge

import (
	"encoding/json"
	"io/fs"
	"net"
	"strings"

	"github.com/wippyai/c2pa-bridge/errors"
)

// Response is the JSON envelope returned by the file-oriented entry points:
// {"ok": <result>} on success, {"error": {...}} on failure.
type Response struct {
	Ok    json.RawMessage `json:"ok,omitempty"`
	Error *ErrorResponse  `json:"error,omitempty"`
}

// ErrorResponse describes a failure for foreign callers.
type ErrorResponse struct {
	Message string      `json:"message"`
	Code    errors.Code `json:"code,omitempty"`
	Context string      `json:"context,omitempty"`
}

// NewErrorResponse classifies err. The context carries the error kind so
// callers can tell lock contention from a bad input.
func NewErrorResponse(err error) *ErrorResponse {
	return &ErrorResponse{
		Message: err.Error(),
		Code:    codeFor(err),
		Context: string(errors.KindOf(err)),
	}
}

func codeFor(err error) errors.Code {
	if code := errors.CodeOf(err); code != errors.CodeOther {
		return code
	}
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return errors.CodePermission
	case errors.As(err, &dnsErr):
		return errors.CodeOffline
	case strings.Contains(err.Error(), "Permission"):
		return errors.CodePermission
	}
	return errors.CodeOther
}

// ResponseFrom wraps a result or an error in the envelope. A value that
// cannot be marshaled becomes an error response.
func ResponseFrom(v any, err error) Response {
	if err != nil {
		return Response{Error: NewErrorResponse(err)}
	}
	raw, err := marshalResult(v)
	if err != nil {
		return Response{Error: NewErrorResponse(err)}
	}
	return Response{Ok: raw}
}

func marshalResult(v any) (json.RawMessage, error) {
	switch r := v.(type) {
	case json.RawMessage:
		return r, nil
	case nil:
		return json.RawMessage("null"), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBoundary, errors.KindEngine, err, "marshal response")
	}
	return raw, nil
}

// String renders the envelope as indented JSON.
func (r Response) String() string {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return `{"error":{"message":"response could not be rendered","code":"Other"}}`
	}
	return string(out)
}
