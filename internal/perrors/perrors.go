// Package perrors defines Nexus's error taxonomy: a small set of error kinds
// shared by the MCP JSON-RPC surface and the OpenAI/Anthropic-compatible HTTP
// surfaces, each carrying both an HTTP status and a JSON-RPC code.
package perrors

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

// ErrCode pairs the HTTP status Nexus surfaces on its LLM endpoints with the
// JSON-RPC 2.0 code it surfaces on the /mcp endpoint for the same failure.
type ErrCode struct {
	Kind       string `json:"kind"`
	Status     int    `json:"status"`
	JSONRPCErr int    `json:"-"`
}

var (
	ErrCodeInvalidRequest       = ErrCode{"invalid_request_error", http.StatusBadRequest, -32602}
	ErrCodeAuthenticationFailed = ErrCode{"authentication_error", http.StatusUnauthorized, -32001}
	ErrCodeInsufficientQuota    = ErrCode{"insufficient_quota", http.StatusForbidden, -32002}
	ErrCodeModelNotFound        = ErrCode{"invalid_request_error", http.StatusNotFound, -32601}
	ErrCodeToolNotFound         = ErrCode{"not_found_error", http.StatusNotFound, -32601}
	ErrCodeRateLimitExceeded    = ErrCode{"rate_limit_error", http.StatusTooManyRequests, -32000}
	ErrCodeStreamingUnsupported = ErrCode{"invalid_request_error", http.StatusBadRequest, -32602}
	ErrCodeProviderAPIError     = ErrCode{"api_error", http.StatusBadGateway, -32003}
	ErrCodeConnectionError      = ErrCode{"api_connection_error", http.StatusBadGateway, -32004}
	ErrCodeInternal             = ErrCode{"internal_error", http.StatusInternalServerError, -32603}
	ErrCodeParse                = ErrCode{"parse_error", http.StatusBadRequest, -32700}
	ErrCodeInvalidJSONRPC       = ErrCode{"invalid_request_error", http.StatusBadRequest, -32600}
	ErrCodeMethodNotFound       = ErrCode{"not_found_error", http.StatusNotFound, -32601}
)

// Err is Nexus's error envelope. Message is the sanitized text surfaced to
// callers; the wrapped upstream error is kept out of the JSON body so raw
// provider/downstream text never leaks past the boundary (spec §7).
type Err struct {
	Code       ErrCode
	Message    string
	Cause      string
	Stacktrace []string
	Args       map[string]any

	// Status carries a provider's own 4xx/5xx for ErrCodeProviderAPIError,
	// overriding Code.Status when set.
	Status int
	// Body carries the upstream provider's raw error body for logging only;
	// never marshaled into the client-facing response.
	Body string
}

func (e *Err) Error() string { return e.Message }

func (e *Err) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return e.Code.Status
}

func (e *Err) JSONRPCCode() int { return e.Code.JSONRPCErr }

func (e *Err) Print(ctx context.Context) {
	args := []any{slog.String("kind", e.Code.Kind), slog.String("cause", e.Cause)}
	for k, v := range e.Args {
		args = append(args, slog.Any(k, v))
	}
	args = append(args, slog.Any("stacktrace", e.Stacktrace))
	slog.ErrorContext(ctx, e.Message, args...)
}

func new(code ErrCode, msg string, cause error, args map[string]any) *Err {
	pc := make([]uintptr, 24)
	n := runtime.Callers(2, pc)
	frames := runtime.CallersFrames(pc[:n])

	var stack []string
	for frame, more := frames.Next(); more; frame, more = frames.Next() {
		stack = append(stack, fmt.Sprintf("%s:%d", frame.File, frame.Line))
	}

	causeStr := ""
	if cause != nil {
		causeStr = cause.Error()
	}

	return &Err{
		Code:       code,
		Message:    msg,
		Cause:      causeStr,
		Stacktrace: stack,
		Args:       args,
	}
}

func InvalidRequest(msg string, cause error, args ...map[string]any) *Err {
	return new(ErrCodeInvalidRequest, msg, cause, firstOf(args))
}

func AuthenticationFailed(msg string, cause error, args ...map[string]any) *Err {
	return new(ErrCodeAuthenticationFailed, msg, cause, firstOf(args))
}

func InsufficientQuota(msg string, cause error, args ...map[string]any) *Err {
	return new(ErrCodeInsufficientQuota, msg, cause, firstOf(args))
}

func ModelNotFound(model string) *Err {
	return new(ErrCodeModelNotFound, fmt.Sprintf("Model '%s' not found", model), nil, nil)
}

func ToolNotFound(name string) *Err {
	return new(ErrCodeToolNotFound, fmt.Sprintf("Tool '%s' not found", name), nil, nil)
}

func RateLimitExceeded(msg string) *Err {
	return new(ErrCodeRateLimitExceeded, msg, nil, nil)
}

func StreamingUnsupported(msg string) *Err {
	return new(ErrCodeStreamingUnsupported, msg, nil, nil)
}

// ProviderAPIError maps an upstream provider HTTP error. 5xx upstream maps to
// 502; 4xx upstream passes through, per spec §7.
func ProviderAPIError(status int, body string) *Err {
	e := new(ErrCodeProviderAPIError, "The upstream model provider returned an error", nil, nil)
	e.Body = body
	if status >= 500 || status == 0 {
		e.Status = http.StatusBadGateway
	} else {
		e.Status = status
	}
	return e
}

// MapProviderStatus maps an upstream chat-completion HTTP status to the
// error taxonomy, following the original provider clients'
// status-code-to-variant match (openai.rs/anthropic.rs/google.rs's non-200
// handling): most 4xx/5xx codes carry a dedicated ErrCode, everything else
// falls back to ProviderAPIError. model is the bare model id the request
// asked for, used only to build the 404 message.
func MapProviderStatus(status int, body string, model string) *Err {
	switch status {
	case http.StatusUnauthorized:
		return AuthenticationFailed(body, nil)
	case http.StatusForbidden:
		return InsufficientQuota(body, nil)
	case http.StatusNotFound:
		return ModelNotFound(model)
	case http.StatusTooManyRequests:
		return RateLimitExceeded(body)
	case http.StatusBadRequest:
		return InvalidRequest(body, nil)
	case http.StatusInternalServerError:
		return Internal(body, nil)
	default:
		return ProviderAPIError(status, body)
	}
}

func ConnectionError(msg string, cause error) *Err {
	return new(ErrCodeConnectionError, msg, cause, nil)
}

func Internal(msg string, cause error) *Err {
	return new(ErrCodeInternal, msg, cause, nil)
}

func Parse(msg string) *Err {
	return new(ErrCodeParse, msg, nil, nil)
}

func InvalidJSONRPC(msg string) *Err {
	return new(ErrCodeInvalidJSONRPC, msg, nil, nil)
}

func MethodNotFound(method string) *Err {
	return new(ErrCodeMethodNotFound, fmt.Sprintf("Method '%s' not found", method), nil, nil)
}

func firstOf(args []map[string]any) map[string]any {
	if len(args) > 0 {
		return args[0]
	}
	return nil
}

// As unwraps err into *Err, wrapping unknown errors as Internal so every
// boundary exit is taxonomized.
func As(err error) *Err {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Err); ok {
		return e
	}
	return Internal("unexpected internal error", err)
}
