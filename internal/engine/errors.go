package engine

import (
	"errors"
	"fmt"
	"strings"
)

// GatewayError wraps a transport-level failure from a model provider. The
// orchestrator surfaces it to the caller as-is; there is no retry layer.
type GatewayError struct {
	HTTPStatus int
	RetryAfter string // raw Retry-After header value, if the provider exposed one
	Err        error
}

func (e *GatewayError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("model gateway error (HTTP %d): %v", e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("model gateway error: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// WrapGatewayError normalizes a provider SDK error into a GatewayError.
func WrapGatewayError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	return &GatewayError{HTTPStatus: httpStatus, RetryAfter: retryAfter, Err: err}
}

// IsGatewayError reports whether err is (or wraps) a GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// ToolValidationError reports arguments that failed a tool's JSON schema.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

// ToolExecutionError reports a tool that failed while running. It is folded
// into the conversation as a tool result, never raised to the caller.
type ToolExecutionError struct {
	ToolName string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.ToolName, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
