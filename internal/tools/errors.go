// In file: internal/tools/errors.go
package tools

import (
	"context"
	"errors"
)

// ErrorKind classifies a tool-level failure. It travels inside Failure outcomes
// so consumers can react without parsing messages.
type ErrorKind string

const (
	KindUnknownTool        ErrorKind = "UnknownTool"
	KindInvalidArguments   ErrorKind = "InvalidArguments"
	KindAdapterUnavailable ErrorKind = "AdapterUnavailable"
	KindAdapterCallFailed  ErrorKind = "AdapterCallFailed"
	KindParseFailure       ErrorKind = "ParseFailure"
	KindUpstreamAI         ErrorKind = "UpstreamAIError"
)

var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrInvalidArguments   = errors.New("invalid arguments")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrAdapterCallFailed  = errors.New("adapter call failed")
	// ErrParseFailure marks hosted output that could not be structured. It is
	// informational: the payload degrades to an opaque wrapper instead of failing.
	ErrParseFailure = errors.New("result could not be parsed")
	// ErrUpstreamAI is the only error class allowed to abort a whole turn.
	ErrUpstreamAI = errors.New("upstream AI backend error")
)

// KindOf maps an error onto the taxonomy. Errors that match no sentinel are
// treated as adapter call failures, which includes timeouts.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrInvalidArguments):
		return KindInvalidArguments
	case errors.Is(err, ErrAdapterUnavailable):
		return KindAdapterUnavailable
	case errors.Is(err, ErrParseFailure):
		return KindParseFailure
	case errors.Is(err, ErrUpstreamAI):
		return KindUpstreamAI
	case errors.Is(err, context.DeadlineExceeded):
		return KindAdapterCallFailed
	}
	return KindAdapterCallFailed
}
