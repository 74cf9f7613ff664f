package platform

import (
	"errors"
	"fmt"
)

// Standard errors for the adapter boundary. Adapters wrap every
// platform-native failure with one of these before it crosses the
// boundary; the registry and HTTP layer classify with errors.Is and
// never see platform-specific error shapes.
var (
	// ErrValidation: missing or malformed caller input. Never retried.
	ErrValidation = errors.New("invalid request input")
	// ErrAuth: the platform rejected the credentials. Never retried.
	ErrAuth = errors.New("platform rejected credentials")
	// ErrNotAuthenticated: operation attempted before a successful connect.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTransport: network failure or timeout. Retried with bounded backoff.
	ErrTransport = errors.New("platform unreachable")
	// ErrProviderUnavailable: adapter could not initialize and mock
	// fallback is disabled.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrUpstreamFormat: the platform returned data that could not be
	// normalized into the canonical model.
	ErrUpstreamFormat = errors.New("unexpected upstream payload")
)

// Validationf wraps a formatted message with ErrValidation.
func Validationf(format string, v ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, v...)...)
}

// Authf wraps a formatted message with ErrAuth.
func Authf(format string, v ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrAuth}, v...)...)
}

// Transportf wraps a formatted message with ErrTransport.
func Transportf(format string, v ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrTransport}, v...)...)
}

// UpstreamFormatf wraps a formatted message with ErrUpstreamFormat.
func UpstreamFormatf(format string, v ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUpstreamFormat}, v...)...)
}

// Retryable reports whether the adapter may retry the failed call.
// Only transport failures qualify; auth and validation rejections are
// final.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport)
}
