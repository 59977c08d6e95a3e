package guard

import (
	"errors"
	"fmt"
)

// Kind classifies a guarded call failure.
type Kind string

const (
	KindRateLimited     Kind = "rate_limited"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindBackendReported Kind = "backend_reported"
	KindUnexpected      Kind = "unexpected"
)

// Sentinel errors matched by errors.Is against a *Failure of the same kind.
var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrBackendReported = errors.New("backend reported error")
	ErrUnexpected      = errors.New("unexpected error")
)

// BackendError is implemented by errors the backend raises from its own
// structured error payloads. Anything else is treated as unexpected.
type BackendError interface {
	error
	BackendReported() bool
}

// Failure is the single error type returned by a guarded operation.
type Failure struct {
	Kind      Kind
	Operation string
	Group     string
	Context   string
	Message   string

	// Quota is set for rate_limited failures.
	Quota int
	// MaxPayloadMB and Argument are set for payload_too_large failures.
	MaxPayloadMB float64
	Argument     string

	// Err is the original backend error for normalized failures.
	Err error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Is reports whether target is the sentinel for this failure's kind.
func (f *Failure) Is(target error) bool {
	if f == nil {
		return false
	}
	switch target {
	case ErrRateLimited:
		return f.Kind == KindRateLimited
	case ErrPayloadTooLarge:
		return f.Kind == KindPayloadTooLarge
	case ErrBackendReported:
		return f.Kind == KindBackendReported
	case ErrUnexpected:
		return f.Kind == KindUnexpected
	}
	return false
}

// KindOf returns the kind of a guard failure anywhere in err's chain, or "".
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) && failure != nil {
		return failure.Kind
	}
	return ""
}

func rateLimited(key string, quota int) *Failure {
	return &Failure{
		Kind:      KindRateLimited,
		Operation: key,
		Quota:     quota,
		Message:   fmt.Sprintf("Rate limit exceeded for %s: maximum %d requests per minute", key, quota),
	}
}

func payloadTooLarge(arg string, maxMB float64) *Failure {
	return &Failure{
		Kind:         KindPayloadTooLarge,
		Argument:     arg,
		MaxPayloadMB: maxMB,
		Message:      fmt.Sprintf("Payload too large: argument %q exceeds maximum size of %gMB", arg, maxMB),
	}
}
