package goClone

import (
	"errors"

	"github.com/MrEthical07/goClone/selector"
)

var (
	// ErrUnknownSelector is returned when a call names an entry point the
	// registry has never seen.
	ErrUnknownSelector = errors.New("unknown selector")
	// ErrNoPermission is returned when the calling instance's feature mask
	// does not grant the entry point. The message is matched verbatim by
	// external callers and must not change.
	ErrNoPermission = errors.New("no permission for this call")
	// ErrForwardingFailure is matched by every error raised inside the
	// implementation during a forwarded call.
	ErrForwardingFailure = errors.New("forwarding failure")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("factory already initialized")
	// ErrNotInitialized is returned when no implementation has been published.
	ErrNotInitialized = errors.New("factory not initialized")
	// ErrProxyNotFound is returned for addresses this factory never cloned.
	ErrProxyNotFound = errors.New("proxy not found")
	// ErrOwnerUnauthorized is returned when the owner capability check fails.
	ErrOwnerUnauthorized = errors.New("owner unauthorized")
	// ErrInvalidImplementation is returned when an implementation is nil or
	// does not serve every selector it is registered with.
	ErrInvalidImplementation = errors.New("invalid implementation")
	// ErrInvalidMask is returned for nil masks or unsupported widths.
	ErrInvalidMask = errors.New("invalid feature mask")
	// ErrUnknownFeatureSet is returned by CloneWithFeatureSet for undefined names.
	ErrUnknownFeatureSet = errors.New("unknown feature set")
	// ErrStoreUnavailable wraps instance store failures.
	ErrStoreUnavailable = errors.New("instance store unavailable")
	// ErrFactoryClosed is returned after Close.
	ErrFactoryClosed = errors.New("factory closed")

	errEntryPointNotImplemented = errors.New("entry point not implemented by current implementation")
)

// ForwardingError carries an error raised by the implementation while serving
// a forwarded call. Error returns the implementation's message unchanged; the
// failing entry point is kept in Selector. It matches both
// [ErrForwardingFailure] and the original error under errors.Is.
type ForwardingError struct {
	Selector selector.Selector
	Err      error
}

func (e *ForwardingError) Error() string {
	if e.Err == nil {
		return ErrForwardingFailure.Error()
	}
	return e.Err.Error()
}

func (e *ForwardingError) Unwrap() []error {
	return []error{ErrForwardingFailure, e.Err}
}
