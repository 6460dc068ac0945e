package goClone

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/state"
	"github.com/google/uuid"
)

// Notification event types.
const (
	EventProxyCreated          = "proxy_created"
	EventImplementationUpgrade = "implementation_upgraded"
	EventFeatureSetUpdated     = "feature_set_updated"
	EventCallDenied            = "call_denied"
	EventCallFailed            = "call_failed"
	EventOwnerRejected         = "owner_rejected"
	EventFactoryInitialized    = "factory_initialized"
)

// AuditErrorCode is the stable, machine-readable failure class carried in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrNoPermission    AuditErrorCode = "no_permission"
	auditErrUnknownSelector AuditErrorCode = "unknown_selector"
	auditErrForwarding      AuditErrorCode = "forwarding_failure"
	auditErrOwner           AuditErrorCode = "owner_unauthorized"
	auditErrInvalidImpl     AuditErrorCode = "invalid_implementation"
	auditErrInvalidMask     AuditErrorCode = "invalid_mask"
	auditErrRegistryFull    AuditErrorCode = "registry_full"
	auditErrProxyNotFound   AuditErrorCode = "proxy_not_found"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func (f *Factory) emitAudit(ctx context.Context, event AuditEvent, err error) {
	if f == nil || f.audit == nil {
		return
	}

	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	event.Factory = f.address.String()
	event.Success = err == nil
	if event.Caller == "" {
		event.Caller = CallerFromContext(ctx)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	f.audit.Emit(ctx, event)
}

func maskString(m permission.Mask) string {
	if m == nil {
		return ""
	}
	return permission.FormatMask(m)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNoPermission):
		return auditErrNoPermission
	case errors.Is(err, ErrUnknownSelector):
		return auditErrUnknownSelector
	case errors.Is(err, ErrForwardingFailure):
		return auditErrForwarding
	case errors.Is(err, ErrOwnerUnauthorized):
		return auditErrOwner
	case errors.Is(err, ErrInvalidImplementation):
		return auditErrInvalidImpl
	case errors.Is(err, ErrInvalidMask):
		return auditErrInvalidMask
	case errors.Is(err, permission.ErrRegistryFull):
		return auditErrRegistryFull
	case errors.Is(err, ErrProxyNotFound),
		errors.Is(err, state.ErrNotFound):
		return auditErrProxyNotFound
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, state.ErrUnavailable),
		errors.Is(err, state.ErrConflict):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
