// Package kernelerr defines the unified error taxonomy shared by every
// kernel-core package. It replaces ad-hoc string errors with a single
// comparable, wrappable error type carrying a [Kind] plus kind-specific
// detail fields.
package kernelerr

import (
	"errors"
	"fmt"
)

// Kind identifies the broad category of a kernel error. Callers compare
// against a Kind with errors.Is and an *[Error] target of that Kind (see
// [Error.Is]) or by inspecting [Error.Kind] directly; they
// should not match on the formatted message.
type Kind int

const (
	KindUnknown Kind = iota
	KindOutOfMemory
	KindInvalidAddress
	KindUnmappedMemory
	KindInvalidCapability
	KindInsufficientRights
	KindCapabilityRevoked
	KindProcessNotFound
	KindThreadNotFound
	KindInvalidState
	KindIPC
	KindScheduler
	KindSyscall
	KindHardware
	KindInvalidArgument
	KindOperationNotSupported
	KindResourceExhausted
	KindPermissionDenied
	KindAlreadyExists
	KindNotFound
	KindTimeout
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindOutOfMemory:
		return "out of memory"
	case KindInvalidAddress:
		return "invalid address"
	case KindUnmappedMemory:
		return "unmapped memory"
	case KindInvalidCapability:
		return "invalid capability"
	case KindInsufficientRights:
		return "insufficient rights"
	case KindCapabilityRevoked:
		return "capability revoked"
	case KindProcessNotFound:
		return "process not found"
	case KindThreadNotFound:
		return "thread not found"
	case KindInvalidState:
		return "invalid state"
	case KindIPC:
		return "ipc error"
	case KindScheduler:
		return "scheduler error"
	case KindSyscall:
		return "syscall error"
	case KindHardware:
		return "hardware error"
	case KindInvalidArgument:
		return "invalid argument"
	case KindOperationNotSupported:
		return "operation not supported"
	case KindResourceExhausted:
		return "resource exhausted"
	case KindPermissionDenied:
		return "permission denied"
	case KindAlreadyExists:
		return "already exists"
	case KindNotFound:
		return "not found"
	case KindTimeout:
		return "timeout"
	case KindNotImplemented:
		return "not implemented"
	default:
		return "unknown kernel error"
	}
}

// CapError refines [KindInvalidCapability]/[KindCapabilityRevoked] failures
// arising from the capability subsystem.
type CapError int

const (
	CapInvalidCapability CapError = iota
	CapInsufficientRights
	CapRevoked
	CapInvalidObject
	CapPermissionDenied
	CapAlreadyExists
	CapNotFound
	CapIDExhausted
)

func (c CapError) String() string {
	switch c {
	case CapInvalidCapability:
		return "invalid capability"
	case CapInsufficientRights:
		return "insufficient rights"
	case CapRevoked:
		return "revoked"
	case CapInvalidObject:
		return "invalid object"
	case CapPermissionDenied:
		return "permission denied"
	case CapAlreadyExists:
		return "already exists"
	case CapNotFound:
		return "not found"
	case CapIDExhausted:
		return "id exhausted"
	default:
		return "unknown cap error"
	}
}

// IPCError refines [KindIPC] failures.
type IPCError int

const (
	IPCInvalidEndpoint IPCError = iota
	IPCInvalidChannel
	IPCMessageTooLarge
	IPCQueueFull
	IPCQueueEmpty
	IPCInvalidCapability
	IPCProcessNotFound
	IPCEndpointNotFound
	IPCPermissionDenied
	IPCWouldBlock
	IPCTimeout
)

func (e IPCError) String() string {
	switch e {
	case IPCInvalidEndpoint:
		return "invalid endpoint"
	case IPCInvalidChannel:
		return "invalid channel"
	case IPCMessageTooLarge:
		return "message too large"
	case IPCQueueFull:
		return "queue full"
	case IPCQueueEmpty:
		return "queue empty"
	case IPCInvalidCapability:
		return "invalid capability"
	case IPCProcessNotFound:
		return "process not found"
	case IPCEndpointNotFound:
		return "endpoint not found"
	case IPCPermissionDenied:
		return "permission denied"
	case IPCWouldBlock:
		return "would block"
	case IPCTimeout:
		return "timeout"
	default:
		return "unknown ipc error"
	}
}

// SchedError refines [KindScheduler] failures.
type SchedError int

const (
	SchedInvalidPriority SchedError = iota
	SchedInvalidCPUID
	SchedTaskNotFound
	SchedCPUOffline
	SchedInvalidAffinity
	SchedQueueEmpty
	SchedAlreadyScheduled
)

func (s SchedError) String() string {
	switch s {
	case SchedInvalidPriority:
		return "invalid priority"
	case SchedInvalidCPUID:
		return "invalid cpu id"
	case SchedTaskNotFound:
		return "task not found"
	case SchedCPUOffline:
		return "cpu offline"
	case SchedInvalidAffinity:
		return "invalid affinity"
	case SchedQueueEmpty:
		return "queue empty"
	case SchedAlreadyScheduled:
		return "already scheduled"
	default:
		return "unknown sched error"
	}
}

// Error is the unified kernel error value. Every fallible operation in
// this module returns one (wrapped in a standard [error] interface) on
// failure.
type Error struct {
	Kind Kind

	// Detail fields; only the ones relevant to Kind are populated.
	CapID      uint64
	CapReason  CapError
	Required   uint16
	Actual     uint16
	PID        uint64
	TID        uint64
	Expected   string
	ActualStr  string
	IPCReason  IPCError
	SchedKind  SchedError
	Requested  uint64
	Available  uint64
	Addr       uint64
	Device     string
	Code       uint32
	Name       string
	Value      string
	Operation  string
	Resource   string
	DurationMS uint64

	wrapped error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindOutOfMemory:
		return fmt.Sprintf("out of memory: requested %d, available %d", e.Requested, e.Available)
	case KindInvalidAddress:
		return fmt.Sprintf("invalid address: 0x%x", e.Addr)
	case KindUnmappedMemory:
		return fmt.Sprintf("unmapped memory at 0x%x", e.Addr)
	case KindInvalidCapability:
		return fmt.Sprintf("invalid capability %d: %s", e.CapID, e.CapReason)
	case KindInsufficientRights:
		return fmt.Sprintf("insufficient rights: required 0x%x, have 0x%x", e.Required, e.Actual)
	case KindCapabilityRevoked:
		return fmt.Sprintf("capability %d has been revoked", e.CapID)
	case KindProcessNotFound:
		return fmt.Sprintf("process %d not found", e.PID)
	case KindThreadNotFound:
		return fmt.Sprintf("thread %d not found", e.TID)
	case KindInvalidState:
		return fmt.Sprintf("invalid state: expected %q, got %q", e.Expected, e.ActualStr)
	case KindIPC:
		return fmt.Sprintf("ipc error: %s", e.IPCReason)
	case KindScheduler:
		return fmt.Sprintf("scheduler error: %s", e.SchedKind)
	case KindHardware:
		return fmt.Sprintf("hardware error: device %s code %d", e.Device, e.Code)
	case KindInvalidArgument:
		return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Value)
	case KindOperationNotSupported:
		return fmt.Sprintf("operation not supported: %s", e.Operation)
	case KindResourceExhausted:
		return fmt.Sprintf("resource exhausted: %s", e.Resource)
	case KindPermissionDenied:
		return fmt.Sprintf("permission denied: %s", e.Operation)
	case KindAlreadyExists:
		return fmt.Sprintf("%s %d already exists", e.Resource, e.CapID)
	case KindNotFound:
		return fmt.Sprintf("%s %d not found", e.Resource, e.CapID)
	case KindTimeout:
		return fmt.Sprintf("timeout: %s after %dms", e.Operation, e.DurationMS)
	case KindNotImplemented:
		return fmt.Sprintf("not implemented: %s", e.Name)
	default:
		if e.wrapped != nil {
			return e.wrapped.Error()
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is reports whether target is a kernelerr [Error] of the same Kind, so
// callers can write
// errors.Is(err, &kernelerr.Error{Kind: kernelerr.KindTimeout}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func OutOfMemory(requested, available uint64) error {
	return &Error{Kind: KindOutOfMemory, Requested: requested, Available: available}
}

func InvalidAddress(addr uint64) error { return &Error{Kind: KindInvalidAddress, Addr: addr} }

func UnmappedMemory(addr uint64) error { return &Error{Kind: KindUnmappedMemory, Addr: addr} }

func InvalidCapability(id uint64, reason CapError) error {
	return &Error{Kind: KindInvalidCapability, CapID: id, CapReason: reason}
}

func InsufficientRights(required, actual uint16) error {
	return &Error{Kind: KindInsufficientRights, Required: required, Actual: actual}
}

func CapabilityRevoked(id uint64) error { return &Error{Kind: KindCapabilityRevoked, CapID: id} }

func ProcessNotFound(pid uint64) error { return &Error{Kind: KindProcessNotFound, PID: pid} }

func ThreadNotFound(tid uint64) error { return &Error{Kind: KindThreadNotFound, TID: tid} }

func InvalidState(expected, actual string) error {
	return &Error{Kind: KindInvalidState, Expected: expected, ActualStr: actual}
}

func IPC(reason IPCError) error { return &Error{Kind: KindIPC, IPCReason: reason} }

func Scheduler(kind SchedError) error { return &Error{Kind: KindScheduler, SchedKind: kind} }

func Hardware(device string, code uint32) error {
	return &Error{Kind: KindHardware, Device: device, Code: code}
}

func InvalidArgument(name, value string) error {
	return &Error{Kind: KindInvalidArgument, Name: name, Value: value}
}

func OperationNotSupported(op string) error {
	return &Error{Kind: KindOperationNotSupported, Operation: op}
}

func ResourceExhausted(resource string) error {
	return &Error{Kind: KindResourceExhausted, Resource: resource}
}

func PermissionDenied(op string) error { return &Error{Kind: KindPermissionDenied, Operation: op} }

func AlreadyExists(resource string, id uint64) error {
	return &Error{Kind: KindAlreadyExists, Resource: resource, CapID: id}
}

func NotFound(resource string, id uint64) error {
	return &Error{Kind: KindNotFound, Resource: resource, CapID: id}
}

func Timeout(op string, durationMS uint64) error {
	return &Error{Kind: KindTimeout, Operation: op, DurationMS: durationMS}
}

func NotImplemented(feature string) error { return &Error{Kind: KindNotImplemented, Name: feature} }

// Wrap attaches a Kind to an underlying Go error, for propagating
// non-kernel failures (e.g. from a filesystem collaborator) through the
// unified taxonomy without losing the original error for [errors.Unwrap].
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, wrapped: err}
}

// KindOf extracts the Kind of err if it is (or wraps) a kernelerr *Error,
// and KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
