// Package syscall implements VeridianOS's external syscall surface:
// capability operations, IPC send/receive/call/reply, thread clone/
// exec/exit/wait, and memory mapping, each taking the calling task's
// identity and returning a [kernelerr] error on failure. This is the
// one package that is allowed to depend on both capability and ipc
// (§4.4.6's capability-validation requirement), since every other
// package stays decoupled from its neighbors.
package syscall

import "github.com/veridian-os/kernel/kernelerr"

// Code is the stable, ABI-facing integer a syscall returns to user
// space in place of a Go error value, matching spec.md §6's
// requirement for a fixed error-code table independent of
// kernelerr.Kind's internal ordering (which may grow new members over
// time without renumbering anything already assigned here).
type Code int32

const (
	CodeSuccess               Code = 0
	CodeUnknown               Code = -1
	CodeOutOfMemory           Code = -2
	CodeInvalidAddress        Code = -3
	CodeUnmappedMemory        Code = -4
	CodeInvalidCapability     Code = -5
	CodeInsufficientRights    Code = -6
	CodeCapabilityRevoked     Code = -7
	CodeProcessNotFound       Code = -8
	CodeThreadNotFound        Code = -9
	CodeInvalidState          Code = -10
	CodeIPC                   Code = -11
	CodeScheduler             Code = -12
	CodeSyscall               Code = -13
	CodeHardware              Code = -14
	CodeInvalidArgument       Code = -15
	CodeOperationNotSupported Code = -16
	CodeResourceExhausted     Code = -17
	CodePermissionDenied      Code = -18
	CodeAlreadyExists         Code = -19
	CodeNotFound              Code = -20
	CodeTimeout               Code = -21
	CodeNotImplemented        Code = -22
)

var codeByKind = map[kernelerr.Kind]Code{
	kernelerr.KindOutOfMemory:           CodeOutOfMemory,
	kernelerr.KindInvalidAddress:        CodeInvalidAddress,
	kernelerr.KindUnmappedMemory:        CodeUnmappedMemory,
	kernelerr.KindInvalidCapability:     CodeInvalidCapability,
	kernelerr.KindInsufficientRights:    CodeInsufficientRights,
	kernelerr.KindCapabilityRevoked:     CodeCapabilityRevoked,
	kernelerr.KindProcessNotFound:       CodeProcessNotFound,
	kernelerr.KindThreadNotFound:        CodeThreadNotFound,
	kernelerr.KindInvalidState:          CodeInvalidState,
	kernelerr.KindIPC:                   CodeIPC,
	kernelerr.KindScheduler:             CodeScheduler,
	kernelerr.KindSyscall:               CodeSyscall,
	kernelerr.KindHardware:              CodeHardware,
	kernelerr.KindInvalidArgument:       CodeInvalidArgument,
	kernelerr.KindOperationNotSupported: CodeOperationNotSupported,
	kernelerr.KindResourceExhausted:     CodeResourceExhausted,
	kernelerr.KindPermissionDenied:      CodePermissionDenied,
	kernelerr.KindAlreadyExists:         CodeAlreadyExists,
	kernelerr.KindNotFound:              CodeNotFound,
	kernelerr.KindTimeout:               CodeTimeout,
	kernelerr.KindNotImplemented:        CodeNotImplemented,
}

// CodeFor maps err (nil or a [kernelerr] error) to its stable syscall
// return code.
func CodeFor(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if code, ok := codeByKind[kernelerr.KindOf(err)]; ok {
		return code
	}
	return CodeUnknown
}
