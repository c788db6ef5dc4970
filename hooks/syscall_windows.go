//go:build windows

package hooks

import (
	"syscall"

	"github.com/capturefx/nvshim"
)

// SyscallCaller invokes raw pointers via syscall.SyscallN. On amd64 the
// single Microsoft x64 convention covers both the cdecl entry points
// (nvapi_QueryInterface) and the stdcall ones (NvEncodeAPI).
type SyscallCaller struct{}

// Call implements Caller.
func (SyscallCaller) Call(fn nvshim.FuncPtr, args ...uintptr) uintptr {
	r1, _, _ := syscall.SyscallN(uintptr(fn), args...)
	return r1
}
