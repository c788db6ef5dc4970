// Package nvshim defines the domain types shared by the NVAPI and
// NvEncodeAPI interception layer.
//
// The shim sits between an application and the vendor's libraries. It
// substitutes a small set of dispatch entries, gates the rest behind a
// vendor-extension policy, and rewrites resource handles embedded in
// caller-owned encoder structs. It never computes a vendor function's
// result itself; it only gates, rewrites and forwards.
package nvshim

import "fmt"

// FunctionID is the 32-bit identifier the vendor assigns to each entry
// point reachable through nvapi_QueryInterface. IDs are stable across
// vendor versions and are the sole dispatch key.
type FunctionID uint32

// String renders the identifier the way the vendor's own tooling does.
func (id FunctionID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// FuncPtr is a raw function pointer in the vendor ABI. Zero means the
// function is absent; the shim never fabricates pointers for functions
// the vendor itself does not provide.
type FuncPtr uintptr

// Handle is an opaque pointer-sized value owned by the application or
// the vendor: a COM interface pointer, a struct pointer, an encoder
// session. The shim never dereferences a Handle except through the
// wrapping subsystem.
type Handle uintptr

// Status is the NVAPI status channel. All intercepted entry points
// return through it; the shim never surfaces a Go error to a vendor
// caller.
type Status int32

const (
	// StatusOK reports success.
	StatusOK Status = 0
	// StatusError is the generic failure code.
	StatusError Status = -1
	// StatusInvalidArgument reports a malformed argument.
	StatusInvalidArgument Status = -5
	// StatusInvalidPointer is returned when a handle is not one of our
	// wrapped objects, or when a prerequisite pointer was never
	// captured. Identity failures fail closed through this code.
	StatusInvalidPointer Status = -14
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "NVAPI_OK"
	case StatusError:
		return "NVAPI_ERROR"
	case StatusInvalidArgument:
		return "NVAPI_INVALID_ARGUMENT"
	case StatusInvalidPointer:
		return "NVAPI_INVALID_POINTER"
	default:
		return fmt.Sprintf("NVAPI_STATUS(%d)", int32(s))
	}
}
