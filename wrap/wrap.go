// Package wrap declares the boundary to the device/resource wrapping
// subsystem. The shim uses it to answer "is this opaque handle one of
// our wrapped objects?" and, when it is, to reach the native object
// underneath without disturbing the object's lifetime.
package wrap

import "github.com/capturefx/nvshim"

// SpaceUnspecified is the register-space value recorded for the bind
// variants that carry no space argument (the D3D11 shapes).
const SpaceUnspecified = ^uint32(0)

// Device is a wrapped graphics device or context recognised by the
// identity probe.
type Device interface {
	// Real returns the native device underneath the wrapper. The
	// reference is non-owning; callers must not release it.
	Real() nvshim.Handle

	// SetShaderExtUAV records the shader-extension UAV binding in the
	// device's slot-tracking sink. perThread marks a binding scoped to
	// the calling thread rather than the whole device.
	SetShaderExtUAV(space, slot uint32, perThread bool)
}

// Identity is the capability probe. It succeeds only for handles the
// wrapping subsystem created itself.
//
// The probe is a read-only identity check, not an ownership transfer:
// it must not touch the handle's reference count, and probing the same
// handle twice yields the same Device.
type Identity interface {
	QueryIdentity(handle nvshim.Handle) (Device, bool)
}

// ResourceUnwrapper translates a wrapped graphics resource handle to
// its native counterpart. It returns zero when the handle is not one of
// ours or cannot be translated.
type ResourceUnwrapper interface {
	UnwrapResource(handle nvshim.Handle) nvshim.Handle
}
