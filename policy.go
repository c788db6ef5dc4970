package nvshim

import "sync/atomic"

// Policy answers whether vendor-extension support is enabled. The flag
// is owned by the host product's configuration, not by the shim; it may
// change at any time and is read on every dispatch resolution.
type Policy interface {
	VendorExtensionsEnabled() bool
}

// Flag is an atomic Policy implementation for hosts without their own
// configuration plumbing. The zero value is disabled.
type Flag struct {
	enabled atomic.Bool
}

// NewFlag returns a Flag with the given initial state.
func NewFlag(enabled bool) *Flag {
	f := &Flag{}
	f.enabled.Store(enabled)
	return f
}

// VendorExtensionsEnabled implements Policy.
func (f *Flag) VendorExtensionsEnabled() bool {
	return f.enabled.Load()
}

// SetEnabled flips the flag. Safe to call concurrently with readers.
func (f *Flag) SetEnabled(enabled bool) {
	f.enabled.Store(enabled)
}
