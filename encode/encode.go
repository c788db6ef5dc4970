// Package encode intercepts NvEncodeAPI instance creation to patch the
// resource-registration entry of the returned function table, and
// rewrites wrapped D3D resource handles in registration calls so the
// encoder sees native resources. The registration struct is caller
// owned: the handle field is rewritten in place and always restored
// before returning.
package encode

import (
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/hooks"
	"github.com/capturefx/nvshim/wrap"
)

// Status is the NVENC status channel.
type Status uint32

const (
	// Success reports success.
	Success Status = 0
	// ErrInvalidPtr is NV_ENC_ERR_INVALID_PTR, returned for ordering
	// violations the same way the encoder itself reports bad pointers.
	ErrInvalidPtr Status = 6
)

// ResourceType discriminates the union inside the registration struct.
type ResourceType uint32

const (
	// ResourceDirectX marks a D3D texture; the only kind that needs
	// unwrapping.
	ResourceDirectX ResourceType = 0
	// ResourceCUDADevicePtr marks a CUDA device pointer.
	ResourceCUDADevicePtr ResourceType = 1
	// ResourceCUDAArray marks a CUDA array.
	ResourceCUDAArray ResourceType = 2
	// ResourceOpenGLTex marks an OpenGL texture.
	ResourceOpenGLTex ResourceType = 3
)

// ExpectedVersion is the NV_ENC_REGISTER_RESOURCE struct version the
// shim was written against: magic 7, API 8.1, struct revision 2. A
// newer vendor runtime may report a different value; that is logged,
// never fatal.
const ExpectedVersion uint32 = 7<<28 | 1<<24 | 8<<1 | 2<<16

// RegisterResourceParams is the leading, understood portion of
// NV_ENC_REGISTER_RESOURCE. The struct continues past Resource with
// fields the shim never reads or writes; it is never allocated here,
// only patched in place.
type RegisterResourceParams struct {
	Version          uint32
	ResourceType     ResourceType
	Width            uint32
	Height           uint32
	Pitch            uint32
	SubresourceIndex uint32
	Resource         nvshim.Handle
}

// FunctionList is the leading portion of NV_ENCODE_API_FUNCTION_LIST.
// Only RegisterResource is patched; everything else passes through
// untouched, including the entries past the modeled prefix.
type FunctionList struct {
	Version          uint32
	Reserved         uint32
	Other            [30]nvshim.FuncPtr
	RegisterResource nvshim.FuncPtr
}

// Interceptor implements the substituted NvEncodeAPICreateInstance and
// the registration wrapper it installs.
type Interceptor struct {
	caller     hooks.Caller
	unwrap     wrap.ResourceUnwrapper
	create     hooks.Handle   // real NvEncodeAPICreateInstance
	substitute nvshim.FuncPtr // patched into returned function lists
	real       atomic.Uintptr // captured real registration pointer
	log        *slog.Logger
}

// New returns an Interceptor whose registration wrapper is reachable at
// substitute (the pointer the platform layer minted for
// RegisterResource).
func New(caller hooks.Caller, unwrap wrap.ResourceUnwrapper, create hooks.Handle, substitute nvshim.FuncPtr, logger *slog.Logger) *Interceptor {
	return &Interceptor{
		caller:     caller,
		unwrap:     unwrap,
		create:     create,
		substitute: substitute,
		log:        logger.With(slog.String("component", "encode")),
	}
}

// RealRegisterResource returns the captured real registration pointer,
// or zero before the first successful CreateInstance.
func (i *Interceptor) RealRegisterResource() nvshim.FuncPtr {
	return nvshim.FuncPtr(i.real.Load())
}

// CreateInstance is the substituted NvEncodeAPICreateInstance. On
// success it captures the real registration pointer out of the returned
// table and patches in the shim's wrapper.
func (i *Interceptor) CreateInstance(list *FunctionList) Status {
	fn := i.create.Real()
	if fn == 0 {
		i.log.Error("NvEncodeAPICreateInstance intercepted before its real export was captured")
		return ErrInvalidPtr
	}

	ret := Status(uint32(i.caller.Call(fn, uintptr(unsafe.Pointer(list)))))
	if ret != Success || list == nil || list.RegisterResource == 0 {
		return ret
	}

	if list.Version != ExpectedVersion {
		i.log.Warn("NvEncodeAPICreateInstance returned an unexpected struct version",
			slog.Uint64("version", uint64(list.Version)),
			slog.Uint64("expected", uint64(ExpectedVersion)))
	}

	// Multiple distinct registration pointers across instances would
	// mean two encoder runtimes in one process; the newest wins.
	prev := nvshim.FuncPtr(i.real.Load())
	if prev != 0 && prev != list.RegisterResource {
		i.log.Error("registration pointer changed across instance creations",
			slog.Uint64("previous", uint64(prev)),
			slog.Uint64("current", uint64(list.RegisterResource)))
	}
	i.real.Store(uintptr(list.RegisterResource))

	list.RegisterResource = i.substitute
	return ret
}

// RegisterResource is the substituted nvEncRegisterResource. For D3D
// resources the wrapped handle is swapped for its native counterpart
// for the duration of the real call and restored on every exit path.
func (i *Interceptor) RegisterResource(encoder nvshim.Handle, params *RegisterResourceParams) Status {
	real := nvshim.FuncPtr(i.real.Load())
	if real == 0 {
		i.log.Error("nvEncRegisterResource called without an intercepted NvEncodeAPICreateInstance")
		return ErrInvalidPtr
	}

	// Only D3D textures carry a handle the wrapping subsystem owns.
	if encoder == 0 || params == nil || params.ResourceType != ResourceDirectX {
		return i.callReal(real, encoder, params)
	}

	orig := params.Resource
	defer func() {
		// The struct is caller-owned; it must not be left mutated.
		params.Resource = orig
	}()

	if native := i.unwrap.UnwrapResource(orig); native != 0 {
		params.Resource = native
	} else {
		// Fail open: registering the wrapped handle may still work,
		// refusing the call outright definitely breaks the encoder.
		i.log.Error("failed to unwrap D3D resource handle, passing through",
			slog.Uint64("handle", uint64(orig)))
	}

	return i.callReal(real, encoder, params)
}

func (i *Interceptor) callReal(fn nvshim.FuncPtr, encoder nvshim.Handle, params *RegisterResourceParams) Status {
	return Status(uint32(i.caller.Call(fn, uintptr(encoder), uintptr(unsafe.Pointer(params)))))
}
