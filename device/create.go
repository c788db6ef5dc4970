// Package device unifies the two vendor device-creation entry points
// behind the wrapping subsystem's single internal creation routine, so
// wrapping, logging and registration happen once regardless of which
// entry point the application used.
package device

import (
	"log/slog"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/dispatch"
	"github.com/capturefx/nvshim/hooks"
)

// CreateParams carries the D3D11 creation argument surface. Every field
// is opaque to the shim: pointers are forwarded verbatim and never
// dereferenced here.
type CreateParams struct {
	Adapter          nvshim.Handle
	DriverType       uint32
	Software         nvshim.Handle
	Flags            uint32
	FeatureLevels    nvshim.Handle // pointer to the caller's level array
	NumFeatureLevels uint32
	SDKVersion       uint32
	SwapChainDesc    nvshim.Handle // zero when no swapchain was requested
	SwapChainOut     nvshim.Handle // zero when no swapchain was requested
	DeviceOut        nvshim.Handle
	FeatureLevelOut  nvshim.Handle
	ContextOut       nvshim.Handle
}

// RealCreate is the continuation the wrapping subsystem invokes to
// perform the actual vendor call once its own bookkeeping is in place.
type RealCreate func(CreateParams) nvshim.Status

// Wrapper is the wrapping subsystem's shared internal creation routine.
// It owns device wrapping and registration; the shim only routes the
// vendor entry points into it.
type Wrapper interface {
	CreateDevice(params CreateParams, real RealCreate) nvshim.Status
}

// Interceptor implements the substituted NvAPI_D3D11_CreateDevice and
// NvAPI_D3D11_CreateDeviceAndSwapChain entry points.
type Interceptor struct {
	caller  hooks.Caller
	wrapper Wrapper
	log     *slog.Logger

	createDevice             *dispatch.Slot
	createDeviceAndSwapChain *dispatch.Slot
}

// New returns an Interceptor forwarding through the given slots.
func New(caller hooks.Caller, wrapper Wrapper, createDevice, createDeviceAndSwapChain *dispatch.Slot, logger *slog.Logger) *Interceptor {
	return &Interceptor{
		caller:                   caller,
		wrapper:                  wrapper,
		log:                      logger.With(slog.String("component", "device")),
		createDevice:             createDevice,
		createDeviceAndSwapChain: createDeviceAndSwapChain,
	}
}

// CreateDevice is the substituted NvAPI_D3D11_CreateDevice.
// featureLevelOut is the NVAPI_DEVICE_FEATURE_LEVEL out-pointer the
// vendor entry point takes in addition to the D3D11 surface.
func (i *Interceptor) CreateDevice(params CreateParams, featureLevelOut nvshim.Handle) nvshim.Status {
	params.SwapChainDesc = 0
	params.SwapChainOut = 0

	return i.wrapper.CreateDevice(params, func(p CreateParams) nvshim.Status {
		// The internal routine guarantees the swapchain fields stay
		// absent when none was requested.
		if p.SwapChainDesc != 0 || p.SwapChainOut != 0 {
			i.log.Error("internal creation routine supplied swapchain parameters on the device-only path")
		}
		return i.call(i.createDevice, p, featureLevelOut)
	})
}

// CreateDeviceAndSwapChain is the substituted
// NvAPI_D3D11_CreateDeviceAndSwapChain. The swapchain descriptor and
// out-pointer are forwarded verbatim.
func (i *Interceptor) CreateDeviceAndSwapChain(params CreateParams, featureLevelOut nvshim.Handle) nvshim.Status {
	return i.wrapper.CreateDevice(params, func(p CreateParams) nvshim.Status {
		return i.call(i.createDeviceAndSwapChain, p, featureLevelOut)
	})
}

func (i *Interceptor) call(slot *dispatch.Slot, p CreateParams, featureLevelOut nvshim.Handle) nvshim.Status {
	fn := slot.Real()
	if fn == 0 {
		i.log.Error("device creation called before its identifier was resolved",
			slog.String("func", slot.Name()))
		return nvshim.StatusInvalidPointer
	}

	args := []uintptr{
		uintptr(p.Adapter),
		uintptr(p.DriverType),
		uintptr(p.Software),
		uintptr(p.Flags),
		uintptr(p.FeatureLevels),
		uintptr(p.NumFeatureLevels),
		uintptr(p.SDKVersion),
	}
	if slot == i.createDeviceAndSwapChain {
		args = append(args, uintptr(p.SwapChainDesc), uintptr(p.SwapChainOut))
	}
	args = append(args,
		uintptr(p.DeviceOut),
		uintptr(p.FeatureLevelOut),
		uintptr(p.ContextOut),
		uintptr(featureLevelOut),
	)

	return nvshim.Status(int32(uint32(i.caller.Call(fn, args...))))
}
