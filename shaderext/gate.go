package shaderext

import (
	"log/slog"
	"unsafe"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/dispatch"
	"github.com/capturefx/nvshim/hooks"
	"github.com/capturefx/nvshim/wrap"
)

// Slots holds the dispatch slots the gate forwards through. Each slot's
// real pointer is captured by the dispatch interceptor the first time
// the application resolves the matching identifier.
type Slots struct {
	IsOpcodeSupportedD3D11       *dispatch.Slot
	SetSlotD3D11                 *dispatch.Slot
	SetSlotLocalThreadD3D11      *dispatch.Slot
	IsOpcodeSupportedD3D12       *dispatch.Slot
	SetSlotSpaceD3D12            *dispatch.Slot
	SetSlotSpaceLocalThreadD3D12 *dispatch.Slot
}

// Gate implements the substituted shader-extension entry points. It is
// stateless across calls; the only side effects are bindings recorded
// in the probed device's slot-tracking sink.
type Gate struct {
	caller   hooks.Caller
	identity wrap.Identity
	slots    Slots
	log      *slog.Logger
}

// New returns a Gate that probes devices through identity and forwards
// to the vendor through caller.
func New(caller hooks.Caller, identity wrap.Identity, slots Slots, logger *slog.Logger) *Gate {
	return &Gate{
		caller:   caller,
		identity: identity,
		slots:    slots,
		log:      logger.With(slog.String("component", "shaderext")),
	}
}

// IsOpcodeSupportedD3D11 is the substituted
// NvAPI_D3D11_IsNvShaderExtnOpCodeSupported.
func (g *Gate) IsOpcodeSupportedD3D11(dev nvshim.Handle, opcode uint32, supported *bool) nvshim.Status {
	return g.isOpcodeSupported(g.slots.IsOpcodeSupportedD3D11, dev, opcode, supported)
}

// IsOpcodeSupportedD3D12 is the substituted
// NvAPI_D3D12_IsNvShaderExtnOpCodeSupported.
func (g *Gate) IsOpcodeSupportedD3D12(dev nvshim.Handle, opcode uint32, supported *bool) nvshim.Status {
	return g.isOpcodeSupported(g.slots.IsOpcodeSupportedD3D12, dev, opcode, supported)
}

// SetSlotD3D11 is the substituted NvAPI_D3D11_SetNvShaderExtnSlot.
func (g *Gate) SetSlotD3D11(dev nvshim.Handle, uavSlot uint32) nvshim.Status {
	return g.setSlot(g.slots.SetSlotD3D11, dev, uavSlot, wrap.SpaceUnspecified, false, false)
}

// SetSlotLocalThreadD3D11 is the substituted
// NvAPI_D3D11_SetNvShaderExtnSlotLocalThread.
func (g *Gate) SetSlotLocalThreadD3D11(dev nvshim.Handle, uavSlot uint32) nvshim.Status {
	return g.setSlot(g.slots.SetSlotLocalThreadD3D11, dev, uavSlot, wrap.SpaceUnspecified, false, true)
}

// SetSlotSpaceD3D12 is the substituted
// NvAPI_D3D12_SetNvShaderExtnSlotSpace.
func (g *Gate) SetSlotSpaceD3D12(dev nvshim.Handle, uavSlot, uavSpace uint32) nvshim.Status {
	return g.setSlot(g.slots.SetSlotSpaceD3D12, dev, uavSlot, uavSpace, true, false)
}

// SetSlotSpaceLocalThreadD3D12 is the substituted
// NvAPI_D3D12_SetNvShaderExtnSlotSpaceLocalThread.
func (g *Gate) SetSlotSpaceLocalThreadD3D12(dev nvshim.Handle, uavSlot, uavSpace uint32) nvshim.Status {
	return g.setSlot(g.slots.SetSlotSpaceLocalThreadD3D12, dev, uavSlot, uavSpace, true, true)
}

func (g *Gate) isOpcodeSupported(slot *dispatch.Slot, dev nvshim.Handle, opcode uint32, supported *bool) nvshim.Status {
	wrapped, ok := g.identity.QueryIdentity(dev)
	if !ok {
		// Not one of our wrapped devices: fail closed rather than pass
		// an unknown object to the driver.
		return nvshim.StatusInvalidPointer
	}

	fn := slot.Real()
	if fn == 0 {
		g.log.Error("shader extension query called before its identifier was resolved",
			slog.String("func", slot.Name()))
		return nvshim.StatusInvalidPointer
	}

	ret := status(g.caller.Call(fn,
		uintptr(wrapped.Real()),
		uintptr(opcode),
		uintptr(unsafe.Pointer(supported))))

	// Narrow the driver's answer with our allow-list. An opcode outside
	// the list is unsupported no matter what the hardware says.
	if supported != nil {
		*supported = *supported && Supported(Opcode(opcode))
	}

	return ret
}

func (g *Gate) setSlot(slot *dispatch.Slot, dev nvshim.Handle, uavSlot, uavSpace uint32, hasSpace, perThread bool) nvshim.Status {
	wrapped, ok := g.identity.QueryIdentity(dev)
	if !ok {
		return nvshim.StatusInvalidPointer
	}

	fn := slot.Real()
	if fn == 0 {
		g.log.Error("shader extension bind called before its identifier was resolved",
			slog.String("func", slot.Name()))
		return nvshim.StatusInvalidPointer
	}

	args := []uintptr{uintptr(wrapped.Real()), uintptr(uavSlot)}
	if hasSpace {
		args = append(args, uintptr(uavSpace))
	}
	ret := status(g.caller.Call(fn, args...))

	wrapped.SetShaderExtUAV(uavSpace, uavSlot, perThread)

	return ret
}

// status narrows a raw ABI return value to the 32-bit NVAPI status.
func status(r uintptr) nvshim.Status {
	return nvshim.Status(int32(uint32(r)))
}
