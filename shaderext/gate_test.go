package shaderext_test

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/dispatch"
	"github.com/capturefx/nvshim/iface"
	"github.com/capturefx/nvshim/shaderext"
	"github.com/capturefx/nvshim/wrap"
)

// testLogger returns a logger for tests. By default it discards all
// output. Set NVSHIM_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("NVSHIM_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Marker pointers for the fake vendor's exports.
const (
	resolverPtr = nvshim.FuncPtr(0x5000)

	realIsSupported11 = nvshim.FuncPtr(0x6001)
	realSetSlot11     = nvshim.FuncPtr(0x6002)
	realSetSlotLT11   = nvshim.FuncPtr(0x6003)
	realIsSupported12 = nvshim.FuncPtr(0x6004)
	realSetSlot12     = nvshim.FuncPtr(0x6005)
	realSetSlotLT12   = nvshim.FuncPtr(0x6006)
)

type fakeHandle struct {
	real nvshim.FuncPtr
}

func (h *fakeHandle) Real() nvshim.FuncPtr        { return h.real }
func (h *fakeHandle) SetFuncPtr(p nvshim.FuncPtr) { h.real = p }

type vendorCall struct {
	fn   nvshim.FuncPtr
	args []uintptr
}

// fakeVendor simulates the driver: the resolver export maps identifiers
// to the real pointers above, the query exports write the driver's
// opcode answer through the out-parameter, and every call is recorded.
type fakeVendor struct {
	exports        map[nvshim.FunctionID]nvshim.FuncPtr
	driverSupports bool
	ret            nvshim.Status
	calls          []vendorCall
}

func (v *fakeVendor) Call(fn nvshim.FuncPtr, args ...uintptr) uintptr {
	if fn == resolverPtr {
		return uintptr(v.exports[nvshim.FunctionID(args[0])])
	}

	v.calls = append(v.calls, vendorCall{fn: fn, args: args})
	if fn == realIsSupported11 || fn == realIsSupported12 {
		if p := (*bool)(unsafe.Pointer(args[2])); p != nil {
			*p = v.driverSupports
		}
	}
	return uintptr(uint32(int32(v.ret)))
}

type binding struct {
	space     uint32
	slot      uint32
	perThread bool
}

type fakeDevice struct {
	native   nvshim.Handle
	bindings []binding
}

func (d *fakeDevice) Real() nvshim.Handle { return d.native }

func (d *fakeDevice) SetShaderExtUAV(space, slot uint32, perThread bool) {
	d.bindings = append(d.bindings, binding{space: space, slot: slot, perThread: perThread})
}

type fakeIdentity struct {
	devices map[nvshim.Handle]*fakeDevice
}

func (f *fakeIdentity) QueryIdentity(h nvshim.Handle) (wrap.Device, bool) {
	d, ok := f.devices[h]
	if !ok {
		return nil, false
	}
	return d, true
}

type fixture struct {
	gate     *shaderext.Gate
	vendor   *fakeVendor
	device   *fakeDevice
	identity *fakeIdentity
}

const wrappedDev = nvshim.Handle(0x100)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	names, err := iface.Parse()
	require.NoError(t, err)

	vendor := &fakeVendor{
		exports: map[nvshim.FunctionID]nvshim.FuncPtr{
			0x5f68da40: realIsSupported11,
			0x8e90bb9f: realSetSlot11,
			0x0e6482a0: realSetSlotLT11,
			0x3dfacec8: realIsSupported12,
			0xac2dfeb5: realSetSlot12,
			0x43d867c0: realSetSlotLT12,
		},
		driverSupports: true,
		ret:            nvshim.StatusOK,
	}

	interceptor := dispatch.New(&fakeHandle{real: resolverPtr}, vendor, names, nvshim.NewFlag(true), testLogger())

	slots := shaderext.Slots{
		IsOpcodeSupportedD3D11:       interceptor.Hook(0x5f68da40, "NvAPI_D3D11_IsNvShaderExtnOpCodeSupported", 0x9001),
		SetSlotD3D11:                 interceptor.Hook(0x8e90bb9f, "NvAPI_D3D11_SetNvShaderExtnSlot", 0x9002),
		SetSlotLocalThreadD3D11:      interceptor.Hook(0x0e6482a0, "NvAPI_D3D11_SetNvShaderExtnSlotLocalThread", 0x9003),
		IsOpcodeSupportedD3D12:       interceptor.Hook(0x3dfacec8, "NvAPI_D3D12_IsNvShaderExtnOpCodeSupported", 0x9004),
		SetSlotSpaceD3D12:            interceptor.Hook(0xac2dfeb5, "NvAPI_D3D12_SetNvShaderExtnSlotSpace", 0x9005),
		SetSlotSpaceLocalThreadD3D12: interceptor.Hook(0x43d867c0, "NvAPI_D3D12_SetNvShaderExtnSlotSpaceLocalThread", 0x9006),
	}

	// The application resolves each identifier before calling it; that
	// is what captures the real pointers into the slots.
	for id := range vendor.exports {
		interceptor.Resolve(id)
	}

	device := &fakeDevice{native: 0x200}
	identity := &fakeIdentity{devices: map[nvshim.Handle]*fakeDevice{wrappedDev: device}}

	return &fixture{
		gate:     shaderext.New(vendor, identity, slots, testLogger()),
		vendor:   vendor,
		device:   device,
		identity: identity,
	}
}

func TestIsOpcodeSupportedForeignDeviceFailsClosed(t *testing.T) {
	f := newFixture(t)

	supported := true
	ret := f.gate.IsOpcodeSupportedD3D11(0xbad, uint32(shaderext.OpShuffle), &supported)
	assert.Equal(t, nvshim.StatusInvalidPointer, ret)
	assert.Empty(t, f.vendor.calls, "real function must not run for a foreign device")
}

func TestIsOpcodeSupportedForwardsNativeDevice(t *testing.T) {
	f := newFixture(t)

	var supported bool
	ret := f.gate.IsOpcodeSupportedD3D11(wrappedDev, uint32(shaderext.OpShuffle), &supported)
	assert.Equal(t, nvshim.StatusOK, ret)
	assert.True(t, supported)

	require.Len(t, f.vendor.calls, 1)
	call := f.vendor.calls[0]
	assert.Equal(t, realIsSupported11, call.fn)
	assert.Equal(t, uintptr(f.device.native), call.args[0])
}

func TestIsOpcodeSupportedNarrowsByAllowList(t *testing.T) {
	tests := []struct {
		name           string
		opcode         uint32
		driverSupports bool
		want           bool
	}{
		{"allowed and driver supported", uint32(shaderext.OpVoteBallot), true, true},
		{"allowed but driver unsupported", uint32(shaderext.OpVoteBallot), false, false},
		{"outside allow-list despite driver support", 9, true, false},
		{"outside allow-list and driver unsupported", 9, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.vendor.driverSupports = tt.driverSupports

			supported := !tt.want // prove it gets overwritten
			ret := f.gate.IsOpcodeSupportedD3D12(wrappedDev, tt.opcode, &supported)
			assert.Equal(t, nvshim.StatusOK, ret)
			assert.Equal(t, tt.want, supported)
		})
	}
}

func TestIsOpcodeSupportedNilOutParam(t *testing.T) {
	f := newFixture(t)

	ret := f.gate.IsOpcodeSupportedD3D11(wrappedDev, uint32(shaderext.OpShuffle), nil)
	assert.Equal(t, nvshim.StatusOK, ret)
}

func TestSetSlotD3D11RecordsUnspecifiedSpace(t *testing.T) {
	f := newFixture(t)

	ret := f.gate.SetSlotD3D11(wrappedDev, 7)
	assert.Equal(t, nvshim.StatusOK, ret)

	require.Len(t, f.vendor.calls, 1)
	call := f.vendor.calls[0]
	assert.Equal(t, realSetSlot11, call.fn)
	assert.Equal(t, []uintptr{uintptr(f.device.native), 7}, call.args)

	require.Len(t, f.device.bindings, 1)
	assert.Equal(t, binding{space: wrap.SpaceUnspecified, slot: 7, perThread: false}, f.device.bindings[0])
}

func TestSetSlotLocalThreadD3D11RecordsPerThreadScope(t *testing.T) {
	f := newFixture(t)

	ret := f.gate.SetSlotLocalThreadD3D11(wrappedDev, 3)
	assert.Equal(t, nvshim.StatusOK, ret)

	require.Len(t, f.device.bindings, 1)
	assert.Equal(t, binding{space: wrap.SpaceUnspecified, slot: 3, perThread: true}, f.device.bindings[0])
}

func TestSetSlotSpaceD3D12ForwardsAndRecordsSpace(t *testing.T) {
	f := newFixture(t)

	ret := f.gate.SetSlotSpaceD3D12(wrappedDev, 4, 2)
	assert.Equal(t, nvshim.StatusOK, ret)

	require.Len(t, f.vendor.calls, 1)
	assert.Equal(t, []uintptr{uintptr(f.device.native), 4, 2}, f.vendor.calls[0].args)

	require.Len(t, f.device.bindings, 1)
	assert.Equal(t, binding{space: 2, slot: 4, perThread: false}, f.device.bindings[0])
}

func TestSetSlotSpaceLocalThreadD3D12RecordsPerThreadScope(t *testing.T) {
	f := newFixture(t)

	ret := f.gate.SetSlotSpaceLocalThreadD3D12(wrappedDev, 5, 1)
	assert.Equal(t, nvshim.StatusOK, ret)

	require.Len(t, f.device.bindings, 1)
	assert.Equal(t, binding{space: 1, slot: 5, perThread: true}, f.device.bindings[0])
}

func TestSetSlotForeignDeviceRecordsNothing(t *testing.T) {
	f := newFixture(t)

	ret := f.gate.SetSlotD3D11(0xbad, 7)
	assert.Equal(t, nvshim.StatusInvalidPointer, ret)
	assert.Empty(t, f.vendor.calls)
	assert.Empty(t, f.device.bindings)
}

func TestSetSlotPropagatesVendorStatus(t *testing.T) {
	f := newFixture(t)
	f.vendor.ret = nvshim.StatusError

	ret := f.gate.SetSlotD3D11(wrappedDev, 7)
	assert.Equal(t, nvshim.StatusError, ret)
	// The binding is still recorded; the sink mirrors what the driver
	// was asked to do.
	assert.Len(t, f.device.bindings, 1)
}

func TestIdentityProbeIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, ok := f.identity.QueryIdentity(wrappedDev)
	require.True(t, ok)
	second, ok := f.identity.QueryIdentity(wrappedDev)
	require.True(t, ok)
	assert.Equal(t, first.Real(), second.Real())
}

func TestSupportedAllowListBoundaries(t *testing.T) {
	assert.True(t, shaderext.Supported(shaderext.OpShuffle))
	assert.True(t, shaderext.Supported(shaderext.OpMatchAnyValue))
	assert.False(t, shaderext.Supported(0))
	assert.False(t, shaderext.Supported(9))
	assert.False(t, shaderext.Supported(255))
}
