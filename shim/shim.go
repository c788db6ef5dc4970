// Package shim wires the interception layer together: it builds the
// dispatch table with the vendor's function identifiers, installs the
// export hooks, and hands each substituted entry point its
// collaborators.
package shim

import (
	"log/slog"
	"math/bits"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/device"
	"github.com/capturefx/nvshim/dispatch"
	"github.com/capturefx/nvshim/encode"
	"github.com/capturefx/nvshim/hooks"
	"github.com/capturefx/nvshim/iface"
	"github.com/capturefx/nvshim/logging"
	"github.com/capturefx/nvshim/shaderext"
	"github.com/capturefx/nvshim/wrap"
)

// Vendor module names. The 64-bit names apply on 64-bit processes.
const (
	NvAPIModule64  = "nvapi64.dll"
	NvAPIModule32  = "nvapi.dll"
	EncodeModule64 = "nvEncodeAPI64.dll"
	EncodeModule32 = "nvEncodeAPI.dll"

	queryInterfaceExport = "nvapi_QueryInterface"
	createInstanceExport = "NvEncodeAPICreateInstance"
)

// Intercepted function identifiers.
const (
	idCreateDevice             nvshim.FunctionID = 0x6a16d3a0
	idCreateDeviceAndSwapChain nvshim.FunctionID = 0xbb939ee5
	idIsOpcodeSupportedD3D11   nvshim.FunctionID = 0x5f68da40
	idSetSlotD3D11             nvshim.FunctionID = 0x8e90bb9f
	idSetSlotLocalThreadD3D11  nvshim.FunctionID = 0x0e6482a0
	idIsOpcodeSupportedD3D12   nvshim.FunctionID = 0x3dfacec8
	idSetSlotSpaceD3D12        nvshim.FunctionID = 0xac2dfeb5
	idSetSlotSpaceLTD3D12      nvshim.FunctionID = 0x43d867c0
)

// Whitelisted identifiers: resolved during the vendor's own
// initialization sequence, so they must pass through even when the
// extension policy denies everything else. The last three have no
// public name; NvAPI_Initialize fetches them internally.
var whitelisted = []struct {
	id   nvshim.FunctionID
	name string
}{
	{0x0150e828, "NvAPI_Initialize"},
	{0xd22bdd7e, "NvAPI_Unload"},
	{0x6c2d048c, "NvAPI_GetErrorMessage"},
	{0x01053fa5, "NvAPI_GetInterfaceVersionString"},
	{0xad298d3f, ""},
	{0x33c7358c, ""},
	{0x593e8644, ""},
}

// Callbacks holds the substitute function pointers the platform layer
// minted for each intercepted entry point. On Windows these come from
// NewCallbacks; tests use marker values.
type Callbacks struct {
	QueryInterface nvshim.FuncPtr

	CreateDevice             nvshim.FuncPtr
	CreateDeviceAndSwapChain nvshim.FuncPtr

	IsOpcodeSupportedD3D11       nvshim.FuncPtr
	SetSlotD3D11                 nvshim.FuncPtr
	SetSlotLocalThreadD3D11      nvshim.FuncPtr
	IsOpcodeSupportedD3D12       nvshim.FuncPtr
	SetSlotSpaceD3D12            nvshim.FuncPtr
	SetSlotSpaceLocalThreadD3D12 nvshim.FuncPtr

	EncodeCreateInstance   nvshim.FuncPtr
	EncodeRegisterResource nvshim.FuncPtr
}

// Config carries the external collaborators the shim forwards through.
type Config struct {
	Installer hooks.Installer
	Caller    hooks.Caller
	Identity  wrap.Identity
	Unwrapper wrap.ResourceUnwrapper
	Devices   device.Wrapper
	Policy    nvshim.Policy
	Logger    *slog.Logger
}

// Shim is the assembled interception layer.
type Shim struct {
	cfg   Config
	names *iface.Table
	log   *slog.Logger

	dispatch *dispatch.Interceptor
	gate     *shaderext.Gate
	devices  *device.Interceptor
	encoder  *encode.Interceptor
}

// New validates cfg and prepares the shim. Hooks are not installed
// until Register is called with the platform's substitute pointers.
func New(cfg Config) (*Shim, error) {
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"Installer", cfg.Installer != nil},
		{"Caller", cfg.Caller != nil},
		{"Identity", cfg.Identity != nil},
		{"Unwrapper", cfg.Unwrapper != nil},
		{"Devices", cfg.Devices != nil},
		{"Policy", cfg.Policy != nil},
	} {
		if !c.ok {
			return nil, nvshim.ErrMissingCollaborator{Name: c.name}
		}
	}

	names, err := iface.Parse()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger, err = logging.FromEnv()
		if err != nil {
			return nil, err
		}
	}

	return &Shim{cfg: cfg, names: names, log: logger}, nil
}

// Register installs the export hooks and builds the dispatch table.
// Call once, before the application loads the vendor libraries.
func (s *Shim) Register(cb Callbacks) {
	s.log.Info("registering nvidia hooks")

	nvapiModule := moduleName(NvAPIModule32, NvAPIModule64)
	s.cfg.Installer.RegisterLibraryHook(nvapiModule, nil)
	query := s.cfg.Installer.Hook(nvapiModule, queryInterfaceExport, cb.QueryInterface)

	s.dispatch = dispatch.New(query, s.cfg.Caller, s.names, s.cfg.Policy, s.log)

	s.gate = shaderext.New(s.cfg.Caller, s.cfg.Identity, shaderext.Slots{
		IsOpcodeSupportedD3D11:       s.hook(idIsOpcodeSupportedD3D11, cb.IsOpcodeSupportedD3D11),
		SetSlotD3D11:                 s.hook(idSetSlotD3D11, cb.SetSlotD3D11),
		SetSlotLocalThreadD3D11:      s.hook(idSetSlotLocalThreadD3D11, cb.SetSlotLocalThreadD3D11),
		IsOpcodeSupportedD3D12:       s.hook(idIsOpcodeSupportedD3D12, cb.IsOpcodeSupportedD3D12),
		SetSlotSpaceD3D12:            s.hook(idSetSlotSpaceD3D12, cb.SetSlotSpaceD3D12),
		SetSlotSpaceLocalThreadD3D12: s.hook(idSetSlotSpaceLTD3D12, cb.SetSlotSpaceLocalThreadD3D12),
	}, s.log)

	s.devices = device.New(s.cfg.Caller, s.cfg.Devices,
		s.hook(idCreateDevice, cb.CreateDevice),
		s.hook(idCreateDeviceAndSwapChain, cb.CreateDeviceAndSwapChain),
		s.log)

	for _, w := range whitelisted {
		s.dispatch.Whitelist(w.id, w.name)
	}

	// NvEncodeAPI takes wrapped D3D pointers through resource
	// registration, so its instance creation is hooked as well.
	encodeModule := moduleName(EncodeModule32, EncodeModule64)
	s.cfg.Installer.RegisterLibraryHook(encodeModule, nil)
	create := s.cfg.Installer.Hook(encodeModule, createInstanceExport, cb.EncodeCreateInstance)
	s.encoder = encode.New(s.cfg.Caller, s.cfg.Unwrapper, create, cb.EncodeRegisterResource, s.log)
}

func (s *Shim) hook(id nvshim.FunctionID, substitute nvshim.FuncPtr) *dispatch.Slot {
	return s.dispatch.Hook(id, s.names.DisplayName(id), substitute)
}

// Dispatch returns the dispatch interceptor. Valid after Register.
func (s *Shim) Dispatch() *dispatch.Interceptor { return s.dispatch }

// Gate returns the shader-extension gate. Valid after Register.
func (s *Shim) Gate() *shaderext.Gate { return s.gate }

// Devices returns the creation interceptor. Valid after Register.
func (s *Shim) Devices() *device.Interceptor { return s.devices }

// Encoder returns the encoder interceptor. Valid after Register.
func (s *Shim) Encoder() *encode.Interceptor { return s.encoder }

func moduleName(name32, name64 string) string {
	if bits.UintSize == 64 {
		return name64
	}
	return name32
}
