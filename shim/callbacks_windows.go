//go:build windows

package shim

import (
	"syscall"
	"unsafe"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/device"
	"github.com/capturefx/nvshim/encode"
)

// NewCallbacks mints the native substitute pointers for every
// intercepted entry point. The trampolines dereference the shim lazily,
// so callbacks can be created before Register wires the interceptors.
//
// amd64 only: syscall.NewCallback produces the Microsoft x64
// convention, which covers both the cdecl dispatch entry point and the
// stdcall encoder exports.
func NewCallbacks(s *Shim) Callbacks {
	return Callbacks{
		QueryInterface: callback(func(id uintptr) uintptr {
			return uintptr(s.Dispatch().Resolve(nvshim.FunctionID(id)))
		}),

		CreateDevice: callback(func(adapter, driverType, software, flags, featureLevels, numLevels, sdkVersion, deviceOut, featureLevelOut, contextOut, nvLevelOut uintptr) uintptr {
			return uintptr(uint32(s.Devices().CreateDevice(device.CreateParams{
				Adapter:          nvshim.Handle(adapter),
				DriverType:       uint32(driverType),
				Software:         nvshim.Handle(software),
				Flags:            uint32(flags),
				FeatureLevels:    nvshim.Handle(featureLevels),
				NumFeatureLevels: uint32(numLevels),
				SDKVersion:       uint32(sdkVersion),
				DeviceOut:        nvshim.Handle(deviceOut),
				FeatureLevelOut:  nvshim.Handle(featureLevelOut),
				ContextOut:       nvshim.Handle(contextOut),
			}, nvshim.Handle(nvLevelOut))))
		}),
		CreateDeviceAndSwapChain: callback(func(adapter, driverType, software, flags, featureLevels, numLevels, sdkVersion, swapChainDesc, swapChainOut, deviceOut, featureLevelOut, contextOut, nvLevelOut uintptr) uintptr {
			return uintptr(uint32(s.Devices().CreateDeviceAndSwapChain(device.CreateParams{
				Adapter:          nvshim.Handle(adapter),
				DriverType:       uint32(driverType),
				Software:         nvshim.Handle(software),
				Flags:            uint32(flags),
				FeatureLevels:    nvshim.Handle(featureLevels),
				NumFeatureLevels: uint32(numLevels),
				SDKVersion:       uint32(sdkVersion),
				SwapChainDesc:    nvshim.Handle(swapChainDesc),
				SwapChainOut:     nvshim.Handle(swapChainOut),
				DeviceOut:        nvshim.Handle(deviceOut),
				FeatureLevelOut:  nvshim.Handle(featureLevelOut),
				ContextOut:       nvshim.Handle(contextOut),
			}, nvshim.Handle(nvLevelOut))))
		}),

		IsOpcodeSupportedD3D11: callback(func(dev, opcode, supported uintptr) uintptr {
			return uintptr(uint32(s.Gate().IsOpcodeSupportedD3D11(
				nvshim.Handle(dev), uint32(opcode), (*bool)(unsafe.Pointer(supported)))))
		}),
		SetSlotD3D11: callback(func(dev, uavSlot uintptr) uintptr {
			return uintptr(uint32(s.Gate().SetSlotD3D11(nvshim.Handle(dev), uint32(uavSlot))))
		}),
		SetSlotLocalThreadD3D11: callback(func(dev, uavSlot uintptr) uintptr {
			return uintptr(uint32(s.Gate().SetSlotLocalThreadD3D11(nvshim.Handle(dev), uint32(uavSlot))))
		}),
		IsOpcodeSupportedD3D12: callback(func(dev, opcode, supported uintptr) uintptr {
			return uintptr(uint32(s.Gate().IsOpcodeSupportedD3D12(
				nvshim.Handle(dev), uint32(opcode), (*bool)(unsafe.Pointer(supported)))))
		}),
		SetSlotSpaceD3D12: callback(func(dev, uavSlot, uavSpace uintptr) uintptr {
			return uintptr(uint32(s.Gate().SetSlotSpaceD3D12(nvshim.Handle(dev), uint32(uavSlot), uint32(uavSpace))))
		}),
		SetSlotSpaceLocalThreadD3D12: callback(func(dev, uavSlot, uavSpace uintptr) uintptr {
			return uintptr(uint32(s.Gate().SetSlotSpaceLocalThreadD3D12(nvshim.Handle(dev), uint32(uavSlot), uint32(uavSpace))))
		}),

		EncodeCreateInstance: callback(func(list uintptr) uintptr {
			return uintptr(s.Encoder().CreateInstance((*encode.FunctionList)(unsafe.Pointer(list))))
		}),
		EncodeRegisterResource: callback(func(encoder, params uintptr) uintptr {
			return uintptr(s.Encoder().RegisterResource(
				nvshim.Handle(encoder), (*encode.RegisterResourceParams)(unsafe.Pointer(params))))
		}),
	}
}

func callback(fn any) nvshim.FuncPtr {
	return nvshim.FuncPtr(syscall.NewCallback(fn))
}
