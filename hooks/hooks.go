// Package hooks declares the boundary to the generic library-hooking
// mechanism and the platform ABI. The redirection machinery itself (IAT
// patching, export resolution) lives in the host product; the shim only
// registers substitutes and invokes captured real pointers through
// these interfaces.
package hooks

import "github.com/capturefx/nvshim"

// Handle is the per-export state the hooking mechanism maintains for a
// substituted export.
type Handle interface {
	// Real returns the captured real export, or zero if the module has
	// not resolved it yet.
	Real() nvshim.FuncPtr

	// SetFuncPtr (re)populates the captured real export. The hooking
	// mechanism calls this lazily when the module loads or re-resolves.
	SetFuncPtr(nvshim.FuncPtr)
}

// Installer registers hooks on a loaded dynamic library.
type Installer interface {
	// RegisterLibraryHook declares interest in module. onLoad, if
	// non-nil, runs once when the module is first loaded.
	RegisterLibraryHook(module string, onLoad func())

	// Hook substitutes the named export of module with substitute and
	// returns the handle through which the real export is reached.
	Hook(module, export string, substitute nvshim.FuncPtr) Handle
}

// Caller invokes a raw vendor function pointer with the platform
// calling convention. Pointer arguments are passed as uintptr; the
// callee's out-parameters are written through them.
type Caller interface {
	Call(fn nvshim.FuncPtr, args ...uintptr) uintptr
}
