//go:build windows

package hooks

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/capturefx/nvshim"
)

// ResolveExport looks up an export from a system module, loading it if
// necessary. Hook implementations that defer real-pointer capture can
// use this to populate Handle.SetFuncPtr once the module is present.
func ResolveExport(module, export string) (nvshim.FuncPtr, error) {
	mod, err := windows.LoadLibraryEx(module, 0, windows.LOAD_LIBRARY_SEARCH_SYSTEM32)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", module, err)
	}

	addr, err := windows.GetProcAddress(mod, export)
	if err != nil {
		return 0, fmt.Errorf("resolve %s!%s: %w", module, export, err)
	}

	return nvshim.FuncPtr(addr), nil
}
