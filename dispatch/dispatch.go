// Package dispatch intercepts the vendor's numeric-ID dispatch entry
// point (nvapi_QueryInterface). Every resolution of every identifier is
// routed through Resolve, which decides between passing the real
// pointer through, substituting one of our own, or denying.
package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/capturefx/nvshim"
	"github.com/capturefx/nvshim/hooks"
	"github.com/capturefx/nvshim/iface"
)

// denialWarnLimit caps how many policy denials are logged per process.
// Some applications resolve identifiers at very high frequency; past
// the first few denials the log adds nothing.
const denialWarnLimit = 10

type role uint8

const (
	roleHooked role = iota + 1
	roleWhitelisted
)

// Slot is the per-identifier storage for an intercepted function: the
// real pointer captured from the vendor resolver and the substitute we
// hand back to callers. A slot lives for the whole process.
type Slot struct {
	name       string
	substitute nvshim.FuncPtr
	real       atomic.Uintptr
}

// Real returns the most recently captured real pointer, or zero if the
// identifier has never been resolved.
func (s *Slot) Real() nvshim.FuncPtr {
	return nvshim.FuncPtr(s.real.Load())
}

// Substitute returns the pointer handed back in place of the real one.
func (s *Slot) Substitute() nvshim.FuncPtr {
	return s.substitute
}

// Name returns the interface name the slot was registered under.
func (s *Slot) Name() string {
	return s.name
}

func (s *Slot) capture(p nvshim.FuncPtr) {
	s.real.Store(uintptr(p))
}

type entry struct {
	name string
	role role
	slot *Slot
}

// Interceptor routes vendor dispatch resolutions. Registration happens
// once, before the hook is installed; after that the table is immutable
// and Resolve may run on any number of application threads.
type Interceptor struct {
	query   hooks.Handle
	caller  hooks.Caller
	table   map[nvshim.FunctionID]entry
	names   *iface.Table
	policy  nvshim.Policy
	log     *slog.Logger
	denials atomic.Int64
}

// New returns an Interceptor that resolves through query and calls the
// real resolver via caller.
func New(query hooks.Handle, caller hooks.Caller, names *iface.Table, policy nvshim.Policy, logger *slog.Logger) *Interceptor {
	return &Interceptor{
		query:  query,
		caller: caller,
		table:  make(map[nvshim.FunctionID]entry),
		names:  names,
		policy: policy,
		log:    logger.With(slog.String("component", "dispatch")),
	}
}

// Hook registers an interception entry: resolutions of id capture the
// real pointer into the returned slot and hand substitute back to the
// caller. Must be called before the hook is installed.
func (i *Interceptor) Hook(id nvshim.FunctionID, name string, substitute nvshim.FuncPtr) *Slot {
	s := &Slot{name: name, substitute: substitute}
	i.table[id] = entry{name: name, role: roleHooked, slot: s}
	return s
}

// Whitelist registers an unconditional passthrough entry. Used for the
// identifiers the vendor's own initialization sequence resolves; denying
// those would break NvAPI_Initialize itself.
func (i *Interceptor) Whitelist(id nvshim.FunctionID, name string) {
	i.table[id] = entry{name: name, role: roleWhitelisted}
}

// Resolve is the substituted nvapi_QueryInterface. It never fails: every
// path returns either a valid pointer or zero.
func (i *Interceptor) Resolve(id nvshim.FunctionID) nvshim.FuncPtr {
	resolver := i.query.Real()
	if resolver == 0 {
		return 0
	}

	real := nvshim.FuncPtr(i.caller.Call(resolver, uintptr(id)))
	if real == 0 {
		// The vendor doesn't support this function; never fabricate.
		return 0
	}

	if e, ok := i.table[id]; ok {
		if e.role == roleWhitelisted {
			return real
		}
		// Anchor to the most recent resolution. The vendor resolver
		// returns stable pointers in practice, but that is an
		// assumption, not a verified guarantee.
		e.slot.capture(real)
		return e.slot.substitute
	}

	if i.policy.VendorExtensionsEnabled() {
		i.log.Debug("NvAPI allowed, returning real pointer",
			slog.String("func", i.names.DisplayName(id)),
			slog.Uint64("ptr", uint64(real)))
		return real
	}

	if n := i.denials.Add(1); n <= denialWarnLimit {
		i.log.Warn("NvAPI disabled, returning NULL",
			slog.String("func", i.names.DisplayName(id)))
	}
	return 0
}
