// Package arch is the thin architecture abstraction the core calls but does
// not design: page size, interrupt control, early serial output and the
// logical CPU index used to slot the per-CPU validation cache. One
// implementation is selected at boot per target; this package ships only
// the contract plus a single-core stub suitable for tests and simulation.
package arch

import "sync/atomic"

/// PAGE_SIZE is the architecture's native page size in bytes.
const PAGE_SIZE = 4096

/// Iface is implemented once per supported target and selected at boot.
type Iface interface {
	Halt()
	EnableInterrupts()
	DisableInterrupts()
	WriteSerial(b byte)
	EarlyInit()
	/// CPUID returns the calling logical CPU's index, used to select a
	/// per-CPU validation cache slot. Spec note: a from-scratch port
	/// that has not yet plumbed real CPU topology may return a constant;
	/// callers must tolerate cache-slot collisions in that case.
	CPUID() int
}

/// stub is a single-core, non-hardware-backed Iface used in tests and host
/// simulation. It never actually halts or touches interrupts.
type stub struct {
	halted int32
}

func NewStub() Iface { return &stub{} }

func (s *stub) Halt()              { atomic.StoreInt32(&s.halted, 1) }
func (s *stub) EnableInterrupts()  {}
func (s *stub) DisableInterrupts() {}
func (s *stub) WriteSerial(byte)   {}
func (s *stub) EarlyInit()         {}
func (s *stub) CPUID() int         { return 0 }

/// Current holds the architecture selected at boot. Defaults to the host
/// simulation stub so the core packages are usable outside a real target.
var Current Iface = NewStub()
