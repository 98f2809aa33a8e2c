package defs

/// ResourceType enumerates the kinds of hardware resource the exokernel
/// multiplexes through capabilities.
type ResourceType uint8

const (
	PhysicalPage ResourceType = iota
	VirtualMemory
	IoPort
	Interrupt
	DmaChannel
	Device
	IpcChannel
	Custom
)

func (t ResourceType) String() string {
	switch t {
	case PhysicalPage:
		return "physical_page"
	case VirtualMemory:
		return "virtual_memory"
	case IoPort:
		return "io_port"
	case Interrupt:
		return "interrupt"
	case DmaChannel:
		return "dma_channel"
	case Device:
		return "device"
	case IpcChannel:
		return "ipc_channel"
	case Custom:
		return "custom"
	}
	return "unknown"
}

/// fastHashMul is the 64-bit fractional part of the golden ratio, used to
/// scramble resource ids into well-distributed cache slots.
const fastHashMul uint64 = 0x9E3779B97F4A7C15

/// ResourceId names a single hardware resource: its kind plus a
/// type-scoped 64-bit identifier (e.g. a physical page number, an IRQ
/// line, an I/O port).
type ResourceId struct {
	Type ResourceType
	Id   uint64
}

/// FastHash returns a scrambled 64-bit value suitable for slotting a
/// ResourceId into a small fixed-size cache.
func (r ResourceId) FastHash() uint64 {
	return (r.Id * fastHashMul) ^ uint64(r.Type)
}

/// Less imposes a total order over ResourceId, used wherever a
/// deterministic iteration order over resources is required.
func (r ResourceId) Less(o ResourceId) bool {
	if r.Type != o.Type {
		return r.Type < o.Type
	}
	return r.Id < o.Id
}

/// Rights is a bitfield of capability rights.
type Rights uint16

const (
	READ Rights = 1 << iota
	WRITE
	EXECUTE
	MAP
	DELETE
	TRANSFER
	GRANT
	REVOKE
)

/// TransferableMask is the subset of rights a grantor may hand down to a
/// grantee via grant_*; GRANT itself never propagates.
const TransferableMask Rights = READ | WRITE | EXECUTE | MAP | DELETE

/// Has reports whether all bits of want are present in r.
func (r Rights) Has(want Rights) bool {
	return r&want == want
}

/// String renders the set bits for log lines, e.g. "R-X-----".
func (r Rights) String() string {
	flag := func(b Rights, c byte) byte {
		if r.Has(b) {
			return c
		}
		return '-'
	}
	buf := []byte{
		flag(READ, 'R'),
		flag(WRITE, 'W'),
		flag(EXECUTE, 'X'),
		flag(MAP, 'M'),
		flag(DELETE, 'D'),
		flag(TRANSFER, 'T'),
		flag(GRANT, 'G'),
		flag(REVOKE, 'V'),
	}
	return string(buf)
}

/// RequiredExclusiveRights returns the rights try_exclusive requires for a
/// given resource type, per the borrow state machine's required-rights
/// table.
func RequiredExclusiveRights(t ResourceType) Rights {
	switch t {
	case PhysicalPage, VirtualMemory:
		return WRITE | MAP
	case Device, IoPort:
		return WRITE
	default:
		return WRITE
	}
}
