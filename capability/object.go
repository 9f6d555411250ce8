package capability

// ObjectKind tags the variant held by an [ObjectRef] and supplies the
// type code packed into a [Token].
type ObjectKind uint8

const (
	ObjectEndpoint ObjectKind = iota + 1
	ObjectChannel
	ObjectSharedRegion
	ObjectProcess
	ObjectMemory
	ObjectInterrupt
)

// ObjectRef is the tagged union identifying the object a capability
// protects. Exactly one of the Kind-specific fields is meaningful for a
// given Kind.
type ObjectRef struct {
	Kind ObjectKind

	EndpointID uint64 // ObjectEndpoint, ObjectChannel

	RegionSize  uint64       // ObjectSharedRegion
	RegionPerms Rights       // ObjectSharedRegion
	RegionID    uint64       // ObjectSharedRegion

	PID uint64 // ObjectProcess

	MemoryFrame uint64 // ObjectMemory
	MemorySize  uint64 // ObjectMemory
	MemoryFlags uint32 // ObjectMemory

	IRQ uint32 // ObjectInterrupt
}

// TypeCode returns the 8-bit type code to pack into a [Token] minted for
// this object.
func (o ObjectRef) TypeCode() uint8 { return uint8(o.Kind) }

// IsValid reports whether the object reference is well-formed enough to
// mint a capability for. It does not check liveness (e.g. that the PID
// still exists); that is the registrant's responsibility.
func (o ObjectRef) IsValid() bool {
	switch o.Kind {
	case ObjectEndpoint, ObjectChannel:
		return true
	case ObjectSharedRegion:
		return o.RegionSize > 0
	case ObjectProcess:
		return o.PID != 0
	case ObjectMemory:
		return o.MemorySize > 0
	case ObjectInterrupt:
		return true
	default:
		return false
	}
}

// Equal reports whether two object references name the same object.
// Used by cascading revocation to find sibling capabilities over the
// same object (see Manager.RevokeCascading).
func (o ObjectRef) Equal(other ObjectRef) bool {
	return o == other
}

func endpointObject(id uint64) ObjectRef { return ObjectRef{Kind: ObjectEndpoint, EndpointID: id} }

func channelObject(id uint64) ObjectRef { return ObjectRef{Kind: ObjectChannel, EndpointID: id} }

// RegionObject builds the ObjectRef for a shared memory region
// capability, see ipc.Region.
func RegionObject(id, size uint64, perms Rights) ObjectRef {
	return ObjectRef{Kind: ObjectSharedRegion, RegionID: id, RegionSize: size, RegionPerms: perms}
}

// EndpointObject builds the ObjectRef for an IPC endpoint capability.
func EndpointObject(id uint64) ObjectRef { return endpointObject(id) }

// ChannelObject builds the ObjectRef for an IPC channel capability.
func ChannelObject(id uint64) ObjectRef { return channelObject(id) }

// ProcessObject builds the ObjectRef for a process capability.
func ProcessObject(pid uint64) ObjectRef { return ObjectRef{Kind: ObjectProcess, PID: pid} }

// MemoryObject builds the ObjectRef for a physical memory capability.
func MemoryObject(frame, size uint64, flags uint32) ObjectRef {
	return ObjectRef{Kind: ObjectMemory, MemoryFrame: frame, MemorySize: size, MemoryFlags: flags}
}

// InterruptObject builds the ObjectRef for an interrupt-line capability.
func InterruptObject(irq uint32) ObjectRef { return ObjectRef{Kind: ObjectInterrupt, IRQ: irq} }
