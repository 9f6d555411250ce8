// Package ipc implements VeridianOS's synchronous/asynchronous message
// passing: endpoints, channels, shared memory regions, and the
// performance counters used to check the IPC fast-path budget.
package ipc

// SmallMessageMaxSize bounds a [SmallMessage]'s inline payload: messages
// this size or smaller travel as plain values, never touching a heap
// allocation or the region subsystem.
const SmallMessageMaxSize = 64

// DataRegisters is the number of inline u64 payload slots a
// [SmallMessage] carries, mirroring the CPU register budget the
// original fast path reserves for IPC arguments.
const DataRegisters = 4

// MessageFlag is a bit flag set carried by every message, small or
// large.
type MessageFlag uint32

const (
	FlagUrgent MessageFlag = 1 << iota
	FlagUnordered
	FlagNeedsAck
	FlagIsReply
	FlagHasCapability
)

// RegionPermission describes access rights on a [MemoryRegion] transfer.
type RegionPermission uint32

const (
	PermRead RegionPermission = 1 << iota
	PermWrite
	PermExecute
	PermShared
)

// CachePolicy selects how a shared region's pages are cached.
type CachePolicy uint32

const (
	CacheWriteBack CachePolicy = iota
	CacheWriteThrough
	CacheUncached
	CacheWriteCombining
)

// SmallMessage is a register-sized message: a capability token, an
// opcode, flags, and up to [DataRegisters] inline u64 payload words.
// Grounded on original_source/kernel/src/ipc/message.rs's SmallMessage.
type SmallMessage struct {
	Capability uint64
	Opcode     uint32
	Flags      MessageFlag
	Data       [DataRegisters]uint64
}

// NewSmallMessage returns a message with no flags or payload set.
func NewSmallMessage(capability uint64, opcode uint32) SmallMessage {
	return SmallMessage{Capability: capability, Opcode: opcode}
}

// WithFlags returns a copy of m with flags set.
func (m SmallMessage) WithFlags(flags MessageFlag) SmallMessage {
	m.Flags = flags
	return m
}

// WithData returns a copy of m with data register index set to value.
// Out-of-range indices are ignored, matching the original's silent
// bounds check.
func (m SmallMessage) WithData(index int, value uint64) SmallMessage {
	if index >= 0 && index < DataRegisters {
		m.Data[index] = value
	}
	return m
}

// MemoryRegion describes a shared-memory transfer: base address, size,
// permissions, and cache policy.
type MemoryRegion struct {
	BaseAddr    uint64
	Size        uint64
	Permissions RegionPermission
	CachePolicy CachePolicy
}

// NewMemoryRegion returns a region descriptor with no permissions set.
func NewMemoryRegion(baseAddr, size uint64) MemoryRegion {
	return MemoryRegion{BaseAddr: baseAddr, Size: size}
}

// WithPermissions returns a copy of r with permissions set.
func (r MemoryRegion) WithPermissions(perms RegionPermission) MemoryRegion {
	r.Permissions = perms
	return r
}

// WithCachePolicy returns a copy of r with its cache policy set.
func (r MemoryRegion) WithCachePolicy(policy CachePolicy) MemoryRegion {
	r.CachePolicy = policy
	return r
}

// MessageHeader carries a large message's out-of-band metadata.
type MessageHeader struct {
	Capability uint64
	Opcode     uint32
	Flags      MessageFlag
	TotalSize  uint64
	Checksum   uint32
}

// LargeMessage is a message whose payload lives in a shared
// [MemoryRegion], with room for a small amount of inline data for
// hybrid transfers that need both register-speed metadata and a bulk
// payload.
type LargeMessage struct {
	Header       MessageHeader
	Region       MemoryRegion
	InlineData   [SmallMessageMaxSize]byte
	inlineLength int
}

// NewLargeMessage returns a large message addressing region, with its
// header's TotalSize computed from the region size.
func NewLargeMessage(capability uint64, opcode uint32, region MemoryRegion) LargeMessage {
	return LargeMessage{
		Header: MessageHeader{
			Capability: capability,
			Opcode:     opcode,
			TotalSize:  region.Size,
		},
		Region: region,
	}
}

// WithInlineData returns a copy of m with up to SmallMessageMaxSize
// bytes of data copied into its inline buffer; excess bytes are
// silently truncated.
func (m LargeMessage) WithInlineData(data []byte) LargeMessage {
	n := copy(m.InlineData[:], data)
	m.inlineLength = n
	return m
}

// InlineBytes returns the portion of InlineData actually written by
// WithInlineData.
func (m LargeMessage) InlineBytes() []byte { return m.InlineData[:m.inlineLength] }

// MessageKind discriminates a [Message]'s active variant.
type MessageKind uint8

const (
	MessageKindSmall MessageKind = iota
	MessageKindLarge
)

// Message is the sum type carried by an [Endpoint] or [Channel]: either
// a [SmallMessage] transferred by value or a [LargeMessage] whose bulk
// payload lives in shared memory. Exactly one of Small/Large is
// meaningful, selected by Kind.
type Message struct {
	Kind  MessageKind
	Small SmallMessage
	Large LargeMessage
}

// SmallMsg wraps msg as a Message.
func SmallMsg(msg SmallMessage) Message { return Message{Kind: MessageKindSmall, Small: msg} }

// LargeMsg wraps msg as a Message.
func LargeMsg(msg LargeMessage) Message { return Message{Kind: MessageKindLarge, Large: msg} }

// Capability returns the capability token carried by the message,
// regardless of its variant.
func (m Message) Capability() uint64 {
	if m.Kind == MessageKindLarge {
		return m.Large.Header.Capability
	}
	return m.Small.Capability
}

// Opcode returns the message's operation code.
func (m Message) Opcode() uint32 {
	if m.Kind == MessageKindLarge {
		return m.Large.Header.Opcode
	}
	return m.Small.Opcode
}

// Flags returns the message's flag bits.
func (m Message) Flags() MessageFlag {
	if m.Kind == MessageKindLarge {
		return m.Large.Header.Flags
	}
	return m.Small.Flags
}

// SetFlags overwrites the message's flag bits in place.
func (m *Message) SetFlags(flags MessageFlag) {
	if m.Kind == MessageKindLarge {
		m.Large.Header.Flags = flags
		return
	}
	m.Small.Flags = flags
}
