package statusblock

// Register layout. These offsets are the wire contract with the PLC side and
// are not configurable.
const (
	SlotHealth         = 0
	SlotLastStatus     = 1
	SlotSecondsInError = 2
	SlotAssemblerFlags = 3

	// 32-bit counters occupy two slots each, high word first.
	SlotWordsOK         = 4
	SlotDroppedFull     = 6
	SlotTimeoutsNeutral = 8
	SlotCodecInvalid    = 10
	SlotBursts          = 12
	SlotEvents          = 14
	SlotSentOK          = 16
	SlotSendFailed      = 18

	SlotRingHighWater = 20

	// Slots 21..23 are reserved.

	SlotDeviceNameStart = 24
	SlotDeviceNameSlots = 8
	DeviceNameMaxChars  = SlotDeviceNameSlots * 2

	BlockSize = SlotDeviceNameStart + SlotDeviceNameSlots
)

const (
	HealthUnknown  uint16 = 0
	HealthOK       uint16 = 1
	HealthError    uint16 = 2
	HealthStale    uint16 = 3
	HealthDisabled uint16 = 4
)

// Snapshot is exactly what one block write delivers.
type Snapshot struct {
	Health          uint16
	LastStatus      uint16
	SecondsInError  uint16
	AssemblerFlags  uint16
	WordsOK         uint32
	DroppedFull     uint32
	TimeoutsNeutral uint32
	CodecInvalid    uint32
	Bursts          uint32
	Events          uint32
	SentOK          uint32
	SendFailed      uint32
	RingHighWater   uint16
}

// Encode renders s and the device name into a full block. No IO.
func Encode(s Snapshot, deviceName string) []uint16 {
	regs := make([]uint16, BlockSize)
	regs[SlotHealth] = s.Health
	regs[SlotLastStatus] = s.LastStatus
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotAssemblerFlags] = s.AssemblerFlags
	putU32(regs, SlotWordsOK, s.WordsOK)
	putU32(regs, SlotDroppedFull, s.DroppedFull)
	putU32(regs, SlotTimeoutsNeutral, s.TimeoutsNeutral)
	putU32(regs, SlotCodecInvalid, s.CodecInvalid)
	putU32(regs, SlotBursts, s.Bursts)
	putU32(regs, SlotEvents, s.Events)
	putU32(regs, SlotSentOK, s.SentOK)
	putU32(regs, SlotSendFailed, s.SendFailed)
	regs[SlotRingHighWater] = s.RingHighWater
	copy(regs[SlotDeviceNameStart:], encodeDeviceName(deviceName))
	return regs
}

func putU32(regs []uint16, slot int, v uint32) {
	regs[slot] = uint16(v >> 16)
	regs[slot+1] = uint16(v)
}

// encodeDeviceName packs up to 16 printable ASCII bytes, two per register,
// high byte first.
func encodeDeviceName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)
	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}
	for i := 0; i < len(b); i += 2 {
		hi := uint16(b[i]) << 8
		var lo uint16
		if i+1 < len(b) {
			lo = uint16(b[i+1])
		}
		out[i/2] = hi | lo
	}
	return out
}

func clampU16(v uint64) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
