package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/aerctl/internal/protocol/tlv"
)

// Type is the record layout tag carried as the first byte of every record, so a
// reader that missed HELLO can still parse the stream.
type Type uint8

const (
	TypeV1NoTS  Type = 1 // rec_type, flags, row u8, col u8
	TypeV1Ticks Type = 2 // as V1NoTS + ticks u32
	TypeV2Ticks Type = 3 // rec_type, flags, row u16, col u16, ticks u32
)

const FlagOn uint8 = 0x01

var (
	ErrUnknownRecord = errors.New("record: unknown record type")
	ErrShortRecord   = errors.New("record: short record")
	ErrIndexTooWide  = errors.New("record: index does not fit record type")
	ErrNotHello      = errors.New("record: marker is not a HELLO")
)

func (t Type) Size() int {
	switch t {
	case TypeV1NoTS:
		return 4
	case TypeV1Ticks:
		return 8
	case TypeV2Ticks:
		return 10
	default:
		return 0
	}
}

func (t Type) HasTicks() bool { return t == TypeV1Ticks || t == TypeV2Ticks }

func (t Type) String() string {
	switch t {
	case TypeV1NoTS:
		return "v1_nots"
	case TypeV1Ticks:
		return "v1_ticks"
	case TypeV2Ticks:
		return "v2_ticks"
	default:
		return fmt.Sprintf("record(%d)", uint8(t))
	}
}

// Select picks the smallest record layout able to carry rows x cols.
func Select(rows, cols uint16, ticks bool) Type {
	if rows > 256 || cols > 256 {
		return TypeV2Ticks
	}
	if ticks {
		return TypeV1Ticks
	}
	return TypeV1NoTS
}

// Event is one decoded stream record.
type Event struct {
	Type  Type   `json:"-"`
	Flags uint8  `json:"flags"`
	Row   uint16 `json:"row"`
	Col   uint16 `json:"col"`
	Ticks uint32 `json:"ticks,omitempty"`
}

func (e Event) On() bool { return e.Flags&FlagOn != 0 }

func AppendEvent(dst []byte, e Event) ([]byte, error) {
	switch e.Type {
	case TypeV1NoTS, TypeV1Ticks:
		if e.Row > 0xFF || e.Col > 0xFF {
			return dst, fmt.Errorf("%w: %s row=%d col=%d", ErrIndexTooWide, e.Type, e.Row, e.Col)
		}
		dst = append(dst, uint8(e.Type), e.Flags, uint8(e.Row), uint8(e.Col))
		if e.Type == TypeV1Ticks {
			dst = binary.LittleEndian.AppendUint32(dst, e.Ticks)
		}
		return dst, nil
	case TypeV2Ticks:
		dst = append(dst, uint8(e.Type), e.Flags)
		dst = binary.LittleEndian.AppendUint16(dst, e.Row)
		dst = binary.LittleEndian.AppendUint16(dst, e.Col)
		return binary.LittleEndian.AppendUint32(dst, e.Ticks), nil
	default:
		return dst, fmt.Errorf("%w: %d", ErrUnknownRecord, uint8(e.Type))
	}
}

// DecodeEvents parses every record in an event packet payload. It stops at the
// first unknown or truncated record and returns what was decoded so far.
func DecodeEvents(payload []byte) ([]Event, error) {
	out := make([]Event, 0, len(payload)/4)
	for i := 0; i < len(payload); {
		t := Type(payload[i])
		size := t.Size()
		if size == 0 {
			return out, fmt.Errorf("%w: %d at offset %d", ErrUnknownRecord, uint8(t), i)
		}
		if len(payload)-i < size {
			return out, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortRecord, t, size, len(payload)-i)
		}
		rec := payload[i : i+size]
		e := Event{Type: t, Flags: rec[1]}
		switch t {
		case TypeV1NoTS:
			e.Row, e.Col = uint16(rec[2]), uint16(rec[3])
		case TypeV1Ticks:
			e.Row, e.Col = uint16(rec[2]), uint16(rec[3])
			e.Ticks = binary.LittleEndian.Uint32(rec[4:8])
		case TypeV2Ticks:
			e.Row = binary.LittleEndian.Uint16(rec[2:4])
			e.Col = binary.LittleEndian.Uint16(rec[4:6])
			e.Ticks = binary.LittleEndian.Uint32(rec[6:10])
		}
		out = append(out, e)
		i += size
	}
	return out, nil
}

// HELLO field ids.
const (
	HelloDataWidth uint8 = 1
	HelloRows      uint8 = 2
	HelloCols      uint8 = 3
	HelloRecord    uint8 = 4
	HelloSession   uint8 = 5
	HelloTickHz    uint8 = 6
)

// HelloPrefix distinguishes a HELLO marker from free-text markers.
var HelloPrefix = []byte("HELLO\x00")

// Hello describes the active stream layout. It is sent as a marker packet.
type Hello struct {
	DataWidth uint8  `json:"data_width"`
	Rows      uint16 `json:"rows"`
	Cols      uint16 `json:"cols"`
	Record    Type   `json:"record"`
	SessionID string `json:"session_id"`
	TickHz    uint32 `json:"tick_hz"`
}

func (h Hello) Encode() []byte {
	fields := tlv.EncodeFields([]tlv.Field{
		tlv.U8(HelloDataWidth, h.DataWidth),
		tlv.U16(HelloRows, h.Rows),
		tlv.U16(HelloCols, h.Cols),
		tlv.U8(HelloRecord, uint8(h.Record)),
		tlv.String(HelloSession, h.SessionID),
		tlv.U32(HelloTickHz, h.TickHz),
	})
	return append(append([]byte(nil), HelloPrefix...), fields...)
}

// IsHello reports whether a marker payload carries a HELLO descriptor.
func IsHello(payload []byte) bool {
	return len(payload) >= len(HelloPrefix) && string(payload[:len(HelloPrefix)]) == string(HelloPrefix)
}

func DecodeHello(payload []byte) (Hello, error) {
	if !IsHello(payload) {
		return Hello{}, ErrNotHello
	}
	fields, err := tlv.DecodeFields(payload[len(HelloPrefix):])
	if err != nil {
		return Hello{}, err
	}
	var h Hello
	var v uint64
	if v, err = tlv.Uint(fields, HelloDataWidth); err != nil {
		return Hello{}, err
	}
	h.DataWidth = uint8(v)
	if v, err = tlv.Uint(fields, HelloRows); err != nil {
		return Hello{}, err
	}
	h.Rows = uint16(v)
	if v, err = tlv.Uint(fields, HelloCols); err != nil {
		return Hello{}, err
	}
	h.Cols = uint16(v)
	if v, err = tlv.Uint(fields, HelloRecord); err != nil {
		return Hello{}, err
	}
	h.Record = Type(v)
	if h.SessionID, err = tlv.Str(fields, HelloSession); err != nil {
		return Hello{}, err
	}
	// Tick rate is optional; zero means ticks are not wall-clock calibrated.
	if v, err = tlv.Uint(fields, HelloTickHz); err == nil {
		h.TickHz = uint32(v)
	}
	return h, nil
}
