package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is id(1) + type(1) + len(2, little-endian).
const HeaderLen = 4

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrFieldTooLarge    = errors.New("tlv: field value too large")
	ErrMissingField     = errors.New("tlv: missing field")
)

// Type IDs from tlv contract.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint8
	Type  uint8
	Value []byte
}

func U8(id, v uint8) Field { return Field{ID: id, Type: TypeU8, Value: []byte{v}} }

func U16(id uint8, v uint16) Field {
	return Field{ID: id, Type: TypeU16, Value: binary.LittleEndian.AppendUint16(nil, v)}
}

func U32(id uint8, v uint32) Field {
	return Field{ID: id, Type: TypeU32, Value: binary.LittleEndian.AppendUint32(nil, v)}
}

func Bool(id uint8, v bool) Field {
	b := uint8(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func String(id uint8, v string) Field { return Field{ID: id, Type: TypeString, Value: []byte(v)} }

func Bytes(id uint8, v []byte) Field {
	return Field{ID: id, Type: TypeBytes, Value: append([]byte(nil), v...)}
}

func AppendField(dst []byte, f Field) ([]byte, error) {
	if len(f.Value) > 0xFFFF {
		return dst, fmt.Errorf("%w: field %d len=%d", ErrFieldTooLarge, f.ID, len(f.Value))
	}
	dst = append(dst, f.ID, f.Type)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(f.Value)))
	return append(dst, f.Value...), nil
}

// EncodeFields skips fields whose value exceeds 64 KiB.
func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out, _ = AppendField(out, f)
	}
	return out
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := payload[i]
		typeID := payload[i+1]
		l := int(binary.LittleEndian.Uint16(payload[i+2 : i+4]))
		i += HeaderLen
		if len(payload)-i < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+l])
		i += l
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func GetField(fields []Field, id uint8) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, expected)
	}
	return nil
}

// Uint reads an unsigned field of any fixed width.
func Uint(fields []Field, id uint8) (uint64, error) {
	f, ok := GetField(fields, id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrMissingField, id)
	}
	switch f.Type {
	case TypeU8, TypeBool:
		if len(f.Value) == 1 {
			return uint64(f.Value[0]), nil
		}
	case TypeU16:
		if len(f.Value) == 2 {
			return uint64(binary.LittleEndian.Uint16(f.Value)), nil
		}
	case TypeU32:
		if len(f.Value) == 4 {
			return uint64(binary.LittleEndian.Uint32(f.Value)), nil
		}
	case TypeU64:
		if len(f.Value) == 8 {
			return binary.LittleEndian.Uint64(f.Value), nil
		}
	default:
		return 0, fmt.Errorf("tlv: field %d type %d is not an integer", id, f.Type)
	}
	return 0, fmt.Errorf("tlv: field %d invalid length %d for type %d", id, len(f.Value), f.Type)
}

func Str(fields []Field, id uint8) (string, error) {
	f, ok := GetField(fields, id)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrMissingField, id)
	}
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}
