package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	HeaderLen     = 8
	MaxPayloadLen = 0xFFFF
)

const Version uint8 = 1

// Magic opens every packet and is the resync point for readers.
var Magic = [4]byte{'A', 'E', 'R', 'S'}

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrBadMagic        = errors.New("frame: bad magic")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Type is the packet payload class.
type Type uint8

const (
	TypeLog    Type = 1
	TypeEvent  Type = 2
	TypeRaw    Type = 3
	TypeMarker Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeLog:
		return "log"
	case TypeEvent:
		return "event"
	case TypeRaw:
		return "raw"
	case TypeMarker:
		return "marker"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Header is the fixed 8-byte packet header. Length is little-endian on the wire.
type Header struct {
	Version uint8
	Type    Type
	Length  uint16
}

// Packet is one complete wire message.
type Packet struct {
	Header  Header
	Payload []byte
}

// Limits constrains packet decode/encode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: MaxPayloadLen}
}

func (l Limits) max() int {
	if l.MaxPayloadBytes <= 0 || l.MaxPayloadBytes > MaxPayloadLen {
		return MaxPayloadLen
	}
	return l.MaxPayloadBytes
}

func EncodeHeader(h Header) [HeaderLen]byte {
	var buf [HeaderLen]byte
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version
	buf[5] = uint8(h.Type)
	binary.LittleEndian.PutUint16(buf[6:8], h.Length)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	if !bytes.Equal(b[0:4], Magic[:]) {
		return Header{}, fmt.Errorf("%w: % x", ErrBadMagic, b[0:4])
	}
	return Header{
		Version: b[4],
		Type:    Type(b[5]),
		Length:  binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// AppendPacket appends the encoded packet to dst.
func AppendPacket(dst []byte, typ Type, payload []byte, limits Limits) ([]byte, error) {
	if len(payload) > limits.max() {
		return dst, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), limits.max())
	}
	hdr := EncodeHeader(Header{Version: Version, Type: typ, Length: uint16(len(payload))})
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}

// WritePacket writes header and payload in a single Write call.
func WritePacket(w io.Writer, typ Type, payload []byte, limits Limits) error {
	buf, err := AppendPacket(make([]byte, 0, HeaderLen+len(payload)), typ, payload, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadPacket reads exactly one packet that must start at the current position.
func ReadPacket(r io.Reader, limits Limits) (Packet, error) {
	var hb [HeaderLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, ErrShortHeader
		}
		return Packet{}, err
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		return Packet{}, err
	}
	if int(h.Length) > limits.max() {
		return Packet{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.Length, limits.max())
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, err
	}
	return Packet{Header: h, Payload: payload}, nil
}

// Writer serializes packets from concurrent producers onto one stream.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	limits Limits
}

func NewWriter(w io.Writer, limits Limits) *Writer {
	return &Writer{w: w, limits: limits}
}

func (w *Writer) WritePacket(typ Type, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WritePacket(w.w, typ, payload, w.limits)
}

// Reader resynchronizes on Magic, discarding any bytes before it.
type Reader struct {
	r       *bufio.Reader
	limits  Limits
	skipped uint64
}

func NewReader(r io.Reader, limits Limits) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, HeaderLen+limits.max()), limits: limits}
}

// Skipped is the number of bytes discarded while hunting for Magic.
func (r *Reader) Skipped() uint64 { return r.skipped }

func (r *Reader) Next() (Packet, error) {
	for {
		if err := r.sync(); err != nil {
			return Packet{}, err
		}
		hb, err := r.r.Peek(HeaderLen)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Packet{}, io.ErrUnexpectedEOF
			}
			return Packet{}, err
		}
		h, err := DecodeHeader(hb)
		if err != nil {
			return Packet{}, err
		}
		if int(h.Length) > r.limits.max() {
			// Oversized length means this magic was payload data; skip past it.
			r.discard(1)
			continue
		}
		if _, err := r.r.Discard(HeaderLen); err != nil {
			return Packet{}, err
		}
		payload := make([]byte, h.Length)
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return Packet{}, err
		}
		return Packet{Header: h, Payload: payload}, nil
	}
}

func (r *Reader) sync() error {
	for {
		b, err := r.r.Peek(len(Magic))
		if err != nil {
			if len(b) > 0 && errors.Is(err, io.EOF) {
				r.skipped += uint64(len(b))
			}
			return err
		}
		if bytes.Equal(b, Magic[:]) {
			return nil
		}
		i := bytes.IndexByte(b[1:], Magic[0])
		if i < 0 {
			r.discard(len(b))
			continue
		}
		r.discard(i + 1)
	}
}

func (r *Reader) discard(n int) {
	d, _ := r.r.Discard(n)
	r.skipped += uint64(d)
}

// LogWriter wraps each Write as one TypeLog packet so text logs can share a
// stream with binary records. Lines longer than the payload limit are truncated.
type LogWriter struct {
	w *Writer
}

func NewLogWriter(w *Writer) *LogWriter { return &LogWriter{w: w} }

func (l *LogWriter) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\r\n")
	if limit := l.w.limits.max(); len(line) > limit {
		line = line[:limit]
	}
	if err := l.w.WritePacket(TypeLog, line); err != nil {
		return 0, err
	}
	return len(p), nil
}
