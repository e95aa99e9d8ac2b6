package codec

import (
	"errors"
	"testing"

	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/testutil/testlog"
)

func TestEncodeDecodeAllPayloads(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	for p := 0; p <= int(c.Geometry().MaxPayload()); p++ {
		raw, err := c.Encode(Payload(p))
		if err != nil {
			t.Fatalf("encode %d: %v", p, err)
		}
		d := c.Decode(raw)
		if !d.OK {
			t.Fatalf("payload %d raw=0x%03X not ok: %s", p, raw, d.Flags)
		}
		if d.Payload != Payload(p) {
			t.Fatalf("payload %d decoded as %d", p, d.Payload)
		}
		wantTail := Payload(p) == c.Geometry().TailPayload()
		if d.IsTail != wantTail {
			t.Fatalf("payload %d is_tail=%v want %v", p, d.IsTail, wantTail)
		}
		if d.Flags.Has(FlagNeutral | FlagOutOfRange | FlagMultiHot | FlagZeroHot) {
			t.Fatalf("payload %d unexpected hard flags: %s", p, d.Flags)
		}
	}
}

func TestEncodeDecodeDerivedGeometry(t *testing.T) {
	testlog.Start(t)
	geo, err := geometry.Derive(64, 48)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	c := MustNew(geo)
	for p := 0; p <= int(geo.MaxPayload()); p++ {
		raw, err := c.Encode(Payload(p))
		if err != nil {
			t.Fatalf("encode %d: %v", p, err)
		}
		if d := c.Decode(raw); !d.OK || d.Payload != Payload(p) {
			t.Fatalf("payload %d round trip: %+v", p, d)
		}
	}
}

func TestDecodeNeutral(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	d := c.Decode(0)
	if d.OK || d.IsTail {
		t.Fatalf("neutral decoded as %+v", d)
	}
	if d.Flags != FlagNeutral {
		t.Fatalf("flags=%s want neutral", d.Flags)
	}
}

func TestDecodeOutOfRangeOnlyHighBitsIsNeutral(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	d := c.Decode(0x1000)
	if d.OK {
		t.Fatalf("expected not ok")
	}
	if !d.Flags.Has(FlagOutOfRange) || !d.Flags.Has(FlagNeutral) {
		t.Fatalf("flags=%s want out_of_range|neutral", d.Flags)
	}
}

func TestDecodeOutOfRangeKeepsValidPayload(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	raw, _ := c.Encode(7)
	d := c.Decode(raw | 0x8000_0000)
	if !d.OK || d.Payload != 7 {
		t.Fatalf("decoded %+v", d)
	}
	if !d.Flags.Has(FlagOutOfRange) {
		t.Fatalf("flags=%s want out_of_range", d.Flags)
	}
}

func TestDecodeMultiHot(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	// group0 = 0b0011, groups 1 and 2 one-hot.
	raw := RawWord(0b0001_0001_0011)
	d := c.Decode(raw)
	if d.OK {
		t.Fatalf("expected not ok: %+v", d)
	}
	if !d.Flags.Has(FlagMultiHot) {
		t.Fatalf("flags=%s want multi_hot", d.Flags)
	}
	if d.Flags.Has(FlagZeroHot) {
		t.Fatalf("flags=%s unexpected zero_hot", d.Flags)
	}
}

func TestDecodeZeroHot(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	raw := RawWord(0b0001_0000_0010)
	d := c.Decode(raw)
	if d.OK {
		t.Fatalf("expected not ok: %+v", d)
	}
	if d.Flags != FlagZeroHot {
		t.Fatalf("flags=%s want zero_hot", d.Flags)
	}
}

func TestDecodeAccumulatesFlagsAcrossGroups(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	// group0 multi-hot, group1 zero, group2 one-hot.
	d := c.Decode(0b0100_0000_1100)
	if d.OK {
		t.Fatalf("expected not ok")
	}
	if !d.Flags.Has(FlagMultiHot) || !d.Flags.Has(FlagZeroHot) {
		t.Fatalf("flags=%s want multi_hot|zero_hot", d.Flags)
	}
}

func TestDecodePadBitWarning(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	raw, _ := c.Encode(0x21) // pad bit set, not the tail
	d := c.Decode(raw)
	if !d.OK {
		t.Fatalf("pad warning must not clear ok: %+v", d)
	}
	if !d.Flags.Has(FlagPadBitSet) || d.IsTail {
		t.Fatalf("decoded %+v", d)
	}

	tail := c.Decode(c.EncodeTail())
	if !tail.OK || !tail.IsTail || tail.Flags.Has(FlagPadBitSet) {
		t.Fatalf("tail decoded %+v", tail)
	}
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	raw, err := c.Encode(64)
	if !errors.Is(err, ErrPayloadRange) {
		t.Fatalf("expected ErrPayloadRange, got %v", err)
	}
	if raw != 0 {
		t.Fatalf("raw=0x%X want 0", raw)
	}
}

func TestEncodeKnownWords(t *testing.T) {
	testlog.Start(t)
	c := MustNew(geometry.Default())
	cases := []struct {
		payload Payload
		raw     RawWord
	}{
		{0, 0b0001_0001_0001},
		{5, 0b0001_0010_0010},
		{0x3F, 0b1000_1000_1000},
	}
	for _, tc := range cases {
		raw, err := c.Encode(tc.payload)
		if err != nil {
			t.Fatalf("encode %d: %v", tc.payload, err)
		}
		if raw != tc.raw {
			t.Fatalf("encode %d = 0b%012b want 0b%012b", tc.payload, raw, tc.raw)
		}
	}
}

func TestFlagsString(t *testing.T) {
	testlog.Start(t)
	if got := (FlagMultiHot | FlagZeroHot).String(); got != "multi_hot|zero_hot" {
		t.Fatalf("string=%q", got)
	}
	if got := Flags(0).String(); got != "none" {
		t.Fatalf("string=%q", got)
	}
}
