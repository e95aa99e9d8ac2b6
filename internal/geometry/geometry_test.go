package geometry

import (
	"errors"
	"testing"

	"github.com/danmuck/aerctl/internal/testutil/testlog"
)

func TestDefaultDerivedWidths(t *testing.T) {
	testlog.Start(t)
	g := Default()
	if err := g.Validate(); err != nil {
		t.Fatalf("validate default: %v", err)
	}
	if g.PayloadBits() != 6 || g.NumGroups() != 3 || g.DataWidth() != 12 {
		t.Fatalf("unexpected widths: %s", g)
	}
	if g.RawMask() != 0xFFF {
		t.Fatalf("raw mask=0x%X", g.RawMask())
	}
	if g.TailPayload() != 0x3F {
		t.Fatalf("tail=0x%X", g.TailPayload())
	}
	if g.IndexMask() != 0x1F || g.PadMask() != 0x20 {
		t.Fatalf("index mask=0x%X pad mask=0x%X", g.IndexMask(), g.PadMask())
	}
}

func TestDeriveMatchesDefaultFor32x32(t *testing.T) {
	testlog.Start(t)
	g, err := Derive(32, 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if g != Default() {
		t.Fatalf("derive(32,32)=%+v want %+v", g, Default())
	}
}

func TestDeriveAddsPadWhenTailWouldCollide(t *testing.T) {
	testlog.Start(t)
	g, err := Derive(16, 16)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if g.IndexBits != 4 {
		t.Fatalf("index bits=%d", g.IndexBits)
	}
	if g.TailPayload() < 16 {
		t.Fatalf("tail 0x%X collides with index range", g.TailPayload())
	}
	if g.PayloadBits()%g.SymbolBits != 0 {
		t.Fatalf("payload bits=%d not symbol aligned", g.PayloadBits())
	}
}

func TestDeriveNonSquare(t *testing.T) {
	testlog.Start(t)
	g, err := Derive(64, 8)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if g.IndexBits != 6 || g.PayloadBits() != 8 || g.DataWidth() != 16 {
		t.Fatalf("unexpected layout: %s", g)
	}
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)
	cases := map[string]Geometry{
		"zero rows":       {Rows: 0, Cols: 32, IndexBits: 5, PadBits: 1, SymbolBits: 2, GroupWidth: 4},
		"group width":     {Rows: 32, Cols: 32, IndexBits: 5, PadBits: 1, SymbolBits: 2, GroupWidth: 3},
		"unaligned":       {Rows: 32, Cols: 32, IndexBits: 5, PadBits: 0, SymbolBits: 2, GroupWidth: 4},
		"rows too large":  {Rows: 33, Cols: 32, IndexBits: 5, PadBits: 1, SymbolBits: 2, GroupWidth: 4},
		"tail collides":   {Rows: 32, Cols: 32, IndexBits: 5, PadBits: 0, SymbolBits: 1, GroupWidth: 2},
		"too many lines":  {Rows: 32, Cols: 32, IndexBits: 15, PadBits: 0, SymbolBits: 3, GroupWidth: 8},
		"symbol too wide": {Rows: 32, Cols: 32, IndexBits: 5, PadBits: 0, SymbolBits: 5, GroupWidth: 32},
	}
	for name, g := range cases {
		if err := g.Validate(); !errors.Is(err, ErrInvalidGeometry) {
			t.Fatalf("%s: expected ErrInvalidGeometry, got %v", name, err)
		}
	}
}
