package terrain

import (
	"testing"
	"unsafe"

	"github.com/Faultbox/vigil/pkg/math"
)

func smallParams() Params {
	p := DefaultParams()
	p.Width, p.Height, p.TileSize = 64, 32, 16
	return p
}

func TestInfoSize(t *testing.T) {
	if s := unsafe.Sizeof(Info{}); s != InfoStride {
		t.Fatalf("sizeof(Info) = %d, want %d", s, InfoStride)
	}
}

func TestGenerateRejectsBadTiling(t *testing.T) {
	p := smallParams()
	p.TileSize = 24
	if _, err := Generate(p, 1); err == nil {
		t.Fatal("expected error for tile size not dividing the heightmap")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(smallParams(), 7)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(smallParams(), 7)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Heights.Heights {
		if a.Heights.Heights[i] != b.Heights.Heights[i] {
			t.Fatalf("height %d differs: %v vs %v", i, a.Heights.Heights[i], b.Heights.Heights[i])
		}
	}
}

func TestTileMinMax(t *testing.T) {
	hm := &Heightmap{Width: 4, Height: 2, Heights: []float32{
		1, 2, -3, 4,
		5, 0, 6, 6,
	}}
	got := TileMinMax(hm, 2)
	want := []math.Vec2{{0, 5}, {-3, 6}}
	if len(got) != len(want) {
		t.Fatalf("got %d tiles, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tile %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTilesBoundEveryHeight(t *testing.T) {
	l, err := Generate(smallParams(), 3)
	if err != nil {
		t.Fatal(err)
	}
	info := l.Info()
	if got, want := l.TileCount(), info.TilesX()*info.TilesZ(); got != want {
		t.Fatalf("TileCount = %d, want %d", got, want)
	}
	ts := l.Params.TileSize
	for i := range l.Params.Height {
		for j := range l.Params.Width {
			tile := (i/ts)*info.TilesX() + j/ts
			box := info.TileBox(tile, l.Tiles[tile])
			h := l.Heights.At(i, j)
			u := float32(j) / float32(l.Params.Width)
			v := float32(i) / float32(l.Params.Height)
			if h < box.Min[1] || h > box.Max[1] || u < box.Min[0] || u > box.Max[0] || v < box.Min[2] || v > box.Max[2] {
				t.Fatalf("texel (%d, %d) height %v outside tile %d box %+v", i, j, h, tile, box)
			}
		}
	}
}

func TestHeightAtMatchesTexels(t *testing.T) {
	l, err := Generate(smallParams(), 5)
	if err != nil {
		t.Fatal(err)
	}
	hm := l.Heights
	tests := []struct {
		row, col int
	}{
		{0, 0},
		{hm.Height - 1, hm.Width - 1},
		{10, 20},
	}
	for _, tt := range tests {
		u := float32(tt.col) / float32(hm.Width-1)
		v := float32(tt.row) / float32(hm.Height-1)
		got := l.HeightAt(u, v)
		if d := got - hm.At(tt.row, tt.col); d > 1e-4 || d < -1e-4 {
			t.Errorf("HeightAt(%v, %v) = %v, want %v", u, v, got, hm.At(tt.row, tt.col))
		}
	}
}

func TestFromHeights(t *testing.T) {
	p := smallParams()
	heights := make([]float32, p.Width*p.Height)
	heights[5] = 2
	l, err := FromHeights(p, heights)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.Tiles[0]; got[0] != 0 || got[1] != 2 {
		t.Errorf("first tile min/max = %v, want [0 2]", got)
	}
	if _, err := FromHeights(p, heights[1:]); err == nil {
		t.Error("expected an error for a short height slice")
	}
}

func TestLandscapeBounds(t *testing.T) {
	p := smallParams()
	p.Scale = 10
	heights := make([]float32, p.Width*p.Height)
	heights[5] = 2
	l, err := FromHeights(p, heights)
	if err != nil {
		t.Fatal(err)
	}
	b := l.Bounds()
	// Model maps local (u, h, v) to 10*(u-0.5, h-0.1, v-0.5).
	wantMin, wantMax := math.Vec3{-5, -1, -5}, math.Vec3{5, 19, 5}
	if !b.Min.ApproxEqualThreshold(wantMin, 1e-4) || !b.Max.ApproxEqualThreshold(wantMax, 1e-4) {
		t.Errorf("bounds = %v..%v, want %v..%v", b.Min, b.Max, wantMin, wantMax)
	}
}
