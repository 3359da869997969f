package terrain

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/pkg/math"
)

// Landscape is a generated heightmap with its tile bounds and placement.
type Landscape struct {
	Params  Params
	Heights *Heightmap
	// Tiles holds the (min, max) height of every tile, row-major.
	Tiles []math.Vec2
	Model math.Mat4
}

// Generate builds a landscape from fractal noise. The same seed always
// yields the same heights.
func Generate(p Params, seed uint64) (*Landscape, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	noise := newPerlin(seed)
	heights := make([]float32, p.Width*p.Height)
	for i := range p.Height {
		for j := range p.Width {
			var h float32
			for _, o := range p.Octaves {
				h += 0.5 * noise.at(
					10*o+float32(i)/float32(p.Height)*o,
					10*o+float32(j)/float32(p.Width)*o) / o
			}
			heights[i*p.Width+j] = h
		}
	}
	return newLandscape(p, heights), nil
}

// FromHeights builds a landscape from p.Width x p.Height row-major heights,
// for example a decoded heightmap image.
func FromHeights(p Params, heights []float32) (*Landscape, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(heights) != p.Width*p.Height {
		return nil, fmt.Errorf("landscape %dx%d from %d heights", p.Width, p.Height, len(heights))
	}
	return newLandscape(p, heights), nil
}

func (p Params) validate() error {
	if p.TileSize <= 0 || p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("landscape %dx%d with tile size %d", p.Width, p.Height, p.TileSize)
	}
	if p.Width%p.TileSize != 0 || p.Height%p.TileSize != 0 {
		return fmt.Errorf("landscape %dx%d not divisible into %d texel tiles", p.Width, p.Height, p.TileSize)
	}
	return nil
}

func newLandscape(p Params, heights []float32) *Landscape {
	hm := &Heightmap{Width: p.Width, Height: p.Height, Heights: heights}
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return &Landscape{
		Params:  p,
		Heights: hm,
		Tiles:   TileMinMax(hm, p.TileSize),
		Model:   math.Scale(scale, scale, scale).Mul4(math.Translate(-0.5, -0.1, -0.5)),
	}
}

// TileMinMax returns the (min, max) height of each tileSize square of hm,
// row-major.
func TileMinMax(hm *Heightmap, tileSize int) []math.Vec2 {
	tilesX, tilesZ := hm.Width/tileSize, hm.Height/tileSize
	out := make([]math.Vec2, tilesX*tilesZ)
	for t := range out {
		out[t] = math.Vec2{math32.MaxFloat32, -math32.MaxFloat32}
	}
	for i := range tilesZ * tileSize {
		for j := range tilesX * tileSize {
			h := hm.At(i, j)
			t := &out[(i/tileSize)*tilesX+j/tileSize]
			t[0] = math32.Min(t[0], h)
			t[1] = math32.Max(t[1], h)
		}
	}
	return out
}

// TileCount returns the number of tiles.
func (l *Landscape) TileCount() int { return len(l.Tiles) }

// Info returns the GPU metadata of the landscape.
func (l *Landscape) Info() Info {
	return Info{
		Model:        l.Model,
		Width:        uint32(l.Params.Width),
		Height:       uint32(l.Params.Height),
		TileSize:     uint32(l.Params.TileSize),
		GrassDensity: uint32(l.Params.GrassDensity),
	}
}

// HeightAt returns the bilinearly interpolated height at local (u, v), both
// in [0, 1]. u runs along X, v along Z.
func (l *Landscape) HeightAt(u, v float32) float32 {
	hm := l.Heights
	fx := clampf(u, 0, 1) * float32(hm.Width-1)
	fz := clampf(v, 0, 1) * float32(hm.Height-1)

	col, row := int(fx), int(fz)
	if col >= hm.Width-1 {
		col = max(hm.Width-2, 0)
	}
	if row >= hm.Height-1 {
		row = max(hm.Height-2, 0)
	}
	fracX := clampf(fx-float32(col), 0, 1)
	fracZ := clampf(fz-float32(row), 0, 1)

	at := func(r, c int) float32 { return hm.At(min(r, hm.Height-1), min(c, hm.Width-1)) }
	south := at(row, col)*(1-fracX) + at(row, col+1)*fracX
	north := at(row+1, col)*(1-fracX) + at(row+1, col+1)*fracX
	return south*(1-fracZ) + north*fracZ
}

// Bounds returns the world box of the surface, from the lowest to the
// highest tile height.
func (l *Landscape) Bounds() math.AABB {
	local := math.EmptyAABB()
	for _, t := range l.Tiles {
		local.Include(math.Vec3{0, t[0], 0})
		local.Include(math.Vec3{1, t[1], 1})
	}
	if !local.Valid() {
		return local
	}
	return local.Transform(l.Model)
}

// WorldPoint returns the world position of the surface at local (u, v).
func (l *Landscape) WorldPoint(u, v float32) math.Vec3 {
	return math.TransformPoint(l.Model, math.Vec3{u, l.HeightAt(u, v), v})
}

func clampf(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// perlin is classic 2D gradient noise over a seeded permutation table.
type perlin struct {
	perm [512]uint8
}

func newPerlin(seed uint64) *perlin {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var p perlin
	for i := range 256 {
		p.perm[i] = uint8(i)
	}
	r.Shuffle(256, func(i, j int) { p.perm[i], p.perm[j] = p.perm[j], p.perm[i] })
	copy(p.perm[256:], p.perm[:256])
	return &p
}

func fade(t float32) float32 { return t * t * t * (t*(t*6-15) + 10) }

func lerp(a, b, t float32) float32 { return a + t*(b-a) }

func grad(hash uint8, x, y float32) float32 {
	switch hash & 3 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	default:
		return -x - y
	}
}

func (p *perlin) at(x, y float32) float32 {
	fx, fy := math32.Floor(x), math32.Floor(y)
	xi, yi := int(fx)&255, int(fy)&255
	x, y = x-fx, y-fy
	u, v := fade(x), fade(y)

	aa := p.perm[int(p.perm[xi])+yi]
	ab := p.perm[int(p.perm[xi])+yi+1]
	ba := p.perm[int(p.perm[xi+1])+yi]
	bb := p.perm[int(p.perm[xi+1])+yi+1]

	return lerp(
		lerp(grad(aa, x, y), grad(ba, x-1, y), u),
		lerp(grad(ab, x, y-1), grad(bb, x-1, y-1), u),
		v)
}
