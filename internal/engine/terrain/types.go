// Package terrain generates procedural landscapes and the per-tile data GPU
// culling and tessellation consume.
package terrain

import (
	"github.com/Faultbox/vigil/pkg/math"
)

// Params controls landscape generation.
type Params struct {
	Width        int       // Heightmap width in texels
	Height       int       // Heightmap height in texels
	TileSize     int       // Texels per tile edge; must divide Width and Height
	GrassDensity int       // Grass blades per visible tile
	Octaves      []float32 // Noise frequencies summed into the heightmap
	Scale        float32   // World size of the landscape edge
}

// DefaultParams returns the parameters of the demo landscape.
func DefaultParams() Params {
	return Params{
		Width:        1024,
		Height:       1024,
		TileSize:     32,
		GrassDensity: 2048,
		Octaves:      []float32{2, 10},
		Scale:        400,
	}
}

// Heightmap is a row-major grid of heights. Row i runs along +Z, column j
// along +X.
type Heightmap struct {
	Width   int
	Height  int
	Heights []float32
}

// At returns the height of texel (row, col).
func (h *Heightmap) At(row, col int) float32 {
	return h.Heights[row*h.Width+col]
}

// Info is the std140 layout of one landscape in the landscape info uniform
// buffer. Entries are InfoStride apart so they can be selected with a
// dynamic offset.
type Info struct {
	Model        math.Mat4
	Width        uint32
	Height       uint32
	TileSize     uint32
	GrassDensity uint32
	_            [InfoStride - 80]byte
}

// InfoStride is the distance between Info entries in bytes.
const InfoStride = 256

// TilesX returns the number of tiles along X.
func (i *Info) TilesX() int { return int(i.Width / i.TileSize) }

// TilesZ returns the number of tiles along Z.
func (i *Info) TilesZ() int { return int(i.Height / i.TileSize) }

// TileBox returns the local-space bounds of tile t given its min/max height.
// Local X and Z run over [0, 1]; Y is the raw height.
func (i *Info) TileBox(t int, minMax math.Vec2) math.AABB {
	tx, tz := t%i.TilesX(), t/i.TilesX()
	fx := float32(i.TileSize) / float32(i.Width)
	fz := float32(i.TileSize) / float32(i.Height)
	return math.AABB{
		Min: math.Vec3{float32(tx) * fx, minMax[0], float32(tz) * fz},
		Max: math.Vec3{float32(tx+1) * fx, minMax[1], float32(tz+1) * fz},
	}
}
