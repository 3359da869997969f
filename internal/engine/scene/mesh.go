package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/pkg/math"
)

// Vertex is the interleaved vertex format shared by every static mesh.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Tangent  [4]float32
}

// VertexStride is the size of Vertex in bytes.
const VertexStride = 48

// VertexLayout describes Vertex to graphics pipelines.
var VertexLayout = []gpu.VertexAttr{
	{Location: 0, Components: 3, Offset: 0},
	{Location: 1, Components: 3, Offset: 12},
	{Location: 2, Components: 2, Offset: 24},
	{Location: 3, Components: 4, Offset: 32},
}

// Mesh is indexed triangle geometry in local space.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Bounds returns the local-space bounding box of the mesh.
func (m *Mesh) Bounds() math.AABB {
	b := math.EmptyAABB()
	for _, v := range m.Vertices {
		b.Include(math.Vec3(v.Position))
	}
	return b
}

// Cube returns an axis-aligned cube with edge length size centered at the
// origin. Each face has its own vertices so normals are flat.
func Cube(size float32) Mesh {
	h := size / 2
	faces := []struct {
		n, u, v math.Vec3
	}{
		{math.Vec3{1, 0, 0}, math.Vec3{0, 0, -1}, math.Vec3{0, 1, 0}},
		{math.Vec3{-1, 0, 0}, math.Vec3{0, 0, 1}, math.Vec3{0, 1, 0}},
		{math.Vec3{0, 1, 0}, math.Vec3{1, 0, 0}, math.Vec3{0, 0, -1}},
		{math.Vec3{0, -1, 0}, math.Vec3{1, 0, 0}, math.Vec3{0, 0, 1}},
		{math.Vec3{0, 0, 1}, math.Vec3{1, 0, 0}, math.Vec3{0, 1, 0}},
		{math.Vec3{0, 0, -1}, math.Vec3{-1, 0, 0}, math.Vec3{0, 1, 0}},
	}
	m := Mesh{Name: "cube"}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1])).Mul(h)
			m.Vertices = append(m.Vertices, Vertex{
				Position: p,
				Normal:   f.n,
				TexCoord: [2]float32{(c[0] + 1) / 2, (c[1] + 1) / 2},
				Tangent:  [4]float32{f.u[0], f.u[1], f.u[2], 1},
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Plane returns a square in the XZ plane facing +Y.
func Plane(size float32) Mesh {
	h := size / 2
	m := Mesh{Name: "plane"}
	for _, c := range [4][2]float32{{-1, 1}, {1, 1}, {1, -1}, {-1, -1}} {
		m.Vertices = append(m.Vertices, Vertex{
			Position: [3]float32{c[0] * h, 0, c[1] * h},
			Normal:   [3]float32{0, 1, 0},
			TexCoord: [2]float32{(c[0] + 1) / 2, (c[1] + 1) / 2},
			Tangent:  [4]float32{1, 0, 0, 1},
		})
	}
	m.Indices = []uint32{0, 1, 2, 0, 2, 3}
	return m
}

// Sphere returns a UV sphere of the given radius.
func Sphere(radius float32, rings, segments int) Mesh {
	rings, segments = max(rings, 2), max(segments, 3)
	m := Mesh{Name: "sphere"}
	for r := 0; r <= rings; r++ {
		theta := math32.Pi * float32(r) / float32(rings)
		for s := 0; s <= segments; s++ {
			phi := 2 * math32.Pi * float32(s) / float32(segments)
			n := math.Vec3{
				math32.Sin(theta) * math32.Cos(phi),
				math32.Cos(theta),
				math32.Sin(theta) * math32.Sin(phi),
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position: n.Mul(radius),
				Normal:   n,
				TexCoord: [2]float32{float32(s) / float32(segments), float32(r) / float32(rings)},
				Tangent:  [4]float32{-math32.Sin(phi), 0, math32.Cos(phi), 1},
			})
		}
	}
	row := uint32(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r)*row + uint32(s)
			b := a + row
			m.Indices = append(m.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return m
}
