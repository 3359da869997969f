// Package scene is the scene data provider of the renderer. It owns meshes,
// their instances, landscapes, lights and cameras, and uploads them as the
// read-only GPU buffers culling and drawing consume.
package scene

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/engine/camera"
	"github.com/Faultbox/vigil/internal/engine/lighting"
	"github.com/Faultbox/vigil/internal/engine/terrain"
	"github.com/Faultbox/vigil/internal/logger"
	"github.com/Faultbox/vigil/pkg/math"
)

// Instance is one placement of a mesh.
type Instance struct {
	Mesh  int
	Model math.Mat4
	// Marked instances take part in culling; unmarked ones are never drawn.
	Marked bool
}

// MeshRange locates a mesh inside the shared vertex and index arrays.
type MeshRange struct {
	IndexCount   int
	IndexOffset  int
	VertexOffset int
	Bounds       math.AABB
}

// Manager collects scene content before upload.
type Manager struct {
	log *zap.Logger

	meshes    []MeshRange
	names     map[string]int
	vertices  []Vertex
	indices   []uint32
	instances []Instance

	landscapes []*terrain.Landscape
	lights     *lighting.PointLightBuffer
	cameras    []camera.Camera

	uploaded *GPU
}

// NewManager returns an empty scene.
func NewManager() *Manager {
	return &Manager{
		log:    logger.Named("scene"),
		names:  make(map[string]int),
		lights: lighting.NewPointLightBuffer(),
	}
}

// AddMesh appends mesh geometry and returns its mesh id.
func (m *Manager) AddMesh(mesh Mesh) int {
	r := MeshRange{
		IndexCount:   len(mesh.Indices),
		IndexOffset:  len(m.indices),
		VertexOffset: len(m.vertices),
		Bounds:       mesh.Bounds(),
	}
	m.vertices = append(m.vertices, mesh.Vertices...)
	m.indices = append(m.indices, mesh.Indices...)
	m.meshes = append(m.meshes, r)

	id := len(m.meshes) - 1
	if mesh.Name != "" {
		m.names[mesh.Name] = id
	}
	return id
}

// MeshID looks up a mesh by name.
func (m *Manager) MeshID(name string) (int, bool) {
	id, ok := m.names[name]
	return id, ok
}

// Mesh returns the location and bounds of mesh id.
func (m *Manager) Mesh(id int) MeshRange { return m.meshes[id] }

// InstanceMesh places mesh meshID with the given model matrix and returns the
// instance id.
func (m *Manager) InstanceMesh(meshID int, model math.Mat4, marked bool) (int, error) {
	if meshID < 0 || meshID >= len(m.meshes) {
		return 0, fmt.Errorf("instance of unknown mesh %d", meshID)
	}
	if m.uploaded != nil {
		return 0, fmt.Errorf("instance of mesh %d after upload", meshID)
	}
	m.instances = append(m.instances, Instance{Mesh: meshID, Model: model, Marked: marked})
	return len(m.instances) - 1, nil
}

// Instance returns instance id.
func (m *Manager) Instance(id int) Instance { return m.instances[id] }

// MarkInstance includes instance id in culling.
func (m *Manager) MarkInstance(id int) error { return m.setMark(id, true) }

// UnmarkInstance excludes instance id from culling.
func (m *Manager) UnmarkInstance(id int) error { return m.setMark(id, false) }

func (m *Manager) setMark(id int, marked bool) error {
	if id < 0 || id >= len(m.instances) {
		return fmt.Errorf("mark of unknown instance %d", id)
	}
	m.instances[id].Marked = marked
	if m.uploaded != nil {
		return m.uploaded.writeInstanceInfo(id, m.instances[id])
	}
	return nil
}

// AddLandscape adds a generated landscape and returns its index.
func (m *Manager) AddLandscape(l *terrain.Landscape) int {
	m.landscapes = append(m.landscapes, l)
	return len(m.landscapes) - 1
}

// Landscape returns landscape i.
func (m *Manager) Landscape(i int) *terrain.Landscape { return m.landscapes[i] }

// AddLight adds a point light. Lights beyond lighting.MaxPointLights are
// dropped with a warning.
func (m *Manager) AddLight(l lighting.PointLight) {
	if !m.lights.AddLight(l) {
		m.log.Warn("light dropped", zap.Int("max", lighting.MaxPointLights))
	}
}

// AddCamera adds a camera to the scene camera list.
func (m *Manager) AddCamera(c camera.Camera) {
	m.cameras = append(m.cameras, c)
}

// GetCamera returns camera i. A missing camera is not an error: a warning is
// logged and camera.Default is returned.
func (m *Manager) GetCamera(i int) camera.Camera {
	if i < 0 || i >= len(m.cameras) {
		m.log.Warn("camera not found, using default",
			zap.Int("index", i), zap.Int("cameras", len(m.cameras)))
		return camera.Default()
	}
	return m.cameras[i]
}

// CamerasNum returns the number of declared cameras.
func (m *Manager) CamerasNum() int { return len(m.cameras) }

// MeshesNum returns the number of meshes.
func (m *Manager) MeshesNum() int { return len(m.meshes) }

// InstancesNum returns the number of instances.
func (m *Manager) InstancesNum() int { return len(m.instances) }

// LandscapeNum returns the number of landscapes.
func (m *Manager) LandscapeNum() int { return len(m.landscapes) }

// LandscapeTileCounts returns the tile count of each landscape.
func (m *Manager) LandscapeTileCounts() []int {
	out := make([]int, len(m.landscapes))
	for i, l := range m.landscapes {
		out[i] = l.TileCount()
	}
	return out
}

// LightsNum returns the number of point lights.
func (m *Manager) LightsNum() int { return m.lights.Len() }

// Bounds returns the world bounds of every instance and landscape, the
// shadow casters of the scene.
func (m *Manager) Bounds() math.AABB {
	b := math.EmptyAABB()
	for _, inst := range m.instances {
		wb := m.meshes[inst.Mesh].Bounds.Transform(inst.Model)
		b.Include(wb.Min)
		b.Include(wb.Max)
	}
	for _, l := range m.landscapes {
		if lb := l.Bounds(); lb.Valid() {
			b.Include(lb.Min)
			b.Include(lb.Max)
		}
	}
	return b
}

// InstanceBases returns, per mesh, the number of instances of all meshes
// with a lower id. Culling output for mesh i starts at slot InstanceBases[i]
// of the instance mapping.
func (m *Manager) InstanceBases() []int {
	counts := make([]int, len(m.meshes))
	for _, inst := range m.instances {
		counts[inst.Mesh]++
	}
	bases := make([]int, len(m.meshes))
	sum := 0
	for i, c := range counts {
		bases[i] = sum
		sum += c
	}
	return bases
}
