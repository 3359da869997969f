package scene

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/lighting"
	"github.com/Faultbox/vigil/internal/engine/terrain"
	"github.com/Faultbox/vigil/pkg/math"
)

// InstanceInfo is the std430 layout of an instance in the instance info
// buffer.
type InstanceInfo struct {
	MeshID     uint32
	RenderMark uint32
}

// MeshInfo is the std430 layout of a mesh in the mesh info buffer.
type MeshInfo struct {
	IndexCount   uint32
	IndexOffset  uint32
	VertexOffset int32
	// InstanceBase is the first instance mapping slot of this mesh.
	InstanceBase uint32
	AABBMin      [3]float32
	_            float32
	AABBMax      [3]float32
	_            float32
}

// GPU structure sizes in bytes.
const (
	InstanceInfoSize = 8
	MeshInfoSize     = 48
	MatrixSize       = 64
)

// GPU is the scene uploaded to a device. Every buffer is read-only during
// rendering.
type GPU struct {
	dev gpu.Device

	Vertices         gpu.Buffer
	Indices          gpu.Buffer
	InstanceInfos    gpu.Buffer
	InstanceMatrices gpu.Buffer
	MeshInfoBuf      gpu.Buffer
	Lights           gpu.Buffer
	LandscapeInfos   gpu.Buffer

	MinMax         []gpu.Buffer
	Heightmaps     []gpu.Image
	HeightmapViews []gpu.ImageView

	meshes     int
	instances  int
	lights     int
	tileCounts []int
}

func newBuffer(a *gpu.Arena, name string, data []byte, minSize int64, usage gpu.Usage) (gpu.Buffer, error) {
	size := max(int64(len(data)), minSize)
	b, err := a.NewBuffer(gpu.BufferDesc{Name: name, Size: size, Usage: usage | gpu.UTransferDst})
	if err != nil {
		return nil, fmt.Errorf("creating %s buffer: %w", name, err)
	}
	if len(data) > 0 {
		if err := a.Device().WriteBuffer(b, 0, data); err != nil {
			return nil, fmt.Errorf("uploading %s: %w", name, err)
		}
	}
	return b, nil
}

// Upload creates the scene buffers in arena a. Instances are frozen
// afterwards; marks may still change and are written through.
func (m *Manager) Upload(a *gpu.Arena) (*GPU, error) {
	g := &GPU{
		dev:        a.Device(),
		meshes:     len(m.meshes),
		instances:  len(m.instances),
		lights:     m.lights.Len(),
		tileCounts: m.LandscapeTileCounts(),
	}

	bases := m.InstanceBases()
	meshInfos := make([]MeshInfo, len(m.meshes))
	for i, r := range m.meshes {
		meshInfos[i] = MeshInfo{
			IndexCount:   uint32(r.IndexCount),
			IndexOffset:  uint32(r.IndexOffset),
			VertexOffset: int32(r.VertexOffset),
			InstanceBase: uint32(bases[i]),
			AABBMin:      r.Bounds.Min,
			AABBMax:      r.Bounds.Max,
		}
	}
	infos := make([]InstanceInfo, len(m.instances))
	matrices := make([]math.Mat4, len(m.instances))
	for i, inst := range m.instances {
		infos[i] = packInstance(inst)
		matrices[i] = inst.Model
	}
	landscapeInfos := make([]terrain.Info, len(m.landscapes))
	for i, l := range m.landscapes {
		landscapeInfos[i] = l.Info()
	}

	var err error
	steps := []struct {
		dst     *gpu.Buffer
		name    string
		data    []byte
		minSize int64
		usage   gpu.Usage
	}{
		{&g.Vertices, "vertices", gpu.SliceBytes(m.vertices), VertexStride, gpu.UVertex},
		{&g.Indices, "indices", gpu.SliceBytes(m.indices), 4, gpu.UIndex},
		{&g.InstanceInfos, "instance infos", gpu.SliceBytes(infos), InstanceInfoSize, gpu.UStorage},
		{&g.InstanceMatrices, "instance matrices", gpu.SliceBytes(matrices), MatrixSize, gpu.UStorage},
		{&g.MeshInfoBuf, "mesh infos", gpu.SliceBytes(meshInfos), MeshInfoSize, gpu.UStorage},
		{&g.Lights, "lights", m.lights.Bytes(), lighting.GPULightSize, gpu.UStorage},
		{&g.LandscapeInfos, "landscape infos", gpu.SliceBytes(landscapeInfos), terrain.InfoStride, gpu.UUniform},
	}
	for _, s := range steps {
		if *s.dst, err = newBuffer(a, s.name, s.data, s.minSize, s.usage); err != nil {
			return nil, err
		}
	}

	for i, l := range m.landscapes {
		name := fmt.Sprintf("landscape %d", i)
		mm, err := newBuffer(a, name+" tile heights", gpu.SliceBytes(l.Tiles), 8, gpu.UStorage)
		if err != nil {
			return nil, err
		}
		img, err := a.NewImage(gpu.ImageDesc{
			Name:   name + " heightmap",
			Format: gpu.R32f,
			Extent: gpu.Extent2D{Width: l.Heights.Width, Height: l.Heights.Height},
			Usage:  gpu.USampled | gpu.UTransferDst,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s heightmap: %w", name, err)
		}
		if err := a.Device().WriteImage(img, gpu.SliceBytes(l.Heights.Heights)); err != nil {
			return nil, fmt.Errorf("uploading %s heightmap: %w", name, err)
		}
		view, err := a.NewView(img, 0, 1)
		if err != nil {
			return nil, err
		}
		g.MinMax = append(g.MinMax, mm)
		g.Heightmaps = append(g.Heightmaps, img)
		g.HeightmapViews = append(g.HeightmapViews, view)
	}

	m.uploaded = g
	m.log.Info("scene uploaded",
		zap.Int("meshes", g.meshes),
		zap.Int("instances", g.instances),
		zap.Int("landscapes", len(m.landscapes)),
		zap.Int("lights", g.lights))
	return g, nil
}

// Release forgets the uploaded buffers, for use after the arena holding
// them is destroyed.
func (m *Manager) Release() { m.uploaded = nil }

func packInstance(inst Instance) InstanceInfo {
	info := InstanceInfo{MeshID: uint32(inst.Mesh)}
	if inst.Marked {
		info.RenderMark = 1
	}
	return info
}

func (g *GPU) writeInstanceInfo(id int, inst Instance) error {
	info := packInstance(inst)
	return g.dev.WriteBuffer(g.InstanceInfos, int64(id*InstanceInfoSize), gpu.Bytes(&info))
}

// MeshesNum returns the number of uploaded meshes.
func (g *GPU) MeshesNum() int { return g.meshes }

// InstancesNum returns the number of uploaded instances.
func (g *GPU) InstancesNum() int { return g.instances }

// LightsNum returns the number of uploaded point lights.
func (g *GPU) LightsNum() int { return g.lights }

// LandscapeNum returns the number of uploaded landscapes.
func (g *GPU) LandscapeNum() int { return len(g.tileCounts) }

// LandscapeTileCounts returns the tile count of each landscape.
func (g *GPU) LandscapeTileCounts() []int { return g.tileCounts }

// InstanceInfoBuffer returns the instance info buffer.
func (g *GPU) InstanceInfoBuffer() gpu.Buffer { return g.InstanceInfos }

// InstanceMatrixBuffer returns the instance matrix buffer.
func (g *GPU) InstanceMatrixBuffer() gpu.Buffer { return g.InstanceMatrices }

// MeshInfoBuffer returns the mesh info buffer.
func (g *GPU) MeshInfoBuffer() gpu.Buffer { return g.MeshInfoBuf }

// LandscapeInfoBuffer returns the landscape info uniform buffer, one entry
// every terrain.InfoStride bytes.
func (g *GPU) LandscapeInfoBuffer() gpu.Buffer { return g.LandscapeInfos }

// LandscapeMinMax returns the tile height buffer of landscape i.
func (g *GPU) LandscapeMinMax(i int) gpu.Buffer { return g.MinMax[i] }

// LandscapeHeightmap returns the heightmap view of landscape i.
func (g *GPU) LandscapeHeightmap(i int) gpu.ImageView { return g.HeightmapViews[i] }
