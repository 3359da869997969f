// Package visibility implements GPU-driven culling. A Context holds the
// culling output of one observer: the main camera or one shadow cascade. Each
// frame a context is cleared and refilled by a compute dispatch, and the
// draws that follow read it through indirect commands.
package visibility

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/terrain"
)

// Scene is the read-only scene data culling consumes.
type Scene interface {
	MeshesNum() int
	InstancesNum() int
	LandscapeNum() int
	LandscapeTileCounts() []int

	InstanceInfoBuffer() gpu.Buffer
	InstanceMatrixBuffer() gpu.Buffer
	MeshInfoBuffer() gpu.Buffer

	LandscapeInfoBuffer() gpu.Buffer
	LandscapeMinMax(i int) gpu.Buffer
	LandscapeHeightmap(i int) gpu.ImageView
}

// LandscapeIndirectStride is the distance between the indirect commands of
// two landscapes. Each landscape has a body command followed by a grass
// command, GrassIndirectOffset bytes later.
const (
	LandscapeIndirectStride = 256
	GrassIndirectOffset     = gpu.DrawIndirectSize
)

// Context is the culling output of one observer.
type Context struct {
	Index int
	Name  string

	// Mapping holds a visible instance counter in word 0 followed by the
	// visible instance ids, grouped by mesh.
	Mapping gpu.Buffer
	// Indirect holds one indexed indirect command per mesh.
	Indirect gpu.Buffer

	LandscapeIndirect gpu.Buffer
	// Tiles holds, per landscape, a visible tile counter in word 0 followed
	// by visible tile indices.
	Tiles []gpu.Buffer

	Output           gpu.DescSet
	Visible          gpu.DescSet
	LandscapeOutput  []gpu.DescSet
	LandscapeVisible []gpu.DescSet
}

// Set is the array of visibility contexts. Index 0 is the main camera,
// 1..n the shadow cascades.
type Set struct {
	layouts  *Layouts
	scene    Scene
	contexts []*Context

	cullScene      gpu.DescSet
	landscapeScene []gpu.DescSet
	sampler        gpu.Sampler
}

// NewSet creates 1+cascades contexts for scene in arena a. Buffers are sized
// for the worst case of every instance and tile visible.
func NewSet(a *gpu.Arena, l *Layouts, scene Scene, cascades int) (*Set, error) {
	s := &Set{layouts: l, scene: scene}

	var err error
	if s.cullScene, err = a.NewDescSet(l.CullScene); err != nil {
		return nil, err
	}
	s.cullScene.SetBuffer(BindInstanceInfos, scene.InstanceInfoBuffer(), 0, 0)
	s.cullScene.SetBuffer(BindInstanceMatrices, scene.InstanceMatrixBuffer(), 0, 0)
	s.cullScene.SetBuffer(BindMeshInfos, scene.MeshInfoBuffer(), 0, 0)

	if scene.LandscapeNum() > 0 {
		s.sampler, err = a.NewSampler(gpu.SamplerDesc{Filter: gpu.FilterLinear, Addr: gpu.AddrClamp})
		if err != nil {
			return nil, err
		}
	}
	for i := range scene.LandscapeNum() {
		set, err := a.NewDescSet(l.LandscapeCullScene)
		if err != nil {
			return nil, err
		}
		set.SetBuffer(BindTileHeights, scene.LandscapeMinMax(i), 0, 0)
		set.SetBuffer(BindLandscapeInfo, scene.LandscapeInfoBuffer(), 0, terrain.InfoStride)
		s.landscapeScene = append(s.landscapeScene, set)
	}

	for i := range 1 + cascades {
		c, err := s.newContext(a, i)
		if err != nil {
			return nil, fmt.Errorf("visibility context %d: %w", i, err)
		}
		s.contexts = append(s.contexts, c)
	}
	return s, nil
}

func contextName(i int) string {
	if i == 0 {
		return "main"
	}
	return fmt.Sprintf("cascade %d", i-1)
}

func (s *Set) newContext(a *gpu.Arena, i int) (*Context, error) {
	c := &Context{Index: i, Name: contextName(i)}
	meshes, instances := s.scene.MeshesNum(), s.scene.InstancesNum()

	var err error
	c.Mapping, err = a.NewBuffer(gpu.BufferDesc{
		Name:  c.Name + " instance mapping",
		Size:  4 * int64(1+instances),
		Usage: gpu.UStorage | gpu.UTransferDst,
	})
	if err != nil {
		return nil, err
	}
	c.Indirect, err = a.NewBuffer(gpu.BufferDesc{
		Name:  c.Name + " indirect draws",
		Size:  gpu.DrawIndexedIndirectSize * int64(max(meshes, 1)),
		Usage: gpu.UStorage | gpu.UIndirect,
	})
	if err != nil {
		return nil, err
	}
	if c.Output, err = a.NewDescSet(s.layouts.CullOutput); err != nil {
		return nil, err
	}
	c.Output.SetBuffer(BindIndirect, c.Indirect, 0, 0)
	c.Output.SetBuffer(BindMapping, c.Mapping, 0, 0)
	if c.Visible, err = a.NewDescSet(s.layouts.Visible); err != nil {
		return nil, err
	}
	c.Visible.SetBuffer(BindVisibleMapping, c.Mapping, 0, 0)

	n := s.scene.LandscapeNum()
	if n == 0 {
		return c, nil
	}
	c.LandscapeIndirect, err = a.NewBuffer(gpu.BufferDesc{
		Name:  c.Name + " landscape indirect draws",
		Size:  LandscapeIndirectStride * int64(n),
		Usage: gpu.UStorage | gpu.UIndirect,
	})
	if err != nil {
		return nil, err
	}
	for li, tiles := range s.scene.LandscapeTileCounts() {
		tb, err := a.NewBuffer(gpu.BufferDesc{
			Name:  fmt.Sprintf("%s landscape %d tiles", c.Name, li),
			Size:  4 * int64(1+tiles),
			Usage: gpu.UStorage | gpu.UTransferDst,
		})
		if err != nil {
			return nil, err
		}
		out, err := a.NewDescSet(s.layouts.LandscapeCullOutput)
		if err != nil {
			return nil, err
		}
		out.SetBuffer(BindLandscapeIndirect, c.LandscapeIndirect, 0, 2*gpu.DrawIndirectSize)
		out.SetBuffer(BindTiles, tb, 0, 0)

		vis, err := a.NewDescSet(s.layouts.LandscapeVisible)
		if err != nil {
			return nil, err
		}
		vis.SetImage(BindHeightmap, s.scene.LandscapeHeightmap(li), s.sampler)
		vis.SetBuffer(BindVisibleLandscapeInfo, s.scene.LandscapeInfoBuffer(), 0, terrain.InfoStride)
		vis.SetBuffer(BindVisibleTiles, tb, 0, 0)

		c.Tiles = append(c.Tiles, tb)
		c.LandscapeOutput = append(c.LandscapeOutput, out)
		c.LandscapeVisible = append(c.LandscapeVisible, vis)
	}
	return c, nil
}

// Len returns the number of contexts.
func (s *Set) Len() int { return len(s.contexts) }

// Context returns context i.
func (s *Set) Context(i int) *Context { return s.contexts[i] }

// Main returns the main camera context.
func (s *Set) Main() *Context { return s.contexts[0] }

// Cascade returns the context of shadow cascade i.
func (s *Set) Cascade(i int) *Context { return s.contexts[1+i] }

// Scene returns the scene the set culls.
func (s *Set) Scene() Scene { return s.scene }

// LandscapeOffset returns the dynamic offset selecting landscape i in
// per-landscape uniform and indirect buffers.
func LandscapeOffset(i int) uint32 {
	return uint32(i * terrain.InfoStride)
}
