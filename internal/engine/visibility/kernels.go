package visibility

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/gpu/soft"
	"github.com/Faultbox/vigil/internal/engine/scene"
	"github.com/Faultbox/vigil/internal/engine/terrain"
	"github.com/Faultbox/vigil/pkg/math"
)

// Vertex counts of the landscape draws. A body instance is one quad patch
// per visible tile.
const (
	LandscapePatchVertices = 4
	GrassPatchVertices     = 1
)

// RegisterKernels installs the CPU implementations of the culling shaders
// on a soft device.
func RegisterKernels(dev *soft.Device) {
	dev.RegisterKernel(CullShader, CullKernel)
	dev.RegisterKernel(LandscapeCullShader, LandscapeCullKernel)
}

// CullKernel culls the instances of mesh Group[0]. Surviving instance ids
// are written to the mesh's slot range of the mapping, starting at its
// instance base, the counter in word 0 is advanced by the survivor count,
// and the mesh's indirect command is rewritten.
func CullKernel(inv *soft.Invocation) error {
	push := gpu.FromBytes[CullPush](inv.Push)
	mesh := inv.Group[0]

	meshInfos := inv.Buffer(0, BindMeshInfos)
	if (mesh+1)*scene.MeshInfoSize > len(meshInfos) {
		return fmt.Errorf("mesh %d outside mesh info buffer", mesh)
	}
	mi := gpu.FromBytes[scene.MeshInfo](meshInfos[mesh*scene.MeshInfoSize:])
	box := math.AABB{Min: mi.AABBMin, Max: mi.AABBMax}

	infos := inv.Buffer(0, BindInstanceInfos)
	matrices := inv.Buffer(0, BindInstanceMatrices)
	count := int(push.InstanceCount)
	if count*scene.InstanceInfoSize > len(infos) || count*scene.MatrixSize > len(matrices) {
		return fmt.Errorf("instance count %d exceeds instance buffers", count)
	}

	var n uint32
	for i := range count {
		info := gpu.FromBytes[scene.InstanceInfo](infos[i*scene.InstanceInfoSize:])
		if int(info.MeshID) != mesh || info.RenderMark == 0 {
			continue
		}
		model := gpu.FromBytes[math.Mat4](matrices[i*scene.MatrixSize:])
		if !math.IntersectsClip(push.ViewProj.Mul4(model), box) {
			continue
		}
		if err := inv.SetWord(1, BindMapping, 1+int(mi.InstanceBase+n), uint32(i)); err != nil {
			return err
		}
		n++
	}

	total, err := inv.Word(1, BindMapping, 0)
	if err != nil {
		return err
	}
	if err := inv.SetWord(1, BindMapping, 0, total+n); err != nil {
		return err
	}

	out := inv.Buffer(1, BindIndirect)
	if (mesh+1)*gpu.DrawIndexedIndirectSize > len(out) {
		return fmt.Errorf("mesh %d outside indirect buffer", mesh)
	}
	gpu.DrawIndexedIndirectCommand{
		IndexCount:    mi.IndexCount,
		InstanceCount: n,
		FirstIndex:    mi.IndexOffset,
		VertexOffset:  mi.VertexOffset,
		FirstInstance: mi.InstanceBase,
	}.Put(out[mesh*gpu.DrawIndexedIndirectSize:])
	return nil
}

// LandscapeCullKernel culls the tiles of the landscape selected by the
// dynamic offsets, appending visible tile indices to the tile buffer and
// writing the body and grass indirect commands.
func LandscapeCullKernel(inv *soft.Invocation) error {
	push := gpu.FromBytes[LandscapeCullPush](inv.Push)
	info := gpu.FromBytes[terrain.Info](inv.Buffer(0, BindLandscapeInfo))
	heights := inv.Buffer(0, BindTileHeights)
	if info.TileSize == 0 {
		return fmt.Errorf("landscape with zero tile size")
	}

	tiles := info.TilesX() * info.TilesZ()
	if tiles*8 > len(heights) {
		return fmt.Errorf("%d tiles exceed tile height buffer of %d bytes", tiles, len(heights))
	}
	mvp := push.ViewProj.Mul4(info.Model)

	var n uint32
	for t := range tiles {
		mm := gpu.FromBytes[math.Vec2](heights[t*8:])
		if !math.IntersectsClip(mvp, info.TileBox(t, mm)) {
			continue
		}
		if err := inv.SetWord(1, BindTiles, 1+int(n), uint32(t)); err != nil {
			return err
		}
		n++
	}
	total, err := inv.Word(1, BindTiles, 0)
	if err != nil {
		return err
	}
	if err := inv.SetWord(1, BindTiles, 0, total+n); err != nil {
		return err
	}

	out := inv.Buffer(1, BindLandscapeIndirect)
	if len(out) < 2*gpu.DrawIndirectSize {
		return fmt.Errorf("landscape indirect window of %d bytes", len(out))
	}
	gpu.DrawIndirectCommand{VertexCount: LandscapePatchVertices, InstanceCount: n}.Put(out)
	gpu.DrawIndirectCommand{VertexCount: info.GrassDensity, InstanceCount: n}.Put(out[GrassIndirectOffset:])
	return nil
}
