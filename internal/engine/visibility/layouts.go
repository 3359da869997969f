package visibility

import (
	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// Binding numbers of the culling descriptor sets.
const (
	// Cull scene set, shared by every context.
	BindInstanceInfos    = 0
	BindInstanceMatrices = 1
	BindMeshInfos        = 2

	// Cull output set, one per context.
	BindIndirect = 0
	BindMapping  = 1

	// Landscape cull scene set, one per landscape.
	BindTileHeights   = 0
	BindLandscapeInfo = 1

	// Landscape cull output set, one per context and landscape.
	BindLandscapeIndirect = 0
	BindTiles             = 1

	// Visible set, one per context, read by vertex shaders.
	BindVisibleMapping = 0

	// Landscape visible set, one per context and landscape, read by
	// tessellation shaders.
	BindHeightmap            = 0
	BindVisibleLandscapeInfo = 1
	BindVisibleTiles         = 2
)

// Layouts are the descriptor set and pipeline layouts shared by every
// visibility context. They are created once per renderer and owned by its
// resource manager.
type Layouts struct {
	CullScene  gpu.DescSetLayout
	CullOutput gpu.DescSetLayout
	Visible    gpu.DescSetLayout

	LandscapeCullScene  gpu.DescSetLayout
	LandscapeCullOutput gpu.DescSetLayout
	LandscapeVisible    gpu.DescSetLayout

	Cull          gpu.PipelineLayout
	LandscapeCull gpu.PipelineLayout
}

// NewLayouts creates the layouts in arena a.
func NewLayouts(a *gpu.Arena) (*Layouts, error) {
	l := &Layouts{}
	sets := []struct {
		dst      *gpu.DescSetLayout
		bindings []gpu.Binding
	}{
		{&l.CullScene, []gpu.Binding{
			{Nr: BindInstanceInfos, Type: gpu.DStorage, Stages: gpu.StCompute, ReadOnly: true},
			{Nr: BindInstanceMatrices, Type: gpu.DStorage, Stages: gpu.StCompute, ReadOnly: true},
			{Nr: BindMeshInfos, Type: gpu.DStorage, Stages: gpu.StCompute, ReadOnly: true},
		}},
		{&l.CullOutput, []gpu.Binding{
			{Nr: BindIndirect, Type: gpu.DStorage, Stages: gpu.StCompute},
			{Nr: BindMapping, Type: gpu.DStorage, Stages: gpu.StCompute},
		}},
		{&l.Visible, []gpu.Binding{
			{Nr: BindVisibleMapping, Type: gpu.DStorage, Stages: gpu.StVertex, ReadOnly: true},
		}},
		{&l.LandscapeCullScene, []gpu.Binding{
			{Nr: BindTileHeights, Type: gpu.DStorage, Stages: gpu.StCompute, ReadOnly: true},
			{Nr: BindLandscapeInfo, Type: gpu.DUniformDynamic, Stages: gpu.StCompute},
		}},
		{&l.LandscapeCullOutput, []gpu.Binding{
			{Nr: BindLandscapeIndirect, Type: gpu.DStorageDynamic, Stages: gpu.StCompute},
			{Nr: BindTiles, Type: gpu.DStorage, Stages: gpu.StCompute},
		}},
		{&l.LandscapeVisible, []gpu.Binding{
			{Nr: BindHeightmap, Type: gpu.DSampledImage, Stages: gpu.StTessControl | gpu.StTessEval | gpu.StFragment},
			{Nr: BindVisibleLandscapeInfo, Type: gpu.DUniformDynamic, Stages: gpu.StTessControl | gpu.StTessEval},
			{Nr: BindVisibleTiles, Type: gpu.DStorage, Stages: gpu.StTessControl, ReadOnly: true},
		}},
	}
	var err error
	for _, s := range sets {
		if *s.dst, err = a.NewDescSetLayout(s.bindings); err != nil {
			return nil, err
		}
	}
	l.Cull, err = a.NewPipelineLayout([]gpu.DescSetLayout{l.CullScene, l.CullOutput}, CullPushSize)
	if err != nil {
		return nil, err
	}
	l.LandscapeCull, err = a.NewPipelineLayout([]gpu.DescSetLayout{l.LandscapeCullScene, l.LandscapeCullOutput}, LandscapeCullPushSize)
	if err != nil {
		return nil, err
	}
	return l, nil
}
