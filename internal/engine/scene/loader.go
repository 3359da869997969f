package scene

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/vigil/internal/engine/camera"
	"github.com/Faultbox/vigil/internal/engine/lighting"
	"github.com/Faultbox/vigil/internal/engine/terrain"
	"github.com/Faultbox/vigil/internal/engine/texture"
	"github.com/Faultbox/vigil/pkg/math"
)

// Description is the on-disk scene format.
type Description struct {
	Meshes     []MeshDesc      `yaml:"meshes" toml:"meshes"`
	Instances  []InstanceDesc  `yaml:"instances" toml:"instances"`
	Landscapes []LandscapeDesc `yaml:"landscapes" toml:"landscapes"`
	Lights     []LightDesc     `yaml:"lights" toml:"lights"`
	Cameras    []CameraDesc    `yaml:"cameras" toml:"cameras"`
}

// MeshDesc declares a procedural mesh.
type MeshDesc struct {
	Name      string  `yaml:"name" toml:"name"`
	Primitive string  `yaml:"primitive" toml:"primitive"` // cube, plane or sphere
	Size      float32 `yaml:"size" toml:"size"`
}

// InstanceDesc places a mesh.
type InstanceDesc struct {
	Mesh      string     `yaml:"mesh" toml:"mesh"`
	Position  [3]float32 `yaml:"position" toml:"position"`
	RotationY float32    `yaml:"rotation_y" toml:"rotation_y"` // degrees
	Scale     [3]float32 `yaml:"scale" toml:"scale"`
	Hidden    bool       `yaml:"hidden" toml:"hidden"`
}

// LandscapeDesc generates a landscape, or loads its heights from an image
// when Heightmap is set. Zero fields take terrain.DefaultParams; a heightmap
// without a size keeps the image size.
type LandscapeDesc struct {
	Heightmap    string      `yaml:"heightmap" toml:"heightmap"`
	Seed         uint64      `yaml:"seed" toml:"seed"`
	Width        int         `yaml:"width" toml:"width"`
	Height       int         `yaml:"height" toml:"height"`
	TileSize     int         `yaml:"tile_size" toml:"tile_size"`
	GrassDensity int         `yaml:"grass_density" toml:"grass_density"`
	Scale        float32     `yaml:"scale" toml:"scale"`
	Scatter      ScatterDesc `yaml:"scatter" toml:"scatter"`
}

// ScatterDesc places Count instances of Mesh at random points on a
// landscape surface.
type ScatterDesc struct {
	Mesh  string `yaml:"mesh" toml:"mesh"`
	Count int    `yaml:"count" toml:"count"`
	Seed  uint64 `yaml:"seed" toml:"seed"`
}

// LightDesc declares a point light.
type LightDesc struct {
	Position    [3]float32 `yaml:"position" toml:"position"`
	Color       [3]float32 `yaml:"color" toml:"color"`
	Radius      float32    `yaml:"radius" toml:"radius"`
	InnerRadius float32    `yaml:"inner_radius" toml:"inner_radius"`
}

// CameraDesc declares a camera. Zero lens fields take camera.Default.
type CameraDesc struct {
	Position [3]float32  `yaml:"position" toml:"position"`
	LookAt   [3]float32  `yaml:"look_at" toml:"look_at"`
	Up       *[3]float32 `yaml:"up" toml:"up"`
	FovY     float32     `yaml:"fov" toml:"fov"`
	Near     float32     `yaml:"near" toml:"near"`
	Far      float32     `yaml:"far" toml:"far"`
}

// Load reads a scene description from a YAML or TOML file and builds it.
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Description
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &d)
	} else {
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing scene %s: %w", path, err)
	}
	// Heightmaps are relative to the scene file.
	for i, ld := range d.Landscapes {
		if ld.Heightmap != "" && !filepath.IsAbs(ld.Heightmap) {
			d.Landscapes[i].Heightmap = filepath.Join(filepath.Dir(path), ld.Heightmap)
		}
	}
	m, err := Build(&d)
	if err != nil {
		return nil, fmt.Errorf("building scene %s: %w", path, err)
	}
	return m, nil
}

// Build creates a scene from a description.
func Build(d *Description) (*Manager, error) {
	m := NewManager()
	for _, md := range d.Meshes {
		mesh, err := primitive(md)
		if err != nil {
			return nil, err
		}
		m.AddMesh(mesh)
	}
	for i, id := range d.Instances {
		mesh, ok := m.MeshID(id.Mesh)
		if !ok {
			return nil, fmt.Errorf("instance %d: unknown mesh %q", i, id.Mesh)
		}
		if _, err := m.InstanceMesh(mesh, id.model(), !id.Hidden); err != nil {
			return nil, err
		}
	}
	for i, ld := range d.Landscapes {
		l, err := ld.landscape()
		if err != nil {
			return nil, fmt.Errorf("landscape %d: %w", i, err)
		}
		m.AddLandscape(l)
		if err := m.scatter(l, ld.Scatter); err != nil {
			return nil, fmt.Errorf("landscape %d: %w", i, err)
		}
	}
	for _, ld := range d.Lights {
		m.AddLight(lighting.PointLight{
			Position:    ld.Position,
			Color:       ld.Color,
			Radius:      ld.Radius,
			InnerRadius: ld.InnerRadius,
		})
	}
	for _, cd := range d.Cameras {
		m.AddCamera(cd.camera())
	}
	return m, nil
}

func primitive(md MeshDesc) (Mesh, error) {
	size := md.Size
	if size == 0 {
		size = 1
	}
	var mesh Mesh
	switch md.Primitive {
	case "cube", "":
		mesh = Cube(size)
	case "plane":
		mesh = Plane(size)
	case "sphere":
		mesh = Sphere(size/2, 16, 24)
	default:
		return Mesh{}, fmt.Errorf("mesh %q: unknown primitive %q", md.Name, md.Primitive)
	}
	if md.Name != "" {
		mesh.Name = md.Name
	}
	return mesh, nil
}

func (id InstanceDesc) model() math.Mat4 {
	s := id.Scale
	if s == [3]float32{} {
		s = [3]float32{1, 1, 1}
	}
	return math.Translate(id.Position[0], id.Position[1], id.Position[2]).
		Mul4(math.RotateY(mgl32.DegToRad(id.RotationY))).
		Mul4(math.Scale(s[0], s[1], s[2]))
}

func (ld LandscapeDesc) landscape() (*terrain.Landscape, error) {
	if ld.Heightmap == "" {
		return terrain.Generate(ld.params(), ld.Seed)
	}
	heights, w, h, err := texture.LoadHeights(ld.Heightmap, ld.Width, ld.Height)
	if err != nil {
		return nil, err
	}
	p := ld.params()
	p.Width, p.Height = w, h
	return terrain.FromHeights(p, heights)
}

func (ld LandscapeDesc) params() terrain.Params {
	p := terrain.DefaultParams()
	if ld.Width > 0 {
		p.Width = ld.Width
	}
	if ld.Height > 0 {
		p.Height = ld.Height
	}
	if ld.TileSize > 0 {
		p.TileSize = ld.TileSize
	}
	if ld.GrassDensity > 0 {
		p.GrassDensity = ld.GrassDensity
	}
	if ld.Scale > 0 {
		p.Scale = ld.Scale
	}
	return p
}

func (m *Manager) scatter(l *terrain.Landscape, s ScatterDesc) error {
	if s.Count == 0 {
		return nil
	}
	mesh, ok := m.MeshID(s.Mesh)
	if !ok {
		return fmt.Errorf("scatter: unknown mesh %q", s.Mesh)
	}
	r := rand.New(rand.NewPCG(s.Seed, s.Seed+1))
	for range s.Count {
		p := l.WorldPoint(r.Float32(), r.Float32())
		if _, err := m.InstanceMesh(mesh, math.Translate(p[0], p[1], p[2]), true); err != nil {
			return err
		}
	}
	return nil
}

func (cd CameraDesc) camera() camera.Camera {
	c := camera.Default()
	c.Pos = cd.Position
	c.LookAt = cd.LookAt
	if cd.Up != nil {
		c.Up = *cd.Up
	}
	if cd.FovY > 0 {
		c.FovY = cd.FovY
	}
	if cd.Near > 0 {
		c.Near = cd.Near
	}
	if cd.Far > 0 {
		c.Far = cd.Far
	}
	return c
}
