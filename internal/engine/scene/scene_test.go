package scene

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/Faultbox/vigil/internal/engine/camera"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/gpu/soft"
	"github.com/Faultbox/vigil/internal/engine/terrain"
	"github.com/Faultbox/vigil/pkg/math"
)

func TestLayoutSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Vertex", unsafe.Sizeof(Vertex{}), VertexStride},
		{"InstanceInfo", unsafe.Sizeof(InstanceInfo{}), InstanceInfoSize},
		{"MeshInfo", unsafe.Sizeof(MeshInfo{}), MeshInfoSize},
		{"Mat4", unsafe.Sizeof(math.Mat4{}), MatrixSize},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestPrimitives(t *testing.T) {
	for _, mesh := range []Mesh{Cube(2), Plane(2), Sphere(1, 4, 6)} {
		if len(mesh.Indices)%3 != 0 {
			t.Errorf("%s: %d indices", mesh.Name, len(mesh.Indices))
		}
		for _, i := range mesh.Indices {
			if int(i) >= len(mesh.Vertices) {
				t.Fatalf("%s: index %d of %d vertices", mesh.Name, i, len(mesh.Vertices))
			}
		}
		b := mesh.Bounds()
		if b.Max[0] < 0.99 || b.Min[0] > -0.99 {
			t.Errorf("%s: bounds %+v", mesh.Name, b)
		}
	}
}

func TestInstanceBases(t *testing.T) {
	m := NewManager()
	a := m.AddMesh(Cube(1))
	b := m.AddMesh(Plane(1))
	c := m.AddMesh(Sphere(1, 3, 3))
	for _, id := range []int{b, a, b, c, b} {
		if _, err := m.InstanceMesh(id, math.Identity(), true); err != nil {
			t.Fatal(err)
		}
	}
	got := m.InstanceBases()
	want := []int{0, 1, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InstanceBases = %v, want %v", got, want)
			break
		}
	}
}

func TestBoundsIncludeLandscapes(t *testing.T) {
	m := NewManager()
	cube := m.AddMesh(Cube(1))
	if _, err := m.InstanceMesh(cube, math.Translate(0, 50, 0), true); err != nil {
		t.Fatal(err)
	}
	p := terrain.DefaultParams()
	p.Width, p.Height, p.TileSize, p.Scale = 32, 32, 16, 100
	l, err := terrain.FromHeights(p, make([]float32, p.Width*p.Height))
	if err != nil {
		t.Fatal(err)
	}
	m.AddLandscape(l)

	b := m.Bounds()
	lb := l.Bounds()
	for i := range 3 {
		if b.Min[i] > lb.Min[i] || b.Max[i] < lb.Max[i] {
			t.Fatalf("scene bounds %v..%v do not contain landscape %v..%v", b.Min, b.Max, lb.Min, lb.Max)
		}
	}
	if b.Max[1] < 50 {
		t.Errorf("scene bounds top = %v, want the raised cube", b.Max[1])
	}
}

func TestInstanceUnknownMesh(t *testing.T) {
	m := NewManager()
	if _, err := m.InstanceMesh(0, math.Identity(), true); err == nil {
		t.Fatal("expected error for unknown mesh")
	}
}

func TestGetCameraFallback(t *testing.T) {
	m := NewManager()
	want := camera.Default()
	want.Pos = math.Vec3{1, 2, 3}
	m.AddCamera(want)

	if got := m.GetCamera(0); got != want {
		t.Errorf("GetCamera(0) = %+v, want %+v", got, want)
	}
	if got := m.GetCamera(5); got != camera.Default() {
		t.Errorf("GetCamera(5) = %+v, want default", got)
	}
}

func TestUploadAndMark(t *testing.T) {
	dev := soft.New()
	arena := gpu.NewArena(dev)
	defer arena.Destroy()

	m := NewManager()
	cube := m.AddMesh(Cube(1))
	for i := range 3 {
		if _, err := m.InstanceMesh(cube, math.Translate(float32(i), 0, 0), true); err != nil {
			t.Fatal(err)
		}
	}
	g, err := m.Upload(arena)
	if err != nil {
		t.Fatal(err)
	}
	if g.MeshesNum() != 1 || g.InstancesNum() != 3 || g.LandscapeNum() != 0 {
		t.Fatalf("counts = %d/%d/%d", g.MeshesNum(), g.InstancesNum(), g.LandscapeNum())
	}
	if got := g.InstanceMatrices.Size(); got != 3*MatrixSize {
		t.Errorf("matrix buffer size = %d", got)
	}

	if err := m.UnmarkInstance(1); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, InstanceInfoSize)
	if err := dev.ReadBuffer(g.InstanceInfos, InstanceInfoSize, buf); err != nil {
		t.Fatal(err)
	}
	if info := gpu.FromBytes[InstanceInfo](buf); info.RenderMark != 0 || info.MeshID != uint32(cube) {
		t.Errorf("instance 1 info = %+v, want unmarked", info)
	}
	if _, err := m.InstanceMesh(cube, math.Identity(), true); err == nil {
		t.Error("expected error adding an instance after upload")
	}
}

func TestUploadEmptyScene(t *testing.T) {
	dev := soft.New()
	arena := gpu.NewArena(dev)
	defer arena.Destroy()

	g, err := NewManager().Upload(arena)
	if err != nil {
		t.Fatalf("empty scene upload: %v", err)
	}
	if g.InstancesNum() != 0 || g.InstanceInfos.Size() == 0 {
		t.Errorf("empty scene: %d instances, info buffer %d bytes", g.InstancesNum(), g.InstanceInfos.Size())
	}
}

const sceneYAML = `
meshes:
  - name: box
    primitive: cube
    size: 2
  - name: ball
    primitive: sphere
instances:
  - mesh: box
    position: [0, 1, 0]
  - mesh: ball
    position: [3, 0, 0]
    hidden: true
landscapes:
  - seed: 4
    width: 64
    height: 64
    tile_size: 16
    scatter:
      mesh: ball
      count: 5
      seed: 9
lights:
  - position: [0, 5, 0]
    color: [1, 0.5, 0.25]
    radius: 20
cameras:
  - position: [0, 10, 20]
    look_at: [0, 0, 0]
    fov: 45
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(sceneYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.MeshesNum() != 2 {
		t.Errorf("meshes = %d, want 2", m.MeshesNum())
	}
	if m.InstancesNum() != 7 {
		t.Errorf("instances = %d, want 7 (2 placed + 5 scattered)", m.InstancesNum())
	}
	if m.Instance(1).Marked {
		t.Error("hidden instance is marked")
	}
	if got := m.LandscapeTileCounts(); len(got) != 1 || got[0] != 16 {
		t.Errorf("tile counts = %v, want [16]", got)
	}
	if m.LightsNum() != 1 {
		t.Errorf("lights = %d", m.LightsNum())
	}
	c := m.GetCamera(0)
	if c.FovY != 45 || c.Up != (math.Vec3{0, 1, 0}) || c.Far != 1000 {
		t.Errorf("camera = %+v", c)
	}
}

func TestLoadTOML(t *testing.T) {
	const doc = `
[[meshes]]
name = "floor"
primitive = "plane"
size = 10

[[instances]]
mesh = "floor"
scale = [2, 1, 2]
`
	path := filepath.Join(t.TempDir(), "scene.toml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.InstancesNum() != 1 {
		t.Fatalf("instances = %d", m.InstancesNum())
	}
	b := m.Mesh(0).Bounds.Transform(m.Instance(0).Model)
	if b.Max[0] < 9.99 || b.Max[0] > 10.01 {
		t.Errorf("scaled floor bounds = %+v", b)
	}
}

func TestBuildUnknownPrimitive(t *testing.T) {
	_, err := Build(&Description{Meshes: []MeshDesc{{Name: "x", Primitive: "torus"}}})
	if err == nil {
		t.Fatal("expected error for unknown primitive")
	}
}

func TestLoadHeightmapLandscape(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	f, err := os.Create(filepath.Join(dir, "height.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	const doc = `
landscapes:
  - heightmap: height.png
    tile_size: 8
`
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	l := m.Landscape(0)
	if l.Params.Width != 32 || l.Params.Height != 16 {
		t.Errorf("landscape size = %dx%d, want the image size 32x16", l.Params.Width, l.Params.Height)
	}
	if got := m.LandscapeTileCounts(); len(got) != 1 || got[0] != 8 {
		t.Errorf("tile counts = %v, want [8]", got)
	}
}

func TestLoadHeightmapMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte("landscapes:\n  - heightmap: nope.png\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing heightmap")
	}
}
