package picking

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/internal/engine/camera"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/scene"
	"github.com/Faultbox/vigil/pkg/math"
)

func approx(a, b float32) bool { return math32.Abs(a-b) < 1e-3 }

func TestIntersectAABB(t *testing.T) {
	box := math.AABB{Min: math.Vec3{-1, -1, -1}, Max: math.Vec3{1, 1, 1}}
	tests := []struct {
		name string
		ray  Ray
		hit  bool
		t    float32
	}{
		{"front", Ray{math.Vec3{0, 0, 5}, math.Vec3{0, 0, -1}}, true, 4},
		{"miss", Ray{math.Vec3{3, 0, 5}, math.Vec3{0, 0, -1}}, false, 0},
		{"behind", Ray{math.Vec3{0, 0, 5}, math.Vec3{0, 0, 1}}, false, 0},
		{"inside", Ray{math.Vec3{0, 0, 0}, math.Vec3{1, 0, 0}}, true, 1},
		{"parallel outside", Ray{math.Vec3{0, 2, 5}, math.Vec3{0, 0, -1}}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && !approx(got, tt.t) {
				t.Errorf("t = %g, want %g", got, tt.t)
			}
		})
	}
}

func TestIntersectPlaneY(t *testing.T) {
	r := Ray{Origin: math.Vec3{0, 10, 0}, Dir: math.Vec3{0, -1, 0}}
	d, ok := r.IntersectPlaneY(2)
	if !ok || !approx(d, 8) {
		t.Fatalf("IntersectPlaneY = %g, %v, want 8, true", d, ok)
	}
	if p := r.At(d); !approx(p[1], 2) {
		t.Errorf("hit point y = %g, want 2", p[1])
	}
	if _, ok := (Ray{Origin: math.Vec3{0, 10, 0}, Dir: math.Vec3{1, 0, 0}}).IntersectPlaneY(2); ok {
		t.Error("parallel ray should not hit")
	}
}

func TestScreenCenterRay(t *testing.T) {
	c := camera.Default()
	vp := gpu.Extent2D{Width: 200, Height: 100}
	inv := c.ViewProj(2).Inv()
	r := ScreenToRay(100, 50, vp, inv)

	if !approx(r.Dir[0], 0) || !approx(r.Dir[1], 0) || !approx(r.Dir[2], -1) {
		t.Errorf("dir = %v, want the view direction", r.Dir)
	}
	if math32.Abs(r.Origin[2]-(c.Pos[2]-c.Near)) > 1e-2 {
		t.Errorf("origin z = %g, want the near plane at %g", r.Origin[2], c.Pos[2]-c.Near)
	}
}

func TestPickInstance(t *testing.T) {
	m := scene.NewManager()
	cube := m.AddMesh(scene.Cube(1))
	near, _ := m.InstanceMesh(cube, math.Translate(0, 0, 5), true)
	far, _ := m.InstanceMesh(cube, math.Translate(0, 0, -5), true)
	m.InstanceMesh(cube, math.Translate(4, 0, 0), true)

	r := Ray{Origin: math.Vec3{0, 0, 15}, Dir: math.Vec3{0, 0, -1}}
	hit, ok := PickInstance(m, r, false)
	if !ok || hit.Instance != near {
		t.Fatalf("picked %+v, want instance %d", hit, near)
	}

	if err := m.UnmarkInstance(near); err != nil {
		t.Fatal(err)
	}
	if hit, _ := PickInstance(m, r, false); hit.Instance != far {
		t.Errorf("with the near cube unmarked picked %d, want %d", hit.Instance, far)
	}
	if hit, _ := PickInstance(m, r, true); hit.Instance != near {
		t.Errorf("picking all picked %d, want %d", hit.Instance, near)
	}

	if _, ok := PickInstance(m, Ray{Origin: math.Vec3{0, 10, 0}, Dir: math.Vec3{0, 1, 0}}, true); ok {
		t.Error("ray pointing away should pick nothing")
	}
}
