package picking

import (
	"github.com/Faultbox/vigil/internal/engine/scene"
)

// Hit is a picked instance.
type Hit struct {
	Instance int
	Distance float32
}

// PickInstance returns the nearest instance whose world bounds the ray hits.
// Unmarked instances are skipped unless all is set.
func PickInstance(m *scene.Manager, r Ray, all bool) (Hit, bool) {
	best := Hit{Instance: -1}
	for id := range m.InstancesNum() {
		inst := m.Instance(id)
		if !inst.Marked && !all {
			continue
		}
		box := m.Mesh(inst.Mesh).Bounds.Transform(inst.Model)
		t, ok := r.IntersectAABB(box)
		if !ok {
			continue
		}
		if best.Instance < 0 || t < best.Distance {
			best = Hit{Instance: id, Distance: t}
		}
	}
	return best, best.Instance >= 0
}
