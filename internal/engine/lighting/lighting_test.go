package lighting

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

func TestSunPosition(t *testing.T) {
	tests := []struct {
		angle float32
		want  [3]float32
	}{
		{0, [3]float32{0, 0, SunDistance}},
		{math32.Pi / 2, [3]float32{0, SunDistance, 0}},
	}
	for _, tt := range tests {
		got := SunPosition(tt.angle)
		for i := range 3 {
			if math32.Abs(got[i]-tt.want[i]) > 1e-2 {
				t.Errorf("SunPosition(%v) = %v, want %v", tt.angle, got, tt.want)
				break
			}
		}
	}
}

func TestSunDirectionIsUnit(t *testing.T) {
	for _, a := range []float32{0, 0.3, 1, 2.5} {
		if l := SunDirection(a).Len(); math32.Abs(l-1) > 1e-5 {
			t.Errorf("SunDirection(%v) length = %v", a, l)
		}
	}
}

func TestSanitize(t *testing.T) {
	l := PointLight{Color: [3]float32{2, -1, 0.5}, Radius: 0, InnerRadius: 5}.Sanitize()
	if l.Color != [3]float32{1, 0, 0.5} {
		t.Errorf("Color = %v", l.Color)
	}
	if l.Radius != DefaultRadius {
		t.Errorf("Radius = %v, want %v", l.Radius, DefaultRadius)
	}
	if l.InnerRadius != 5 {
		t.Errorf("InnerRadius = %v, want 5", l.InnerRadius)
	}

	l = PointLight{Radius: 2, InnerRadius: 3}.Sanitize()
	if l.InnerRadius != 0 {
		t.Errorf("inner radius beyond radius kept: %v", l.InnerRadius)
	}
}

func TestPointLightBufferBytes(t *testing.T) {
	b := NewPointLightBuffer()
	if got := len(b.Bytes()); got != GPULightSize {
		t.Fatalf("empty buffer packs %d bytes, want %d", got, GPULightSize)
	}

	b.AddLight(PointLight{Position: [3]float32{1, 2, 3}, Color: [3]float32{1, 1, 1}, Radius: 10, InnerRadius: 4})
	b.AddLight(PointLight{Radius: 7})
	data := b.Bytes()
	if len(data) != 2*GPULightSize {
		t.Fatalf("packed %d bytes, want %d", len(data), 2*GPULightSize)
	}
	first := gpu.FromBytes[GPULight](data)
	if first.PositionAndOuterRadius != [4]float32{1, 2, 3, 10} {
		t.Errorf("first light = %+v", first)
	}
	if first.ColorAndInnerRadius[3] != 4 {
		t.Errorf("inner radius = %v", first.ColorAndInnerRadius[3])
	}
}
