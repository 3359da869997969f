package gpu

// Format is a texel format.
type Format int

// Formats.
const (
	FormatUndefined Format = iota
	RGBA8un
	BGRA8un
	R8un
	RGBA16f
	RG16f
	R16f
	RGBA32f
	RG32f
	R32f
	D32f
	D24unS8ui
)

var formatInfo = [...]struct {
	name  string
	size  int
	depth bool
}{
	{"undefined", 0, false},
	{"rgba8un", 4, false},
	{"bgra8un", 4, false},
	{"r8un", 1, false},
	{"rgba16f", 8, false},
	{"rg16f", 4, false},
	{"r16f", 2, false},
	{"rgba32f", 16, false},
	{"rg32f", 8, false},
	{"r32f", 4, false},
	{"d32f", 4, true},
	{"d24uns8ui", 4, true},
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatInfo) {
		return formatInfo[f].name
	}
	return "format(?)"
}

// IsDepth reports whether f is a depth or depth/stencil format.
func (f Format) IsDepth() bool {
	return f >= 0 && int(f) < len(formatInfo) && formatInfo[f].depth
}

// Size returns the size of one texel in bytes.
func (f Format) Size() int {
	if f >= 0 && int(f) < len(formatInfo) {
		return formatInfo[f].size
	}
	return 0
}
