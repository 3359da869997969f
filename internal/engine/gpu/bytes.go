package gpu

import "unsafe"

// Bytes returns the memory of v as a byte slice without copying. T must be a
// plain struct of fixed-size numeric fields laid out the way the shaders
// expect; the slice aliases v.
func Bytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// SliceBytes returns the memory of s as a byte slice without copying.
func SliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// FromBytes reinterprets b as a T. b must hold at least sizeof(T) bytes.
func FromBytes[T any](b []byte) T {
	var v T
	copy(Bytes(&v), b)
	return v
}
