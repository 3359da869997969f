package soft

import "fmt"

// Kernel is the CPU implementation of a compute shader. It is called once per
// workgroup, in x-fastest order.
type Kernel func(inv *Invocation) error

// Invocation is the view a kernel has of one workgroup: its id, the push
// constants and the buffer windows bound to each descriptor.
type Invocation struct {
	Group  [3]int
	Groups [3]int
	Push   []byte

	windows map[[2]int][]byte
}

// Buffer returns the bytes bound to binding nr of set, after dynamic
// offsets. The slice aliases buffer memory; writes are visible to later
// commands.
func (inv *Invocation) Buffer(set, nr int) []byte {
	return inv.windows[[2]int{set, nr}]
}

// Word returns the uint32 at word index i of a bound buffer, or an error when
// i is out of the bound range.
func (inv *Invocation) Word(set, nr, i int) (uint32, error) {
	b := inv.Buffer(set, nr)
	if i < 0 || 4*i+4 > len(b) {
		return 0, fmt.Errorf("soft: read of word %d outside binding %d.%d (%d bytes)", i, set, nr, len(b))
	}
	return le.Uint32(b[4*i:]), nil
}

// SetWord writes the uint32 at word index i of a bound buffer.
func (inv *Invocation) SetWord(set, nr, i int, v uint32) error {
	b := inv.Buffer(set, nr)
	if i < 0 || 4*i+4 > len(b) {
		return fmt.Errorf("soft: write of word %d outside binding %d.%d (%d bytes)", i, set, nr, len(b))
	}
	le.PutUint32(b[4*i:], v)
	return nil
}
