package soft

import (
	"sort"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// scope is a (stages, accesses) pair a write has been made visible to.
type scope struct {
	sync   gpu.Sync
	access gpu.Access
}

type read struct {
	sync   gpu.Sync
	access gpu.Access
	cmd    int
	name   string
	// ordered accumulates the stages that later barriers have ordered after
	// this read.
	ordered gpu.Sync
}

// state is the synchronization state of one tracked memory region: the last
// write, the scopes it is visible to, and the reads since that write.
type state struct {
	written bool
	wSync   gpu.Sync
	wAcc    gpu.Access
	wCmd    int
	wName   string
	visible []scope
	reads   []read
}

// access describes one memory access by a command.
type access struct {
	sync   gpu.Sync
	access gpu.Access
	cmd    int
	name   string
	// strict disables the same-command exemption, for input attachment
	// reads of attachments written earlier in the same render pass.
	strict bool
}

func (s *state) visibleTo(sync gpu.Sync, acc gpu.Access) bool {
	for _, v := range s.visible {
		if v.sync&sync == sync && v.access&acc == acc {
			return true
		}
	}
	return false
}

func (s *state) orderedBefore(sync gpu.Sync) bool {
	for _, v := range s.visible {
		if v.sync&sync == sync {
			return true
		}
	}
	return false
}

// barrier applies a memory dependency to s.
func (s *state) barrier(before, after gpu.Sync, accBefore, accAfter gpu.Access) {
	if s.written {
		covered := s.wSync&before != 0 && s.wAcc&accBefore == s.wAcc
		if !covered {
			for _, v := range s.visible {
				if v.sync&before != 0 {
					covered = true
					break
				}
			}
		}
		if covered {
			s.visible = append(s.visible, scope{after, accAfter})
		}
	}
	for i := range s.reads {
		r := &s.reads[i]
		if r.sync&before != 0 || r.ordered&before != 0 {
			r.ordered |= after
		}
	}
}

// checkRead validates a read and records it.
func (s *state) checkRead(res string, a access) *gpu.HazardError {
	if s.written && (a.strict || s.wCmd != a.cmd) && !s.visibleTo(a.sync, a.access) {
		return &gpu.HazardError{
			Kind: gpu.ReadAfterWrite, Resource: res,
			Command: a.name, Prev: s.wName,
			Sync: a.sync, Access: a.access,
			Detail: "write (" + s.wSync.String() + ", " + s.wAcc.String() + ") not visible",
		}
	}
	for _, r := range s.reads {
		if r.sync == a.sync && r.access == a.access && r.ordered == 0 && r.cmd == a.cmd {
			return nil
		}
	}
	s.reads = append(s.reads, read{sync: a.sync, access: a.access, cmd: a.cmd, name: a.name})
	return nil
}

// checkWrite validates a write and makes it the last write.
func (s *state) checkWrite(res string, a access) *gpu.HazardError {
	if s.written && s.wCmd != a.cmd && !s.orderedBefore(a.sync) {
		return &gpu.HazardError{
			Kind: gpu.WriteAfterWrite, Resource: res,
			Command: a.name, Prev: s.wName,
			Sync: a.sync, Access: a.access,
		}
	}
	for _, r := range s.reads {
		if r.cmd != a.cmd && r.ordered&a.sync != a.sync {
			return &gpu.HazardError{
				Kind: gpu.WriteAfterRead, Resource: res,
				Command: a.name, Prev: r.name,
				Sync: a.sync, Access: a.access,
				Detail: "read (" + r.sync.String() + ", " + r.access.String() + ") not ordered before",
			}
		}
	}
	*s = state{written: true, wSync: a.sync, wAcc: a.access, wCmd: a.cmd, wName: a.name}
	return nil
}

// span is a tracked byte range [off, end) of a buffer.
type span struct {
	off, end int64
	st       state
}

// spans tracks a buffer as a sorted list of ranges covering [0, size).
// Ranges split where accesses begin and end, so disjoint regions of one
// buffer, like the per-terrain tile counters, are tracked independently.
type spans struct {
	size int64
	list []span
}

func newSpans(size int64) *spans {
	return &spans{size: size, list: []span{{off: 0, end: size}}}
}

func (t *spans) split(at int64) {
	if at <= 0 || at >= t.size {
		return
	}
	i := sort.Search(len(t.list), func(i int) bool { return t.list[i].end > at })
	if i == len(t.list) || t.list[i].off == at {
		return
	}
	s := t.list[i]
	left, right := s, s
	left.end = at
	right.off = at
	right.st.visible = append([]scope(nil), s.st.visible...)
	right.st.reads = append([]read(nil), s.st.reads...)
	t.list = append(t.list, span{})
	copy(t.list[i+2:], t.list[i+1:])
	t.list[i] = left
	t.list[i+1] = right
}

// each calls fn for every span overlapping [off, off+size).
func (t *spans) each(off, size int64, fn func(*state) *gpu.HazardError) *gpu.HazardError {
	end := off + size
	if size <= 0 {
		return nil
	}
	t.split(off)
	t.split(end)
	for i := range t.list {
		s := &t.list[i]
		if s.end <= off || s.off >= end {
			continue
		}
		if err := fn(&s.st); err != nil {
			return err
		}
	}
	return nil
}

func (t *spans) reset() {
	t.list = append(t.list[:0], span{off: 0, end: t.size})
}
