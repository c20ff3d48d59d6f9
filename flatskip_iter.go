package flatskip

import "iter"

// Forwards returns a lazy, left-to-right sequence of live indices starting
// at start (or the head, if start is Nil), yielding at most limit indices
// (or sizes[0], if limit is negative). It terminates early if the tail is
// reached. Iteration must not be interleaved with Insert/Remove: doing so is
// memory-safe but yields undefined ordering.
func (sl *SkipList) Forwards(start uint32, limit int) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		cur := start
		if cur == Nil {
			cur = sl.heads[0]
		}
		if limit < 0 {
			limit = sl.sizes[0]
		}
		for steps := 0; cur != Nil && steps < limit; steps++ {
			if !yield(cur) {
				return
			}
			cur = sl.next[0][cur]
		}
	}
}

// Backwards returns a lazy, right-to-left sequence of live indices starting
// at start (or the tail, if start is Nil), yielding at most limit indices
// (or sizes[0], if limit is negative). It terminates early if the head is
// reached.
func (sl *SkipList) Backwards(start uint32, limit int) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		cur := start
		if cur == Nil {
			cur = sl.tails[0]
		}
		if limit < 0 {
			limit = sl.sizes[0]
		}
		for steps := 0; cur != Nil && steps < limit; steps++ {
			if !yield(cur) {
				return
			}
			cur = sl.prev[cur]
		}
	}
}

// All is the plain full-sequence iterator: forward from the head for the
// entire live length.
func (sl *SkipList) All() iter.Seq[uint32] {
	return sl.Forwards(Nil, -1)
}
