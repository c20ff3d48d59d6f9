// Package flatskip implements a fixed-capacity, pointer-packed, multi-layer
// probabilistic skip list for indexing externally-stored records.
//
// Unlike a conventional skip list, a node's identity is not a heap pointer:
// it is a caller-supplied integer in [0, capacity), the same slot id the
// caller's own value container (an append-only array, a ring buffer, a
// memory-mapped region) handed back when the value was stored. All link
// state lives in parallel flat arrays indexed by that integer, one array per
// level, so inserting a key never allocates once the skip list is
// constructed. The skip list never reads or copies values; every ordering
// decision is delegated to a caller-supplied comparator over indices.
package flatskip

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Nil is the sentinel "no index" value, returned by accessors and search
// operations that may find nothing, and used internally as the null link.
// Zero is a valid index, so the zero value of uint32 cannot serve as Nil.
const Nil uint32 = ^uint32(0)

// CompareFunc orders two live indices. It must return -1 if a sorts before
// b, 0 if they are equal, and +1 if a sorts after b, and it must remain
// consistent for the lifetime of any index currently in the skip list. It
// commonly dereferences into a caller-owned value array; flatskip never
// assumes it is cheap or side-effect-free, only that it is total.
type CompareFunc func(a, b uint32) int

var (
	// ErrInvalidCapacity is returned by New when capacity is zero.
	ErrInvalidCapacity = errors.New("flatskip: capacity must be greater than zero")
	// ErrInvalidRatio is returned by New when ratio is not in (0, 1).
	ErrInvalidRatio = errors.New("flatskip: ratio must be in the open interval (0, 1)")
	// ErrIndexOutOfRange is wrapped by operations given an index >= capacity.
	ErrIndexOutOfRange = errors.New("flatskip: index out of range")
)

// SkipList is the core ordered index described by this package. It is not
// safe for concurrent use: no operation takes a lock, and callers must
// serialize all mutating operations with each other and with iteration.
// Callers that need concurrent access provide their own external locking.
type SkipList struct {
	capacity     uint32
	ratio        float64
	compare      CompareFunc
	levels       int
	currentLevel int

	heads []uint32
	tails []uint32
	sizes []int

	next [][]uint32
	prev []uint32

	cdf []float64
	rng *rand.Rand

	// forceLevel, when set, overrides randomLevel's draw entirely. It
	// exists only so tests can pin promotion heights deterministically
	// (never promote, always promote) without the degenerate ratio values
	// New rejects. Never set outside tests.
	forceLevel func() int
}

// New constructs a SkipList with room for capacity live indices, ordered by
// compare, with promotion probability ratio (commonly 1/2, 1/4, or 1/8). All
// link storage is allocated here, up front; no later operation allocates on
// a successful path.
func New(capacity uint32, ratio float64, compare CompareFunc) (*SkipList, error) {
	if capacity == 0 {
		return nil, ErrInvalidCapacity
	}
	if !(ratio > 0 && ratio < 1) {
		return nil, ErrInvalidRatio
	}

	levels := int(math.Floor(math.Log(float64(capacity))/math.Log(1/ratio))) + 1
	if levels < 1 {
		levels = 1
	}

	sl := &SkipList{
		capacity: capacity,
		ratio:    ratio,
		compare:  compare,
		levels:   levels,

		heads: make([]uint32, levels),
		tails: make([]uint32, levels),
		sizes: make([]int, levels),

		next: make([][]uint32, levels),
		prev: make([]uint32, capacity),

		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for l := 0; l < levels; l++ {
		sl.heads[l] = Nil
		sl.tails[l] = Nil
		sl.next[l] = make([]uint32, capacity)
		for i := range sl.next[l] {
			sl.next[l][i] = Nil
		}
	}
	for i := range sl.prev {
		sl.prev[i] = Nil
	}

	if levels > 1 {
		sl.cdf = make([]float64, levels-1)
		p := ratio
		for i := range sl.cdf {
			sl.cdf[i] = p
			p *= ratio
		}
	}

	return sl, nil
}

// randomLevel draws a promotion height in [0, levels-1] from the geometric
// distribution realized by binary-searching a uniform draw against the
// precomputed CDF table [ratio^1, ratio^2, ..., ratio^(levels-1)].
func (sl *SkipList) randomLevel() int {
	if sl.forceLevel != nil {
		return sl.forceLevel()
	}
	if len(sl.cdf) == 0 {
		return 0
	}
	u := sl.rng.Float64()
	return sort.Search(len(sl.cdf), func(i int) bool { return sl.cdf[i] <= u })
}

// Capacity returns the maximum number of simultaneous live indices.
func (sl *SkipList) Capacity() uint32 { return sl.capacity }

// Size returns the number of live indices, the bottom-layer count.
func (sl *SkipList) Size() int { return sl.sizes[0] }

// CurrentLevel returns the highest level that currently holds any index.
// Remove lowers it one level at a time as the topmost levels empty.
func (sl *SkipList) CurrentLevel() int { return sl.currentLevel }

// Head returns the first (smallest) live index, or (Nil, false) if empty.
func (sl *SkipList) Head() (uint32, bool) {
	if sl.heads[0] == Nil {
		return Nil, false
	}
	return sl.heads[0], true
}

// Tail returns the last (largest) live index, or (Nil, false) if empty.
func (sl *SkipList) Tail() (uint32, bool) {
	if sl.tails[0] == Nil {
		return Nil, false
	}
	return sl.tails[0], true
}

// Next returns the bottom-layer successor of index, or (Nil, false) if
// index is the tail or out of range. Diagnostic accessor; index must be a
// currently-live key, otherwise the result is meaningless (a removed index
// keeps its old link cells).
func (sl *SkipList) Next(index uint32) (uint32, bool) {
	if index >= sl.capacity {
		return Nil, false
	}
	n := sl.next[0][index]
	return n, n != Nil
}

// Prev returns the bottom-layer predecessor of index, or (Nil, false) if
// index is the head or out of range. As with Next, index must be a
// currently-live key, otherwise the result is meaningless.
func (sl *SkipList) Prev(index uint32) (uint32, bool) {
	if index >= sl.capacity {
		return Nil, false
	}
	p := sl.prev[index]
	return p, p != Nil
}

func (sl *SkipList) checkRange(index uint32) error {
	if index >= sl.capacity {
		return fmt.Errorf("%w: %d (capacity %d)", ErrIndexOutOfRange, index, sl.capacity)
	}
	return nil
}
