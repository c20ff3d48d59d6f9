// Package ringbuf provides the fixed-capacity, append-indexed value store
// that pairs with a flatskip index. Append hands back the slot id the value
// landed in; that id is exactly the integer key a flatskip.SkipList orders.
// When the buffer is full, Append overwrites the oldest slot and reuses its
// id; the caller must remove the stale id from any skip lists before
// re-inserting it, because the index structure cannot detect slot reuse.
//
// Slots can live in an ordinary Go slice or, via NewMemoryMapped, in an
// anonymous mmap() region, for workloads where the value array is shared
// with code that expects raw memory.
//
// Like the skip list it feeds, a RingBuffer is not safe for concurrent use;
// callers serialize access themselves.
package ringbuf

import (
	"errors"
	"fmt"
	"iter"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidCapacity is returned by the constructors when capacity is zero.
	ErrInvalidCapacity = errors.New("ringbuf: capacity must be greater than zero")
	// ErrIndexOutOfRange is wrapped by At when given a slot id >= capacity.
	ErrIndexOutOfRange = errors.New("ringbuf: index out of range")
	// ErrUnsizedType is returned by NewMemoryMapped for zero-sized element types.
	ErrUnsizedType = errors.New("ringbuf: memory-mapped buffers need a non-zero-sized element type")
)

// RingBuffer is a fixed-capacity circular value store addressed by slot id.
type RingBuffer[T any] struct {
	data  []T
	mmap  []byte // non-nil when data points into an anonymous mapping
	start uint32 // oldest live slot
	count uint32
}

// New creates a RingBuffer with room for capacity values, backed by an
// ordinary Go slice. All slot storage is allocated here; Append never
// allocates.
func New[T any](capacity uint32) (*RingBuffer[T], error) {
	if capacity == 0 {
		return nil, ErrInvalidCapacity
	}
	return &RingBuffer[T]{data: make([]T, capacity)}, nil
}

// NewMemoryMapped creates a RingBuffer whose slots live in an anonymous
// private mmap() region instead of a Go slice. The region is reinterpreted
// as a []T, so values written through Append are visible to any code that
// reads the raw mapping. Callers must Close the buffer to release the
// mapping; the garbage collector will not.
func NewMemoryMapped[T any](capacity uint32) (*RingBuffer[T], error) {
	if capacity == 0 {
		return nil, ErrInvalidCapacity
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil, ErrUnsizedType
	}

	mem, err := unix.Mmap(-1, 0, elemSize*int(capacity),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("ringbuf: mmap: %w", err)
	}

	return &RingBuffer[T]{
		data: unsafe.Slice((*T)(unsafe.Pointer(&mem[0])), capacity),
		mmap: mem,
	}, nil
}

// Close releases the underlying mmap() region, if any. After Close the
// buffer must not be used. Slice-backed buffers need no Close; calling it
// is a no-op.
func (rb *RingBuffer[T]) Close() error {
	if rb.mmap == nil {
		return nil
	}
	mem := rb.mmap
	rb.mmap = nil
	rb.data = nil
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("ringbuf: munmap: %w", err)
	}
	return nil
}

// Append stores value in the next slot and returns its id, the integer key
// to feed an index structure. When the buffer is already full it overwrites
// the oldest slot and returns evicted=true; the returned id is then a
// reused one. A comparator that dereferences the buffer sees the new value
// as soon as Append returns, so a full buffer's Oldest slot must be retired
// from any skip lists holding it before Append, not after.
func (rb *RingBuffer[T]) Append(value T) (index uint32, evicted bool) {
	capacity := uint32(len(rb.data))
	if rb.count < capacity {
		index = (rb.start + rb.count) % capacity
		rb.count++
	} else {
		index = rb.start
		rb.start = (rb.start + 1) % capacity
		evicted = true
	}
	rb.data[index] = value
	return index, evicted
}

// At returns a pointer to the value in the given slot. The pointer stays
// valid until the slot is overwritten by a wrapping Append. Reading a slot
// that has never been appended to returns the zero value, not an error;
// only out-of-range ids fail.
func (rb *RingBuffer[T]) At(index uint32) (*T, error) {
	if index >= uint32(len(rb.data)) {
		return nil, fmt.Errorf("%w: %d (capacity %d)", ErrIndexOutOfRange, index, len(rb.data))
	}
	return &rb.data[index], nil
}

// Capacity returns the fixed number of slots.
func (rb *RingBuffer[T]) Capacity() uint32 { return uint32(len(rb.data)) }

// Size returns the number of live values, at most Capacity.
func (rb *RingBuffer[T]) Size() int { return int(rb.count) }

// Full reports whether the next Append will overwrite the oldest slot.
func (rb *RingBuffer[T]) Full() bool { return rb.count == uint32(len(rb.data)) }

// Oldest returns the slot id the next wrapping Append will reclaim, or
// (0, false) if the buffer is empty.
func (rb *RingBuffer[T]) Oldest() (uint32, bool) {
	if rb.count == 0 {
		return 0, false
	}
	return rb.start, true
}

// All returns a lazy sequence of (slot id, value pointer) pairs in logical
// insertion order, starting at the oldest live slot and wrapping around the
// end of the slot array when the buffer has filled. Iteration must not be
// interleaved with Append.
func (rb *RingBuffer[T]) All() iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		capacity := uint32(len(rb.data))
		for i := uint32(0); i < rb.count; i++ {
			slot := (rb.start + i) % capacity
			if !yield(slot, &rb.data[slot]) {
				return
			}
		}
	}
}

// Snapshot creates an ordered list of byte slices suitable for Pwritev(),
// one per slot id yielded by order, typically a flatskip.SkipList's All()
// sequence, so the write lands on disk in comparator order rather than
// arrival order. The serializer converts each value to its byte
// representation; the returned slices must remain valid until the write
// completes. Out-of-range ids in order are skipped, and so are values whose
// serialized form is empty.
func (rb *RingBuffer[T]) Snapshot(order iter.Seq[uint32], getBytes func(*T) []byte) [][]byte {
	buffers := make([][]byte, 0, rb.count)
	for index := range order {
		if index >= uint32(len(rb.data)) {
			continue
		}
		data := getBytes(&rb.data[index])
		if len(data) > 0 {
			buffers = append(buffers, data)
		}
	}
	return buffers
}

// SnapshotRaw is Snapshot with the raw memory of each value as its byte
// representation, sized by unsafe.Sizeof. Useful for writing fixed-layout
// records directly as binary data.
func (rb *RingBuffer[T]) SnapshotRaw(order iter.Seq[uint32]) [][]byte {
	var zero T
	size := int(unsafe.Sizeof(zero))
	return rb.Snapshot(order, func(value *T) []byte {
		return unsafe.Slice((*byte)(unsafe.Pointer(value)), size)
	})
}

// iovBatch caps the vectors handed to a single Pwritev call, staying under
// the kernel's IOV_MAX.
const iovBatch = 1024

// WriteSnapshot writes the raw bytes of every slot yielded by order to the
// file at path, creating or truncating it, in the order yielded. Pairing it
// with a skip list's iteration persists the buffer's values sorted rather
// than in arrival order. Returns the total byte count written.
func (rb *RingBuffer[T]) WriteSnapshot(path string, order iter.Seq[uint32]) (int, error) {
	buffers := rb.SnapshotRaw(order)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("ringbuf: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	total := 0
	for len(buffers) > 0 {
		batch := buffers
		if len(batch) > iovBatch {
			batch = batch[:iovBatch]
		}
		n, err := unix.Pwritev(fd, batch, int64(total))
		if err != nil {
			return total, fmt.Errorf("ringbuf: pwritev %s: %w", path, err)
		}
		total += n
		buffers = buffers[len(batch):]
	}
	return total, nil
}
