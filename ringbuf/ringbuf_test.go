package ringbuf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattkeenan/flatskip"
)

// int64Compare orders two ring slots by the int64 values stored in them.
func int64Compare(rb *RingBuffer[int64]) flatskip.CompareFunc {
	return func(a, b uint32) int {
		av, _ := rb.At(a)
		bv, _ := rb.At(b)
		switch {
		case *av < *bv:
			return -1
		case *av > *bv:
			return 1
		default:
			return 0
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New[int64](0); err != ErrInvalidCapacity {
		t.Errorf("expected ErrInvalidCapacity, got %v", err)
	}
	if _, err := NewMemoryMapped[int64](0); err != ErrInvalidCapacity {
		t.Errorf("expected ErrInvalidCapacity, got %v", err)
	}
	if _, err := NewMemoryMapped[struct{}](4); err != ErrUnsizedType {
		t.Errorf("expected ErrUnsizedType, got %v", err)
	}
}

func TestAppendAndAt(t *testing.T) {
	rb, err := New[int64](4)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range []int64{100, 200, 300} {
		index, evicted := rb.Append(v)
		if evicted {
			t.Errorf("append %d: unexpected eviction", i)
		}
		if index != uint32(i) {
			t.Errorf("append %d: expected slot %d, got %d", i, i, index)
		}
	}

	if rb.Size() != 3 {
		t.Errorf("expected size 3, got %d", rb.Size())
	}
	if rb.Full() {
		t.Error("buffer should not be full at 3/4")
	}

	v, err := rb.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if *v != 200 {
		t.Errorf("expected 200 at slot 1, got %d", *v)
	}

	if _, err := rb.At(4); err == nil {
		t.Error("expected error reading out-of-range slot")
	}
}

func TestWrapAroundReusesOldest(t *testing.T) {
	rb, err := New[int64](3)
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []int64{10, 20, 30} {
		rb.Append(v)
	}
	if !rb.Full() {
		t.Fatal("expected buffer full after three appends")
	}

	oldest, ok := rb.Oldest()
	if !ok || oldest != 0 {
		t.Fatalf("expected oldest slot 0, got (%d, %v)", oldest, ok)
	}

	index, evicted := rb.Append(40)
	if !evicted {
		t.Error("expected wrapping append to report eviction")
	}
	if index != 0 {
		t.Errorf("expected reused slot 0, got %d", index)
	}

	v, _ := rb.At(0)
	if *v != 40 {
		t.Errorf("expected 40 in reclaimed slot, got %d", *v)
	}
	if oldest, _ := rb.Oldest(); oldest != 1 {
		t.Errorf("expected oldest to advance to 1, got %d", oldest)
	}
}

func TestAllLogicalOrder(t *testing.T) {
	rb, err := New[int64](3)
	if err != nil {
		t.Fatal(err)
	}

	// Five appends into three slots: live values are 30, 40, 50 with the
	// logical start at the last slot of the slot array.
	for _, v := range []int64{10, 20, 30, 40, 50} {
		rb.Append(v)
	}

	var slots []uint32
	var values []int64
	for slot, v := range rb.All() {
		slots = append(slots, slot)
		values = append(values, *v)
	}

	wantSlots := []uint32{2, 0, 1}
	wantValues := []int64{30, 40, 50}
	if len(slots) != len(wantSlots) {
		t.Fatalf("expected %d live slots, got %d", len(wantSlots), len(slots))
	}
	for i := range wantSlots {
		if slots[i] != wantSlots[i] || values[i] != wantValues[i] {
			t.Errorf("position %d: got (slot %d, value %d), want (slot %d, value %d)",
				i, slots[i], values[i], wantSlots[i], wantValues[i])
		}
	}
}

func TestMemoryMapped(t *testing.T) {
	rb, err := NewMemoryMapped[int64](4)
	if err != nil {
		t.Fatal(err)
	}
	defer rb.Close()

	for _, v := range []int64{7, 8, 9} {
		rb.Append(v)
	}

	v, err := rb.At(2)
	if err != nil {
		t.Fatal(err)
	}
	if *v != 9 {
		t.Errorf("expected 9 at slot 2, got %d", *v)
	}

	count := 0
	for _, v := range rb.All() {
		if *v == 0 {
			t.Error("unexpected zero value in live slot")
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 live slots, got %d", count)
	}

	if err := rb.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	// Second close is a no-op.
	if err := rb.Close(); err != nil {
		t.Errorf("double close: %v", err)
	}
}

// TestWriteSnapshotSorted appends values in arrival order, indexes them with
// a skip list, and checks that WriteSnapshot driven by the skip list's
// iteration lands on disk in comparator order.
func TestWriteSnapshotSorted(t *testing.T) {
	rb, err := New[int64](8)
	if err != nil {
		t.Fatal(err)
	}
	sl, err := flatskip.New(8, 0.5, int64Compare(rb))
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []int64{30, 10, 50, 20, 40} {
		index, _ := rb.Append(v)
		if err := sl.Insert(index); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "snapshot.bin")
	n, err := rb.WriteSnapshot(path, sl.All())
	if err != nil {
		t.Fatal(err)
	}
	if n != 5*8 {
		t.Fatalf("expected %d bytes written, got %d", 5*8, n)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 5*8 {
		t.Fatalf("expected %d bytes on disk, got %d", 5*8, len(raw))
	}

	want := []int64{10, 20, 30, 40, 50}
	for i := range want {
		got := int64(binary.NativeEndian.Uint64(raw[i*8:]))
		if got != want[i] {
			t.Errorf("record %d: got %d, want %d", i, got, want[i])
		}
	}
}

// TestEvictionRetireReinsert exercises the slot-reuse contract: when a
// wrapping Append reclaims a slot, the caller removes the stale id from the
// skip list before re-inserting it under the new value.
func TestEvictionRetireReinsert(t *testing.T) {
	rb, err := New[int64](3)
	if err != nil {
		t.Fatal(err)
	}
	sl, err := flatskip.New(3, 0.5, int64Compare(rb))
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []int64{30, 10, 20} {
		index, evicted := rb.Append(v)
		if evicted {
			t.Fatal("unexpected eviction while filling")
		}
		if err := sl.Insert(index); err != nil {
			t.Fatal(err)
		}
	}

	// The next append overwrites slot 0 (value 30, the oldest arrival).
	// Retire the stale id first: once the slot is overwritten the
	// comparator sees the new value and can no longer locate the old
	// position.
	oldest, ok := rb.Oldest()
	if !ok {
		t.Fatal("expected a non-empty buffer")
	}
	if err := sl.Remove(oldest); err != nil {
		t.Fatal(err)
	}

	index, evicted := rb.Append(5)
	if !evicted {
		t.Fatal("expected eviction on wrapping append")
	}
	if index != oldest {
		t.Fatalf("expected append to reuse slot %d, got %d", oldest, index)
	}
	if err := sl.Insert(index); err != nil {
		t.Fatal(err)
	}

	var values []int64
	for idx := range sl.All() {
		v, err := rb.At(idx)
		if err != nil {
			t.Fatal(err)
		}
		values = append(values, *v)
	}

	want := []int64{5, 10, 20}
	if len(values) != len(want) {
		t.Fatalf("expected %v, got %v", want, values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, values)
		}
	}
}
