// Package buffer holds the fixed-capacity value buffers backing each characteristic.
//
// The Store is not safe for concurrent use; the service serialises access to it.
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/srg/mbitmore/internal/characteristic"
)

// SharedSlots is the number of int16 slots packed into the shared-data buffer.
const SharedSlots = 4

const sharedSlotWidth = 2

var (
	// ErrIndexOutOfRange is returned for an index outside the characteristic enumeration.
	ErrIndexOutOfRange = errors.New("characteristic index out of range")

	// ErrSlotOutOfRange is returned for a shared-data slot outside 0..SharedSlots-1.
	ErrSlotOutOfRange = errors.New("shared data slot out of range")
)

type slot struct {
	data     [characteristic.MaxLength]byte
	capacity int
	length   int
	variable bool
}

// Store owns one zero-initialised buffer per characteristic.
type Store struct {
	slots [characteristic.Count]slot
}

// NewStore allocates the buffers described by t.
func NewStore(t *characteristic.Table) *Store {
	s := &Store{}
	for i := characteristic.Index(0); i < characteristic.Count; i++ {
		d := t.At(i)
		sl := &s.slots[i]
		sl.capacity = d.Capacity
		sl.variable = d.Variable
		if !d.Variable {
			sl.length = d.Capacity
		}
	}
	return s
}

// Capacity returns the fixed capacity of buffer i, or 0 for an invalid index.
func (s *Store) Capacity(i characteristic.Index) int {
	if !i.Valid() {
		return 0
	}
	return s.slots[i].capacity
}

// Write copies min(len(src), Capacity(i)) bytes to the start of buffer i and
// returns the number of bytes copied. Oversize input is truncated.
// Bytes beyond the copied range keep their previous value.
func (s *Store) Write(i characteristic.Index, src []byte) (int, error) {
	if !i.Valid() {
		return 0, fmt.Errorf("write %s: %w", i, ErrIndexOutOfRange)
	}
	sl := &s.slots[i]
	n := copy(sl.data[:sl.capacity], src)
	if sl.variable {
		sl.length = n
	}
	return n, nil
}

// Read returns the full-capacity view of buffer i.
// The view aliases the store and is valid until the next mutation of i.
func (s *Store) Read(i characteristic.Index) ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("read %s: %w", i, ErrIndexOutOfRange)
	}
	sl := &s.slots[i]
	return sl.data[:sl.capacity], nil
}

// Payload returns the bytes that go on the wire for i: the full buffer for
// fixed channels, the last written length for variable ones.
// Same aliasing rules as Read.
func (s *Store) Payload(i characteristic.Index) ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("payload %s: %w", i, ErrIndexOutOfRange)
	}
	sl := &s.slots[i]
	return sl.data[:sl.length], nil
}

// SetSharedSlot stores v little-endian at byte offset 2*k of the shared-data buffer.
func (s *Store) SetSharedSlot(k int, v int16) error {
	if k < 0 || k >= SharedSlots {
		return fmt.Errorf("set slot %d: %w", k, ErrSlotOutOfRange)
	}
	off := k * sharedSlotWidth
	binary.LittleEndian.PutUint16(s.slots[characteristic.SharedData].data[off:off+sharedSlotWidth], uint16(v))
	return nil
}

// SharedSlot reads slot k of the shared-data buffer.
func (s *Store) SharedSlot(k int) (int16, error) {
	if k < 0 || k >= SharedSlots {
		return 0, fmt.Errorf("get slot %d: %w", k, ErrSlotOutOfRange)
	}
	off := k * sharedSlotWidth
	return int16(binary.LittleEndian.Uint16(s.slots[characteristic.SharedData].data[off : off+sharedSlotWidth])), nil
}

// SharedSlots decodes every shared-data slot.
func (s *Store) SharedSlots() [SharedSlots]int16 {
	var out [SharedSlots]int16
	for k := range out {
		out[k], _ = s.SharedSlot(k)
	}
	return out
}

// Reset zeroes every buffer and variable payload length.
func (s *Store) Reset() {
	for i := range s.slots {
		sl := &s.slots[i]
		sl.data = [characteristic.MaxLength]byte{}
		if sl.variable {
			sl.length = 0
		}
	}
}
