package native

import (
	"encoding/binary"

	"github.com/wippyai/cxxbridge/errors"
)

// LinearMemory is a little-endian byte-addressed memory backed by a Go slice.
// Slices returned by Read alias the memory.
type LinearMemory struct {
	data []byte
	max  uint32
}

// NewLinearMemory creates a zeroed memory of size bytes that may grow up to max.
// A max below size disables growth.
func NewLinearMemory(size, max uint32) *LinearMemory {
	if max < size {
		max = size
	}
	return &LinearMemory{data: make([]byte, size), max: max}
}

// Size returns the current size in bytes.
func (m *LinearMemory) Size() uint32 {
	return uint32(len(m.data))
}

// Grow extends the memory by delta bytes and returns the previous size.
func (m *LinearMemory) Grow(delta uint32) (uint32, bool) {
	old := uint32(len(m.data))
	if uint64(old)+uint64(delta) > uint64(m.max) {
		return old, false
	}
	m.data = append(m.data, make([]byte, delta)...)
	return old, true
}

// Bytes returns the whole backing slice.
func (m *LinearMemory) Bytes() []byte {
	return m.data
}

func (m *LinearMemory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseMarshal, offset, length)
	}
	return nil
}

// Read returns length bytes at offset.
func (m *LinearMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length : offset+length], nil
}

// Write copies data to offset.
func (m *LinearMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *LinearMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *LinearMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *LinearMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *LinearMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *LinearMemory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *LinearMemory) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *LinearMemory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *LinearMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}
