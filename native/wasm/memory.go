package wasm

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/cxxbridge/errors"
)

const pageSize = 64 << 10

// Memory adapts a wazero memory to cxxbridge.Memory.
type Memory struct {
	mem api.Memory
}

func oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseMarshal, offset, length)
}

// Size returns the current size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a view of length bytes at offset.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, oob(offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return oob(offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, oob(offset, 1)
	}
	return v, nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, oob(offset, 2)
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, oob(offset, 4)
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, oob(offset, 8)
	}
	return v, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return oob(offset, 1)
	}
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return oob(offset, 2)
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return oob(offset, 4)
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return oob(offset, 8)
	}
	return nil
}

// grow extends memory so that at least need bytes are addressable.
func (m *Memory) grow(need uint32) (uint32, bool) {
	size := m.mem.Size()
	if need <= size {
		return size, true
	}
	pages := (uint64(need) - uint64(size) + pageSize - 1) / pageSize
	if _, ok := m.mem.Grow(uint32(pages)); !ok {
		return size, false
	}
	return m.mem.Size(), true
}
