package wasmtest

import "bytes"

// Instruction encoders. Each returns the bytes of one instruction.

func End() []byte        { return []byte{0x0b} }
func Drop() []byte       { return []byte{0x1a} }
func I32Add() []byte     { return []byte{0x6a} }
func I32Sub() []byte     { return []byte{0x6b} }
func I32Mul() []byte     { return []byte{0x6c} }
func I32And() []byte     { return []byte{0x71} }
func I64Add() []byte     { return []byte{0x7c} }
func I32WrapI64() []byte { return []byte{0xa7} }
func I64ExtendI32S() []byte {
	return []byte{0xac}
}

func LocalGet(i uint32) []byte  { return indexed(0x20, i) }
func LocalSet(i uint32) []byte  { return indexed(0x21, i) }
func GlobalGet(i uint32) []byte { return indexed(0x23, i) }
func GlobalSet(i uint32) []byte { return indexed(0x24, i) }
func Call(i uint32) []byte      { return indexed(0x10, i) }

func I32Const(v int32) []byte {
	var w bytes.Buffer
	w.WriteByte(0x41)
	sleb(&w, int64(v))
	return w.Bytes()
}

func I64Const(v int64) []byte {
	var w bytes.Buffer
	w.WriteByte(0x42)
	sleb(&w, v)
	return w.Bytes()
}

// I32Load loads an i32 at the address on the stack plus offset.
func I32Load(offset uint32) []byte { return memarg(0x28, 2, offset) }

// I32Store stores an i32 (address, value on the stack) at offset.
func I32Store(offset uint32) []byte { return memarg(0x36, 2, offset) }

// I64Load loads an i64 at the address on the stack plus offset.
func I64Load(offset uint32) []byte { return memarg(0x29, 3, offset) }

// I64Store stores an i64 at the address on the stack plus offset.
func I64Store(offset uint32) []byte { return memarg(0x37, 3, offset) }

func indexed(op byte, i uint32) []byte {
	var w bytes.Buffer
	w.WriteByte(op)
	uleb(&w, uint64(i))
	return w.Bytes()
}

func memarg(op byte, align, offset uint32) []byte {
	var w bytes.Buffer
	w.WriteByte(op)
	uleb(&w, uint64(align))
	uleb(&w, uint64(offset))
	return w.Bytes()
}
