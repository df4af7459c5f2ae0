// Package wasmtest assembles small core wasm modules for tests.
package wasmtest

import "bytes"

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
	module string
	name   string
	typ    int
}

type function struct {
	export string
	locals []ValType
	body   []byte
	typ    int
}

type global struct {
	export string
	init   int32
	typ    ValType
	mut    bool
}

// Builder accumulates a module. Imports must be added before functions so
// that function indices stay stable.
type Builder struct {
	memExport string
	types     []funcType
	imports   []importFunc
	funcs     []function
	globals   []global
	memPages  uint32
	hasMemory bool
}

// New returns an empty module builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) addType(params, results []ValType) int {
	b.types = append(b.types, funcType{params: params, results: results})
	return len(b.types) - 1
}

// Import adds an imported function and returns its index.
func (b *Builder) Import(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	b.imports = append(b.imports, importFunc{module: module, name: name, typ: b.addType(params, results)})
	return uint32(len(b.imports) - 1)
}

// Func adds a function, exported under export when non-empty, and returns
// its index. body must end with End.
func (b *Builder) Func(export string, params, results, locals []ValType, body ...[]byte) uint32 {
	b.funcs = append(b.funcs, function{
		export: export,
		locals: locals,
		body:   bytes.Join(body, nil),
		typ:    b.addType(params, results),
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Global adds an i32 global and returns its index.
func (b *Builder) Global(export string, init int32, mutable bool) uint32 {
	b.globals = append(b.globals, global{export: export, init: init, typ: I32, mut: mutable})
	return uint32(len(b.globals) - 1)
}

// Memory declares the module's memory, exported under export when non-empty.
func (b *Builder) Memory(pages uint32, export string) {
	b.hasMemory = true
	b.memPages = pages
	b.memExport = export
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	section(&out, 1, len(b.types), func(w *bytes.Buffer) {
		for _, t := range b.types {
			w.WriteByte(0x60)
			valTypes(w, t.params)
			valTypes(w, t.results)
		}
	})
	section(&out, 2, len(b.imports), func(w *bytes.Buffer) {
		for _, imp := range b.imports {
			name(w, imp.module)
			name(w, imp.name)
			w.WriteByte(0x00)
			uleb(w, uint64(imp.typ))
		}
	})
	section(&out, 3, len(b.funcs), func(w *bytes.Buffer) {
		for _, f := range b.funcs {
			uleb(w, uint64(f.typ))
		}
	})
	if b.hasMemory {
		section(&out, 5, 1, func(w *bytes.Buffer) {
			w.WriteByte(0x00)
			uleb(w, uint64(b.memPages))
		})
	}
	section(&out, 6, len(b.globals), func(w *bytes.Buffer) {
		for _, g := range b.globals {
			w.WriteByte(byte(g.typ))
			if g.mut {
				w.WriteByte(0x01)
			} else {
				w.WriteByte(0x00)
			}
			w.Write(I32Const(g.init))
			w.Write(End())
		}
	})

	var exports [][]byte
	for i, f := range b.funcs {
		if f.export != "" {
			exports = append(exports, export(f.export, 0x00, uint32(len(b.imports)+i)))
		}
	}
	if b.hasMemory && b.memExport != "" {
		exports = append(exports, export(b.memExport, 0x02, 0))
	}
	for i, g := range b.globals {
		if g.export != "" {
			exports = append(exports, export(g.export, 0x03, uint32(i)))
		}
	}
	section(&out, 7, len(exports), func(w *bytes.Buffer) {
		for _, e := range exports {
			w.Write(e)
		}
	})

	section(&out, 10, len(b.funcs), func(w *bytes.Buffer) {
		for _, f := range b.funcs {
			var code bytes.Buffer
			uleb(&code, uint64(len(f.locals)))
			for _, l := range f.locals {
				uleb(&code, 1)
				code.WriteByte(byte(l))
			}
			code.Write(f.body)
			uleb(w, uint64(code.Len()))
			w.Write(code.Bytes())
		}
	})
	return out.Bytes()
}

func section(out *bytes.Buffer, id byte, count int, fill func(*bytes.Buffer)) {
	if count == 0 {
		return
	}
	var body bytes.Buffer
	uleb(&body, uint64(count))
	fill(&body)
	out.WriteByte(id)
	uleb(out, uint64(body.Len()))
	out.Write(body.Bytes())
}

func export(n string, kind byte, idx uint32) []byte {
	var w bytes.Buffer
	name(&w, n)
	w.WriteByte(kind)
	uleb(&w, uint64(idx))
	return w.Bytes()
}

func name(w *bytes.Buffer, s string) {
	uleb(w, uint64(len(s)))
	w.WriteString(s)
}

func valTypes(w *bytes.Buffer, ts []ValType) {
	uleb(w, uint64(len(ts)))
	for _, t := range ts {
		w.WriteByte(byte(t))
	}
}

func uleb(w *bytes.Buffer, v uint64) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		w.WriteByte(c)
		if v == 0 {
			return
		}
	}
}

func sleb(w *bytes.Buffer, v int64) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		w.WriteByte(c)
		if done {
			return
		}
	}
}
