package host

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/c2pa-bridge/signer"
	"github.com/wippyai/c2pa-bridge/stream"
)

// import of the test guest. Every import is re-exported through a wrapper
// that forwards its parameters, so calls from Go arrive at the host with the
// guest as the caller.
type guestImport struct {
	module, name string
	export       string
	sig          []api.ValueType
	results      []api.ValueType
}

const (
	heapBase    = 64 << 10
	scratchBase = 1024
	memoryPages = 64
)

func uleb(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func sleb(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		buf.WriteByte(b)
		if done {
			return
		}
	}
}

func writeName(buf *bytes.Buffer, s string) {
	uleb(buf, uint64(len(s)))
	buf.WriteString(s)
}

func valueTypes(buf *bytes.Buffer, types []api.ValueType) {
	uleb(buf, uint64(len(types)))
	for _, t := range types {
		buf.WriteByte(t)
	}
}

func section(out *bytes.Buffer, id byte, body *bytes.Buffer) {
	out.WriteByte(id)
	uleb(out, uint64(body.Len()))
	out.Write(body.Bytes())
}

// buildGuest assembles a core module with a bump-allocating cabi_realloc,
// an exported memory and one forwarding export per import.
func buildGuest(imports []guestImport) []byte {
	n := uint64(len(imports))
	i32 := api.ValueTypeI32

	var types, imps, funcs, mem, globals, exports, code bytes.Buffer

	uleb(&types, n+1)
	for _, imp := range imports {
		types.WriteByte(0x60)
		valueTypes(&types, imp.sig)
		valueTypes(&types, imp.results)
	}
	types.WriteByte(0x60)
	valueTypes(&types, []api.ValueType{i32, i32, i32, i32})
	valueTypes(&types, []api.ValueType{i32})

	uleb(&imps, n)
	for i, imp := range imports {
		writeName(&imps, imp.module)
		writeName(&imps, imp.name)
		imps.WriteByte(0x00)
		uleb(&imps, uint64(i))
	}

	uleb(&funcs, n+1)
	for i := range imports {
		uleb(&funcs, uint64(i))
	}
	uleb(&funcs, n)

	mem.WriteByte(1)
	mem.WriteByte(0x00)
	uleb(&mem, memoryPages)

	globals.WriteByte(1)
	globals.WriteByte(i32)
	globals.WriteByte(0x01)
	globals.WriteByte(0x41)
	sleb(&globals, heapBase)
	globals.WriteByte(0x0b)

	uleb(&exports, n+2)
	for i, imp := range imports {
		writeName(&exports, imp.export)
		exports.WriteByte(0x00)
		uleb(&exports, n+uint64(i))
	}
	writeName(&exports, CabiRealloc)
	exports.WriteByte(0x00)
	uleb(&exports, 2*n)
	writeName(&exports, "memory")
	exports.WriteByte(0x02)
	uleb(&exports, 0)

	uleb(&code, n+1)
	for i, imp := range imports {
		var body bytes.Buffer
		body.WriteByte(0)
		for p := range imp.sig {
			body.WriteByte(0x20)
			uleb(&body, uint64(p))
		}
		body.WriteByte(0x10)
		uleb(&body, uint64(i))
		body.WriteByte(0x0b)
		uleb(&code, uint64(body.Len()))
		code.Write(body.Bytes())
	}
	realloc := []byte{
		0x00,       // no locals
		0x20, 0x03, // local.get new_size
		0x45,       // i32.eqz
		0x04, 0x7f, // if (result i32)
		0x41, 0x00, // i32.const 0
		0x05,       // else
		0x23, 0x00, // global.get heap
		0x23, 0x00, // global.get heap
		0x20, 0x03, // local.get new_size
		0x6a,       // i32.add
		0x24, 0x00, // global.set heap
		0x0b, // end
		0x0b, // end
	}
	uleb(&code, uint64(len(realloc)))
	code.Write(realloc)

	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	section(&out, 1, &types)
	section(&out, 2, &imps)
	section(&out, 3, &funcs)
	section(&out, 5, &mem)
	section(&out, 6, &globals)
	section(&out, 7, &exports)
	section(&out, 10, &code)
	return out.Bytes()
}

// testGuest is a guest instance whose callbacks are served from Go maps
// keyed by the context value the guest passes to create_stream and
// create_signer.
type testGuest struct {
	t    *testing.T
	ctx  context.Context
	host *Host
	r    wazero.Runtime
	mod  api.Module

	streams  map[uint32]*stream.Buffer
	signers  map[uint32]signer.Callback
	released []uint32
	scratch  uint32
}

func newTestGuest(t *testing.T, opts ...Option) *testGuest {
	t.Helper()
	ctx := context.Background()
	tg := &testGuest{
		t:       t,
		ctx:     ctx,
		host:    New(opts...),
		streams: make(map[uint32]*stream.Buffer),
		signers: make(map[uint32]signer.Callback),
		scratch: scratchBase,
	}

	r := wazero.NewRuntime(ctx)
	tg.r = r
	t.Cleanup(func() { r.Close(ctx) })

	if _, err := tg.host.Instantiate(ctx, r); err != nil {
		t.Fatal(err)
	}
	if _, err := tg.callbacks(r).Instantiate(ctx); err != nil {
		t.Fatal(err)
	}

	tg.mod = tg.instantiate("guest")
	t.Cleanup(func() { tg.host.Close() })
	return tg
}

// sibling instantiates a second guest in the same runtime, served by the
// same host and callback maps.
func (tg *testGuest) sibling(name string) *testGuest {
	other := *tg
	other.scratch = scratchBase
	other.mod = tg.instantiate(name)
	return &other
}

func (tg *testGuest) instantiate(name string) api.Module {
	tg.t.Helper()
	var imports []guestImport
	for _, f := range functions {
		imports = append(imports, guestImport{
			module:  ModuleName,
			name:    f.name,
			export:  "call_" + f.name,
			sig:     f.sig.flatParams(),
			results: f.sig.flatResults(),
		})
	}
	for _, d := range []string{StreamRead, StreamSeek, StreamWrite, StreamRelease, Sign} {
		sig := dispatchers[d]
		imports = append(imports, guestImport{
			module:  "test",
			name:    d,
			export:  d,
			sig:     sig.flatParams(),
			results: sig.flatResults(),
		})
	}

	mod, err := tg.r.InstantiateWithConfig(tg.ctx, buildGuest(imports), wazero.NewModuleConfig().WithName(name))
	if err != nil {
		tg.t.Fatal(err)
	}
	return mod
}

func (tg *testGuest) callbacks(r wazero.Runtime) wazero.HostModuleBuilder {
	b := r.NewHostModuleBuilder("test")
	export := func(name string, fn api.GoModuleFunc) {
		sig := dispatchers[name]
		b = b.NewFunctionBuilder().WithGoModuleFunction(fn, sig.flatParams(), sig.flatResults()).Export(name)
	}

	export(StreamRead, func(_ context.Context, mod api.Module, stack []uint64) {
		buf, ok := tg.streams[uint32(stack[0])]
		if !ok {
			stack[0] = api.EncodeI64(-1)
			return
		}
		tmp := make([]byte, uint32(stack[2]))
		n := buf.Read(tmp)
		if n > 0 && !mod.Memory().Write(uint32(stack[1]), tmp[:n]) {
			n = -1
		}
		stack[0] = api.EncodeI64(n)
	})
	export(StreamSeek, func(_ context.Context, _ api.Module, stack []uint64) {
		buf, ok := tg.streams[uint32(stack[0])]
		if !ok {
			stack[0] = api.EncodeI64(-1)
			return
		}
		stack[0] = api.EncodeI64(buf.Seek(int64(stack[1]), stream.SeekMode(api.DecodeI32(stack[2]))))
	})
	export(StreamWrite, func(_ context.Context, mod api.Module, stack []uint64) {
		buf, ok := tg.streams[uint32(stack[0])]
		if !ok {
			stack[0] = api.EncodeI64(-1)
			return
		}
		data, ok := mod.Memory().Read(uint32(stack[1]), uint32(stack[2]))
		if !ok {
			stack[0] = api.EncodeI64(-1)
			return
		}
		stack[0] = api.EncodeI64(buf.Write(data))
	})
	export(StreamRelease, func(_ context.Context, _ api.Module, stack []uint64) {
		tg.released = append(tg.released, uint32(stack[0]))
	})
	export(Sign, func(_ context.Context, mod api.Module, stack []uint64) {
		cb, ok := tg.signers[uint32(stack[0])]
		if !ok {
			stack[0] = api.EncodeI64(-1)
			return
		}
		data, ok := mod.Memory().Read(uint32(stack[1]), uint32(stack[2]))
		if !ok {
			stack[0] = api.EncodeI64(-1)
			return
		}
		sig := make([]byte, uint32(stack[4]))
		n := cb.Sign(bytes.Clone(data), sig)
		if n > 0 && n <= int64(len(sig)) && !mod.Memory().Write(uint32(stack[3]), sig[:n]) {
			n = -1
		}
		stack[0] = api.EncodeI64(n)
	})
	return b
}

// call invokes host function name through the guest's forwarding export.
func (tg *testGuest) call(name string, params ...uint64) uint64 {
	tg.t.Helper()
	fn := tg.mod.ExportedFunction("call_" + name)
	if fn == nil {
		tg.t.Fatalf("no export for %s", name)
	}
	res, err := fn.Call(tg.ctx, params...)
	if err != nil {
		tg.t.Fatalf("%s: %v", name, err)
	}
	return res[0]
}

func (tg *testGuest) status(name string, params ...uint64) int32 {
	tg.t.Helper()
	return api.DecodeI32(tg.call(name, params...))
}

// put copies data into the scratch area below the guest heap and returns
// its (ptr, len) pair.
func (tg *testGuest) put(data []byte) (uint64, uint64) {
	tg.t.Helper()
	ptr := tg.scratch
	if ptr+uint32(len(data)) > heapBase {
		tg.t.Fatal("scratch area exhausted")
	}
	if !tg.mod.Memory().Write(ptr, data) {
		tg.t.Fatal("scratch write out of bounds")
	}
	tg.scratch += uint32(len(data)) + 8
	return uint64(ptr), uint64(len(data))
}

// slot stores a handle in guest memory and returns its address.
func (tg *testGuest) slot(h uint64) uint64 {
	tg.t.Helper()
	ptr, _ := tg.put(make([]byte, 4))
	tg.mod.Memory().WriteUint32Le(uint32(ptr), uint32(h))
	return ptr
}

func (tg *testGuest) slotValue(ptr uint64) uint32 {
	v, _ := tg.mod.Memory().ReadUint32Le(uint32(ptr))
	return v
}

// cstring reads a NUL-terminated string lent by the host.
func (tg *testGuest) cstring(ptr uint64) string {
	tg.t.Helper()
	var out []byte
	for p := uint32(ptr); ; p++ {
		b, ok := tg.mod.Memory().ReadByte(p)
		if !ok {
			tg.t.Fatalf("unterminated text at %#x", ptr)
		}
		if b == 0 {
			return string(out)
		}
		out = append(out, b)
	}
}

// text reads and releases a string returned by the host.
func (tg *testGuest) text(ptr uint64) string {
	tg.t.Helper()
	if ptr == 0 {
		tg.t.Fatalf("null text, last error: %s", tg.lastError())
	}
	s := tg.cstring(ptr)
	if st := tg.status("release_text", ptr); st != 0 {
		tg.t.Fatalf("release_text = %d", st)
	}
	return s
}

func (tg *testGuest) lastError() string {
	ptr := tg.call("error")
	if ptr == 0 {
		return ""
	}
	s := tg.cstring(ptr)
	tg.call("release_text", ptr)
	return s
}
