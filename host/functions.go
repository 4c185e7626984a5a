package host

import (
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/c2pa-bridge/bridge"
	"github.com/wippyai/c2pa-bridge/resource"
	"github.com/wippyai/c2pa-bridge/signer"
)

// hostFunc is one export of the "c2pa" module.
type hostFunc struct {
	name string
	sig  signature
	call func(g *guest, a *args)
}

// args walks the flattened parameters on a wazero stack and writes the
// result back to slot 0.
type args struct {
	stack []uint64
	i     int
}

func (a *args) u32() uint32 {
	v := uint32(a.stack[a.i])
	a.i++
	return v
}

func (a *args) i32() int32 {
	v := api.DecodeI32(a.stack[a.i])
	a.i++
	return v
}

func (a *args) handle() resource.Handle { return resource.Handle(a.u32()) }

func (a *args) returnU32(v uint32) { a.stack[0] = uint64(v) }
func (a *args) returnHandle(h resource.Handle) { a.stack[0] = uint64(h) }

func (a *args) returnStatus(v int) { a.stack[0] = api.EncodeI32(int32(v)) }

func params(types ...wit.Type) []wit.Type { return types }

var functions = []hostFunc{
	{
		name: "version",
		sig:  signature{results: params(ptrT)},
		call: func(g *guest, a *args) {
			a.returnU32(g.text("version", g.api.Version(), true))
		},
	},
	{
		name: "supported_extensions",
		sig:  signature{results: params(ptrT)},
		call: func(g *guest, a *args) {
			a.returnU32(g.text("supported_extensions", g.api.SupportedExtensions(), true))
		},
	},
	{
		name: "error",
		sig:  signature{results: params(ptrT)},
		call: func(g *guest, a *args) {
			msg := g.api.Error()
			a.returnU32(g.text("error", msg, msg != ""))
		},
	},
	{
		name: "error_json",
		sig:  signature{results: params(ptrT)},
		call: func(g *guest, a *args) {
			msg := g.api.ErrorJSON()
			a.returnU32(g.text("error_json", msg, msg != ""))
		},
	},
	{
		name: "clear_error",
		sig:  signature{results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(g.api.ClearError())
		},
	},
	{
		name: "release_text",
		sig:  signature{params: params(ptrT), results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(int(g.release("release_text", a.u32(), lentText)))
		},
	},
	{
		name: "release_bytes",
		sig:  signature{params: params(ptrT), results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(int(g.release("release_bytes", a.u32(), lentBytes)))
		},
	},
	{
		name: "create_stream",
		sig:  signature{params: params(ptrT), results: params(handleT)},
		call: func(g *guest, a *args) {
			a.returnHandle(g.api.CreateStream(&guestStream{g: g, ctx: a.u32()}))
		},
	},
	{
		name: "release_stream",
		sig:  signature{params: params(handleT), results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(g.api.ReleaseStream(a.handle()))
		},
	},
	{
		name: "create_signer",
		sig:  signature{params: params(ptrT, textT, bytesT, textT, wit.S32{}), results: params(handleT)},
		call: func(g *guest, a *args) {
			const op = "create_signer"
			ctx := a.u32()
			algPtr, algLen := a.u32(), a.u32()
			certPtr, certLen := a.u32(), a.u32()
			tsaPtr, tsaLen := a.u32(), a.u32()
			reserve := a.i32()

			alg, ok := g.str(op, algPtr, algLen)
			if !ok {
				a.returnHandle(0)
				return
			}
			certs, ok := g.bytes(op, certPtr, certLen)
			if !ok {
				a.returnHandle(0)
				return
			}
			tsa, ok := g.str(op, tsaPtr, tsaLen)
			if !ok {
				a.returnHandle(0)
				return
			}
			a.returnHandle(g.api.CreateSigner(&guestSigner{g: g, ctx: ctx}, signer.Config{
				Algorithm:        alg,
				Certs:            certs,
				TimeAuthorityURL: tsa,
				ReserveSize:      int(reserve),
			}))
		},
	},
	{
		name: "release_signer",
		sig:  signature{params: params(handleT), results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(g.api.ReleaseSigner(a.handle()))
		},
	},
	{
		name: "verify_stream",
		sig:  signature{params: params(handleT), results: params(ptrT)},
		call: func(g *guest, a *args) {
			text, ok := g.api.VerifyStream(a.handle())
			a.returnU32(g.text("verify_stream", text, ok))
		},
	},
	{
		// Guests get the ingredient JSON only; nothing is written to the
		// host filesystem.
		name: "ingredient_from_stream",
		sig:  signature{params: params(textT, handleT), results: params(ptrT)},
		call: func(g *guest, a *args) {
			const op = "ingredient_from_stream"
			format, ok := g.str(op, a.u32(), a.u32())
			src := a.handle()
			if !ok {
				a.returnU32(0)
				return
			}
			text, ok := g.api.IngredientFromStream(format, src, "")
			a.returnU32(g.text(op, text, ok))
		},
	},
	{
		name: "manifest_reader_new",
		sig:  signature{results: params(handleT)},
		call: func(g *guest, a *args) {
			a.returnHandle(g.api.NewReader())
		},
	},
	{
		name: "manifest_reader_read",
		sig:  signature{params: params(ptrT, textT, handleT), results: params(ptrT)},
		call: func(g *guest, a *args) {
			const op = "manifest_reader_read"
			slot := a.u32()
			format, ok := g.str(op, a.u32(), a.u32())
			src := a.handle()
			if !ok {
				a.returnU32(0)
				return
			}
			var text string
			read := false
			loaned := g.loan(op, slot, func(h resource.Handle) {
				text, read = g.api.ReaderRead(h, format, src)
			})
			a.returnU32(g.text(op, text, loaned && read))
		},
	},
	{
		name: "manifest_reader_json",
		sig:  signature{params: params(ptrT), results: params(ptrT)},
		call: func(g *guest, a *args) {
			const op = "manifest_reader_json"
			var text string
			ok := false
			loaned := g.loan(op, a.u32(), func(h resource.Handle) {
				text, ok = g.api.ReaderJSON(h)
			})
			a.returnU32(g.text(op, text, loaned && ok))
		},
	},
	{
		name: "manifest_reader_resource",
		sig:  signature{params: params(ptrT, textT, textT, handleT), results: params(statusT)},
		call: func(g *guest, a *args) {
			const op = "manifest_reader_resource"
			slot := a.u32()
			manifest, ok1 := g.str(op, a.u32(), a.u32())
			id, ok2 := g.str(op, a.u32(), a.u32())
			out := a.handle()
			if !ok1 || !ok2 {
				a.returnStatus(bridge.Failed)
				return
			}
			status := bridge.Failed
			g.loan(op, slot, func(h resource.Handle) {
				status = g.api.ReaderResource(h, manifest, id, out)
			})
			a.returnStatus(status)
		},
	},
	{
		name: "release_manifest_reader",
		sig:  signature{params: params(handleT), results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(g.api.ReleaseReader(a.handle()))
		},
	},
	{
		name: "create_manifest_builder",
		sig:  signature{params: params(textT, textT), results: params(handleT)},
		call: func(g *guest, a *args) {
			const op = "create_manifest_builder"
			settings, ok1 := g.str(op, a.u32(), a.u32())
			spec, ok2 := g.str(op, a.u32(), a.u32())
			if !ok1 || !ok2 {
				a.returnHandle(0)
				return
			}
			a.returnHandle(g.api.CreateBuilder(settings, spec))
		},
	},
	{
		name: "manifest_builder_add_resource",
		sig:  signature{params: params(ptrT, textT, bytesT), results: params(statusT)},
		call: func(g *guest, a *args) {
			const op = "manifest_builder_add_resource"
			slot := a.u32()
			id, ok1 := g.str(op, a.u32(), a.u32())
			data, ok2 := g.bytes(op, a.u32(), a.u32())
			if !ok1 || !ok2 {
				a.returnStatus(bridge.Failed)
				return
			}
			status := bridge.Failed
			g.loan(op, slot, func(h resource.Handle) {
				status = g.api.BuilderAddResource(h, id, data)
			})
			a.returnStatus(status)
		},
	},
	{
		// The optional result slot receives (ptr, len) of the signed bytes,
		// released with release_bytes.
		name: "manifest_builder_sign",
		sig:  signature{params: params(ptrT, handleT, handleT, handleT, ptrT), results: params(statusT)},
		call: func(g *guest, a *args) {
			const op = "manifest_builder_sign"
			slot := a.u32()
			signerH, in, out := a.handle(), a.handle(), a.handle()
			result := a.u32()

			var signed []byte
			status := bridge.Failed
			if !g.loan(op, slot, func(h resource.Handle) {
				signed, status = g.api.BuilderSign(h, signerH, in, out)
			}) || status != bridge.OK {
				a.returnStatus(bridge.Failed)
				return
			}
			if result != 0 {
				ptr, ok := g.lend(op, signed, lentBytes)
				if !ok {
					a.returnStatus(bridge.Failed)
					return
				}
				if err := g.writePair(result, ptr, uint32(len(signed))); err != nil {
					g.release(op, ptr, lentBytes)
					g.fault(op, err)
					a.returnStatus(bridge.Failed)
					return
				}
			}
			a.returnStatus(bridge.OK)
		},
	},
	{
		name: "release_manifest_builder",
		sig:  signature{params: params(handleT), results: params(statusT)},
		call: func(g *guest, a *args) {
			a.returnStatus(g.api.ReleaseBuilder(a.handle()))
		},
	},
}

func (g *guest) writePair(at, ptr, n uint32) error {
	if err := g.mem.WriteU32(at, ptr); err != nil {
		return err
	}
	return g.mem.WriteU32(at+4, n)
}
