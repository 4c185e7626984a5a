package host

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	c2pabridge "github.com/wippyai/c2pa-bridge"
	"github.com/wippyai/c2pa-bridge/bridge"
	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/lasterror"
	"github.com/wippyai/c2pa-bridge/provenance"
	"github.com/wippyai/c2pa-bridge/resource"
)

// Host serves the bridge API to WebAssembly guests as the "c2pa" import
// module. Every guest instance that calls in gets its own handle table and
// last-error slot; handles from one guest mean nothing to another.
type Host struct {
	engine provenance.Engine
	log    *zap.Logger

	mu     sync.Mutex
	guests map[api.Module]*guest
}

// Option configures a Host.
type Option func(*Host)

// WithEngine replaces the default local engine.
func WithEngine(e provenance.Engine) Option {
	return func(h *Host) { h.engine = e }
}

// WithLogger sets the logger used by the host and its guests.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.log = l }
}

// New creates a host. Call Instantiate to register it with a runtime.
func New(opts ...Option) *Host {
	h := &Host{guests: make(map[api.Module]*guest)}
	for _, opt := range opts {
		opt(h)
	}
	if h.engine == nil {
		h.engine = provenance.NewLocalEngine()
	}
	if h.log == nil {
		h.log = Logger()
	}
	return h
}

// Instantiate defines the "c2pa" host module in r. It must run before any
// guest importing it is instantiated.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	b := r.NewHostModuleBuilder(ModuleName)
	for _, f := range functions {
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(h.wrap(f), f.sig.flatParams(), f.sig.flatResults()).
			Export(f.name)
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseHost, errors.KindFFI).
			Op("instantiate").
			Cause(err).
			Build()
	}
	return mod, nil
}

func (h *Host) wrap(f hostFunc) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		g := h.guest(mod)
		prev := g.alloc.setContext(ctx)
		defer g.alloc.setContext(prev)
		f.call(g, &args{stack: stack})
	}
}

func (h *Host) guest(mod api.Module) *guest {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok := h.guests[mod]; ok {
		return g
	}
	g := newGuest(mod, h.engine, h.log.With(zap.String("guest", mod.Name())))
	h.guests[mod] = g
	return g
}

// Live returns the number of handles a guest holds.
func (h *Host) Live(mod api.Module) int {
	h.mu.Lock()
	g, ok := h.guests[mod]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return g.api.Live()
}

// CloseGuest releases everything a guest still holds. Call it before
// closing the guest module so stream release callbacks can still run.
func (h *Host) CloseGuest(mod api.Module) error {
	h.mu.Lock()
	g, ok := h.guests[mod]
	delete(h.guests, mod)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return g.close()
}

// Close releases the state of every guest.
func (h *Host) Close() error {
	h.mu.Lock()
	guests := h.guests
	h.guests = make(map[api.Module]*guest)
	h.mu.Unlock()

	var errs []error
	for _, g := range guests {
		if err := g.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

type lentKind uint8

const (
	lentText lentKind = iota
	lentBytes
)

type lent struct {
	size uint32
	kind lentKind
}

// guest is the host-side state of one guest instance.
type guest struct {
	mod   api.Module
	mem   c2pabridge.GuestMemory
	alloc *allocator
	api   *bridge.API
	log   *zap.Logger

	mu      sync.Mutex
	exports map[string]api.Function
	lent    map[uint32]lent
}

func newGuest(mod api.Module, engine provenance.Engine, log *zap.Logger) *guest {
	g := &guest{
		mod: mod,
		mem: &Memory{mem: mod.Memory()},
		api: bridge.New(
			bridge.WithEngine(engine),
			bridge.WithChannel(&lasterror.Channel{}),
			bridge.WithScope(guestScope),
			bridge.WithLogger(log),
		),
		log:     log,
		exports: make(map[string]api.Function),
		lent:    make(map[uint32]lent),
	}
	g.alloc = &allocator{}
	if fn, err := g.export(CabiRealloc); err == nil {
		g.alloc.fn = fn
	}
	return g
}

// A guest instance runs one call at a time, so it is a single scope.
func guestScope() lasterror.Scope { return 1 }

// export resolves a guest export and checks it against its descriptor.
func (g *guest) export(name string) (api.Function, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fn, ok := g.exports[name]; ok {
		return fn, nil
	}
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.FFI(errors.PhaseHost, name, "guest does not export "+name)
	}
	if sig, ok := dispatchers[name]; ok && !sig.matches(fn.Definition()) {
		g.log.Error("guest export has the wrong signature",
			zap.String("export", name),
			zap.Any("params", fn.Definition().ParamTypes()),
			zap.Any("results", fn.Definition().ResultTypes()))
		return nil, errors.FFI(errors.PhaseHost, name, "guest export "+name+" has the wrong signature")
	}
	g.exports[name] = fn
	return fn, nil
}

// dispatch calls a guest callback dispatcher and returns its i64 result.
// Any failure to reach the guest is reported as -1.
func (g *guest) dispatch(name string, params ...uint64) int64 {
	fn, err := g.export(name)
	if err != nil {
		g.log.Warn("guest callback unavailable", zap.String("export", name), zap.Error(err))
		return -1
	}
	results, err := fn.Call(g.alloc.context(), params...)
	if err != nil {
		g.log.Warn("guest callback trapped", zap.String("export", name), zap.Error(err))
		return -1
	}
	if len(results) == 0 {
		return 0
	}
	return int64(results[0])
}

// fault records an ABI violation as the guest's last error.
func (g *guest) fault(op string, err error) {
	g.log.Warn("guest ABI fault", zap.String("op", op), zap.Error(err))
	g.api.Record(op, err)
}

func (g *guest) str(op string, ptr, n uint32) (string, bool) {
	s, err := g.mem.String(ptr, n)
	if err != nil {
		g.fault(op, err)
		return "", false
	}
	return s, true
}

func (g *guest) bytes(op string, ptr, n uint32) ([]byte, bool) {
	b, err := g.mem.Bytes(ptr, n)
	if err != nil {
		g.fault(op, err)
		return nil, false
	}
	return b, true
}

// loan reads the handle stored at slot, runs fn with it and writes it back
// to the slot on every path. It reports false when the slot itself could
// not be used; fn's own outcome is the caller's business.
func (g *guest) loan(op string, slot uint32, fn func(h resource.Handle)) bool {
	if slot == 0 {
		g.api.Record(op, errors.NilHandle(errors.PhaseHost, op))
		return false
	}
	raw, err := g.mem.ReadU32(slot)
	if err != nil {
		g.fault(op, err)
		return false
	}
	fn(resource.Handle(raw))
	if err := g.mem.WriteU32(slot, raw); err != nil {
		g.fault(op, err)
		return false
	}
	return true
}

// lend copies data into guest memory the guest must hand back through the
// matching release function.
func (g *guest) lend(op string, data []byte, kind lentKind) (uint32, bool) {
	size := uint32(len(data))
	if size == 0 {
		size = 1
	}
	ptr, err := g.alloc.Alloc(size, 1)
	if err != nil {
		g.fault(op, err)
		return 0, false
	}
	if err := g.mem.Write(ptr, data); err != nil {
		g.alloc.Free(ptr, size, 1)
		g.fault(op, err)
		return 0, false
	}
	g.mu.Lock()
	g.lent[ptr] = lent{size: size, kind: kind}
	g.mu.Unlock()
	return ptr, true
}

// text lends s as a NUL-terminated string, or returns 0 when ok is false.
func (g *guest) text(op, s string, ok bool) uint32 {
	if !ok {
		return 0
	}
	ptr, ok := g.lend(op, append([]byte(s), 0), lentText)
	if !ok {
		return 0
	}
	return ptr
}

// release frees memory lent by lend. A null pointer is a no-op; anything
// else the host did not lend is rejected.
func (g *guest) release(op string, ptr uint32, kind lentKind) int32 {
	if ptr == 0 {
		return bridge.OK
	}
	g.mu.Lock()
	l, ok := g.lent[ptr]
	if ok && l.kind == kind {
		delete(g.lent, ptr)
	}
	g.mu.Unlock()
	if !ok || l.kind != kind {
		g.api.Record(op, errors.New(errors.PhaseHost, errors.KindFFI).
			Op(op).
			Value(ptr).
			Detail("pointer %#x was not lent by the host", ptr).
			Build())
		return bridge.Failed
	}
	g.alloc.Free(ptr, l.size, 1)
	return bridge.OK
}

func (g *guest) close() error {
	g.mu.Lock()
	n := len(g.lent)
	g.mu.Unlock()
	if n > 0 {
		g.log.Warn("guest did not release lent buffers", zap.Int("count", n))
	}
	return g.api.Close()
}
