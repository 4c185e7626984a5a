package host

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/c2pa-bridge/errors"
)

const (
	ebadf     = 8          // POSIX EBADF error code
	invalidFD = 0xFFFFFFFF // -1 as uint32
)

// RunConfig configures a guest program run by Run.
type RunConfig struct {
	// Entry is the export to call. Empty selects "_start".
	Entry string
	// Args are the guest's argv, program name first.
	Args []string
	// Dir is mounted as the guest's root directory when set.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// MemoryLimitPages caps guest memory in 64KiB pages. Zero keeps the
	// runtime default.
	MemoryLimitPages uint32
}

// Run instantiates a WASI guest against the "c2pa" module in a fresh
// runtime and calls its entry point. Handles the guest leaks are released
// before the runtime closes.
func (h *Host) Run(ctx context.Context, wasm []byte, cfg RunConfig) error {
	rcfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)
	defer r.Close(ctx)

	if _, err := instantiateWASI(ctx, r); err != nil {
		return errors.New(errors.PhaseHost, errors.KindFFI).Op("wasi").Cause(err).Build()
	}
	if _, err := h.Instantiate(ctx, r); err != nil {
		return err
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return errors.New(errors.PhaseHost, errors.KindFFI).Op("compile").Cause(err).Build()
	}

	mcfg := wazero.NewModuleConfig().
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)
	if len(cfg.Args) > 0 {
		mcfg = mcfg.WithArgs(cfg.Args...)
	}
	if cfg.Stdin != nil {
		mcfg = mcfg.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		mcfg = mcfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mcfg = mcfg.WithStderr(cfg.Stderr)
	}
	if cfg.Dir != "" {
		mcfg = mcfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(cfg.Dir, "/"))
	}

	mod, err := r.InstantiateModule(ctx, compiled, mcfg)
	if err != nil {
		return errors.New(errors.PhaseHost, errors.KindFFI).Op("instantiate").Cause(err).Build()
	}
	defer func() {
		if err := h.CloseGuest(mod); err != nil {
			h.log.Warn("guest cleanup failed", zap.Error(err))
		}
	}()

	entry := cfg.Entry
	if entry == "" {
		entry = "_start"
	}
	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return errors.FFI(errors.PhaseHost, "run", "guest does not export "+entry)
	}
	if _, err := fn.Call(ctx); err != nil {
		var exit *sys.ExitError
		if stderrors.As(err, &exit) && exit.ExitCode() == 0 {
			return nil
		}
		return errors.New(errors.PhaseHost, errors.KindFFI).Op(entry).Cause(err).Build()
	}
	return nil
}

// instantiateWASI instantiates WASI preview1 plus the adapter functions
// that guests built with the component model adapter import.
func instantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, _ []uint64) {
		}), nil, nil).
		Export("reset_adapter_state")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = ebadf
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("adapter_close_badfd")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = invalidFD
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("adapter_open_badfd")

	return builder.Instantiate(ctx)
}
