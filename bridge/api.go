package bridge

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/lasterror"
	"github.com/wippyai/c2pa-bridge/provenance"
	"github.com/wippyai/c2pa-bridge/resource"
	"github.com/wippyai/c2pa-bridge/signer"
	"github.com/wippyai/c2pa-bridge/stream"
)

const (
	Name    = "c2pa-bridge"
	Version = "0.1.0"
)

// API is the language-neutral boundary surface. Objects cross it as
// handles; operations report failure with a sentinel (0 handle, -1, or an
// empty result with ok=false) and leave the cause in the last-error
// channel of the calling scope.
//
// Streams passed to an operation are borrowed for that call only. Readers
// and builders are borrowed and handed back on every path, so their handles
// stay valid until released.
type API struct {
	engine   provenance.Engine
	table    *resource.UnifiedTable
	streams  *resource.Typed[*stream.Stream]
	signers  *resource.Typed[*signer.Signer]
	readers  *resource.Typed[*Reader]
	builders *resource.Typed[*Builder]
	errs     *lasterror.Channel
	scope    func() lasterror.Scope
	log      *zap.Logger
}

// Option configures an API.
type Option func(*API)

// WithEngine replaces the default local engine.
func WithEngine(e provenance.Engine) Option {
	return func(a *API) { a.engine = e }
}

// WithChannel records last errors in c instead of the process-wide channel.
func WithChannel(c *lasterror.Channel) Option {
	return func(a *API) { a.errs = c }
}

// WithScope sets how the calling scope is identified. The default is the
// OS thread, which a goroutine only keeps across calls after
// runtime.LockOSThread.
func WithScope(fn func() lasterror.Scope) Option {
	return func(a *API) { a.scope = fn }
}

// WithLogger sets the logger used by this API.
func WithLogger(l *zap.Logger) Option {
	return func(a *API) { a.log = l }
}

// New creates an API with its own handle table.
func New(opts ...Option) *API {
	a := &API{
		table: resource.NewTable(),
		errs:  lasterror.Default(),
		scope: lasterror.ThreadScope,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.engine == nil {
		a.engine = provenance.NewLocalEngine()
	}
	if a.log == nil {
		a.log = Logger()
	}

	a.streams = resource.NewTyped[*stream.Stream](a.table, resource.TypeStream)
	a.signers = resource.NewTyped[*signer.Signer](a.table, resource.TypeSigner)
	a.readers = resource.NewTyped[*Reader](a.table, resource.TypeReader)
	a.builders = resource.NewTyped[*Builder](a.table, resource.TypeBuilder)
	a.table.Subscribe(&lifecycleLogger{log: a.log})
	return a
}

// Engine returns the provenance engine behind the API.
func (a *API) Engine() provenance.Engine {
	return a.engine
}

// Live returns the number of handles that have not been released.
func (a *API) Live() int {
	return a.table.Len()
}

// Close releases every handle still live. Leaked handles are logged.
func (a *API) Close() error {
	if n := a.table.Len(); n > 0 {
		a.log.Warn("releasing leaked handles", zap.Int("count", n))
	}
	return a.table.Close()
}

// Version returns "<bridge>/<version> <engine>/<version>".
func (a *API) Version() string {
	return Name + "/" + Version + " " + a.engine.Name() + "/" + a.engine.Version()
}

// SupportedExtensions returns the engine's file extensions as a JSON array.
func (a *API) SupportedExtensions() string {
	out, err := json.Marshal(a.engine.SupportedExtensions())
	if err != nil {
		return "[]"
	}
	return string(out)
}

// CreateStream binds callbacks to a new stream handle. The stream releases
// the callbacks' context when the handle is released.
func (a *API) CreateStream(cb stream.Callbacks) resource.Handle {
	if cb == nil {
		return a.handle("create_stream", 0, errors.NilHandle(errors.PhaseStream, "create_stream"))
	}
	h, err := a.streams.Insert(stream.New(cb))
	return a.handle("create_stream", h, err)
}

// ReleaseStream releases a stream handle and its context.
func (a *API) ReleaseStream(h resource.Handle) int {
	return a.status("release_stream", a.streams.Release(h))
}

// CreateSigner binds a sign callback and its configuration to a new handle.
func (a *API) CreateSigner(cb signer.Callback, cfg signer.Config) resource.Handle {
	if cb == nil {
		return a.handle("create_signer", 0, errors.NilHandle(errors.PhaseSigner, "create_signer"))
	}
	if err := checkText("create_signer", cfg.Algorithm, cfg.TimeAuthorityURL); err != nil {
		return a.handle("create_signer", 0, err)
	}
	s, err := signer.NewWithConfig(cb, cfg)
	if err != nil {
		return a.handle("create_signer", 0, err)
	}
	h, err := a.signers.Insert(s)
	return a.handle("create_signer", h, err)
}

// ReleaseSigner releases a signer handle.
func (a *API) ReleaseSigner(h resource.Handle) int {
	return a.status("release_signer", a.signers.Release(h))
}

// VerifyStream reads the asset in the stream from its current position,
// sniffing the format, and returns the validation report as JSON.
func (a *API) VerifyStream(h resource.Handle) (string, bool) {
	var text string
	err := a.streams.With(h, func(s *stream.Stream) error {
		store, err := a.readStore(s, "")
		if err != nil {
			return err
		}
		text, err = store.JSON()
		return err
	})
	return a.text("verify_stream", text, err)
}

// HasManifest reports 1 when the asset in the stream carries a manifest
// store, 0 when it does not and -1 on failure.
func (a *API) HasManifest(h resource.Handle) int {
	found := false
	err := a.streams.With(h, func(s *stream.Stream) error {
		_, err := a.readStore(s, "")
		switch {
		case err == nil:
			found = true
			return nil
		case errors.CodeOf(err) == errors.CodeNotFound:
			return nil
		}
		return err
	})
	if err != nil {
		return a.status("has_manifest", err)
	}
	if found {
		return 1
	}
	return 0
}

func (a *API) readStore(src io.Reader, format string) (*provenance.Store, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, streamError(errors.PhaseEngine, "verify", err)
	}
	if format == "" {
		format = provenance.DetectFormat(data)
	}
	return a.engine.Read(format, data)
}

// VerifyFileJSON reads the file at path and returns the report wrapped in
// the response envelope. Failures are reported in the envelope.
func (a *API) VerifyFileJSON(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ResponseFrom(nil, err).String()
	}
	defer f.Close()

	store, err := a.readStore(f, formatOf(path))
	if err != nil {
		return ResponseFrom(nil, err).String()
	}
	return ResponseFrom(store, nil).String()
}

// formatOf maps the extension of path to a canonical format, or "" to
// leave detection to the content.
func formatOf(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		if canonical, ok := provenance.NormalizeFormat(ext); ok {
			return canonical
		}
	}
	return ""
}

// IngredientFromStream describes the asset in the stream as an ingredient
// and returns its JSON. An empty format is detected from the content. When
// dataDir is set the manifest store and thumbnail are written there under
// their identifiers.
func (a *API) IngredientFromStream(format string, h resource.Handle, dataDir string) (string, bool) {
	if err := checkText("ingredient_from_stream", format, dataDir); err != nil {
		return a.text("ingredient_from_stream", "", err)
	}
	var text string
	err := a.streams.With(h, func(s *stream.Stream) error {
		ing, err := a.ingredient(s, "", format, dataDir)
		if err != nil {
			return err
		}
		text, err = ing.JSON()
		return err
	})
	return a.text("ingredient_from_stream", text, err)
}

// IngredientFromFileJSON describes the file at path as an ingredient titled
// with its base name and returns it wrapped in the response envelope.
// Resources are written to dataDir as for IngredientFromStream.
func (a *API) IngredientFromFileJSON(path, dataDir string) string {
	f, err := os.Open(path)
	if err != nil {
		return ResponseFrom(nil, err).String()
	}
	defer f.Close()

	ing, err := a.ingredient(f, filepath.Base(path), formatOf(path), dataDir)
	if err != nil {
		return ResponseFrom(nil, err).String()
	}
	return ResponseFrom(ing, nil).String()
}

func (a *API) ingredient(src io.Reader, title, format, dataDir string) (*provenance.IngredientReport, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, streamError(errors.PhaseEngine, "ingredient", err)
	}
	if format == "" {
		format = provenance.DetectFormat(data)
	}
	ing, err := provenance.NewIngredient(a.engine, title, format, data)
	if err != nil {
		return nil, err
	}
	if dataDir == "" {
		return ing, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindIO, err, "create ingredient data dir")
	}
	for id, res := range ing.Resources() {
		if err := os.WriteFile(filepath.Join(dataDir, id), res, 0o644); err != nil {
			return nil, errors.Wrap(errors.PhaseEngine, errors.KindIO, err, "write ingredient resource "+id)
		}
	}
	a.log.Debug("wrote ingredient resources", zap.String("dir", dataDir), zap.Int("count", len(ing.Resources())))
	return ing, nil
}

// NewReader creates an empty reader handle.
func (a *API) NewReader() resource.Handle {
	h, err := a.readers.Insert(NewReader(a.engine))
	return a.handle("manifest_reader_new", h, err)
}

// ReaderRead reads the stream into the reader and returns the report.
func (a *API) ReaderRead(h resource.Handle, format string, src resource.Handle) (string, bool) {
	if err := checkText("manifest_reader_read", format); err != nil {
		return a.text("manifest_reader_read", "", err)
	}
	var text string
	err := a.readers.With(h, func(r *Reader) error {
		return a.streams.With(src, func(s *stream.Stream) error {
			var err error
			text, err = r.Read(format, s)
			return err
		})
	})
	return a.text("manifest_reader_read", text, err)
}

// ReaderJSON returns the report of the loaded store.
func (a *API) ReaderJSON(h resource.Handle) (string, bool) {
	var text string
	err := a.readers.With(h, func(r *Reader) error {
		var err error
		text, err = r.JSON()
		return err
	})
	return a.text("manifest_reader_json", text, err)
}

// ReaderResource writes resource id of manifest to the output stream.
func (a *API) ReaderResource(h resource.Handle, manifest, id string, out resource.Handle) int {
	if err := checkText("manifest_reader_resource", manifest, id); err != nil {
		return a.status("manifest_reader_resource", err)
	}
	err := a.readers.With(h, func(r *Reader) error {
		return a.streams.With(out, func(s *stream.Stream) error {
			return r.ResourceWrite(manifest, id, s)
		})
	})
	return a.status("manifest_reader_resource", err)
}

// ReleaseReader releases a reader handle.
func (a *API) ReleaseReader(h resource.Handle) int {
	return a.status("release_manifest_reader", a.readers.Release(h))
}

// CreateBuilder parses settings and a manifest definition into a new
// builder handle.
func (a *API) CreateBuilder(settings, spec string) resource.Handle {
	if err := checkText("create_manifest_builder", settings, spec); err != nil {
		return a.handle("create_manifest_builder", 0, err)
	}
	st, err := ParseSettings(settings)
	if err != nil {
		return a.handle("create_manifest_builder", 0, err)
	}
	b := NewBuilder(a.engine, st)
	if err := b.Load(spec); err != nil {
		return a.handle("create_manifest_builder", 0, err)
	}
	h, err := a.builders.Insert(b)
	return a.handle("create_manifest_builder", h, err)
}

// BuilderAddResource attaches resource data to the builder's definition.
func (a *API) BuilderAddResource(h resource.Handle, id string, data []byte) int {
	if err := checkText("manifest_builder_add_resource", id); err != nil {
		return a.status("manifest_builder_add_resource", err)
	}
	err := a.builders.With(h, func(b *Builder) error {
		return b.AddResource(id, data)
	})
	return a.status("manifest_builder_add_resource", err)
}

// BuilderSign signs the asset in the input stream. When out is not 0 the
// signed bytes are written to it as well as returned.
func (a *API) BuilderSign(h, signerHandle, in, out resource.Handle) ([]byte, int) {
	var signed []byte
	err := a.builders.With(h, func(b *Builder) error {
		return a.signers.With(signerHandle, func(sg *signer.Signer) error {
			return a.streams.With(in, func(input *stream.Stream) error {
				if out == 0 {
					var err error
					signed, err = b.Sign(sg, input, nil)
					return err
				}
				return a.streams.With(out, func(output *stream.Stream) error {
					var err error
					signed, err = b.Sign(sg, input, output)
					return err
				})
			})
		})
	})
	return a.bytes("manifest_builder_sign", signed, err)
}

// ReleaseBuilder releases a builder handle.
func (a *API) ReleaseBuilder(h resource.Handle) int {
	return a.status("release_manifest_builder", a.builders.Release(h))
}

// Error returns the text of the calling scope's last error without
// clearing it, or "" when there is none.
func (a *API) Error() string {
	msg, _ := a.errs.Message(a.scope())
	return msg
}

// ErrorJSON returns the calling scope's last error in the response
// envelope, or "" when there is none.
func (a *API) ErrorJSON() string {
	err, ok := a.errs.Last(a.scope())
	if !ok {
		return ""
	}
	return ResponseFrom(nil, err).String()
}

// TakeError removes and returns the calling scope's last error.
func (a *API) TakeError() error {
	return a.errs.Take(a.scope())
}

// ClearError empties the calling scope's slot and reports 1 when it held
// an error. Error and ErrorJSON only peek, so a thread that is about to
// exit should clear its slot.
func (a *API) ClearError() int {
	if a.TakeError() != nil {
		return 1
	}
	return 0
}

type lifecycleLogger struct {
	log *zap.Logger
}

func (l *lifecycleLogger) OnResourceEvent(e resource.Event) {
	switch e.Type {
	case resource.EventCreated, resource.EventReleased:
		fields := []zap.Field{
			zap.Uint32("handle", uint32(e.Handle)),
			zap.Stringer("type", e.TypeID),
			zap.Stringer("event", e.Type),
		}
		if e.Err != nil {
			l.log.Warn("handle release failed", append(fields, zap.Error(e.Err))...)
			return
		}
		l.log.Debug("handle", fields...)
	}
}
