package bridge

import (
	"io"
	"sync"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/provenance"
)

// Reader holds the most recently read manifest store.
//
// Read replaces the store and needs exclusive access; JSON and Resource
// share access with each other. Neither side ever blocks: an operation that
// cannot take the guard immediately fails with lock_contention.
type Reader struct {
	mu     sync.RWMutex
	engine provenance.Engine
	store  *provenance.Store
}

// NewReader creates an empty reader backed by engine.
func NewReader(engine provenance.Engine) *Reader {
	return &Reader{engine: engine}
}

// Read consumes src, validates the manifest store it carries and keeps the
// result. It returns the report as JSON. An empty format is detected from
// the content. On failure the previous store is kept.
func (r *Reader) Read(format string, src io.Reader) (string, error) {
	if !r.mu.TryLock() {
		return "", errors.LockContention(errors.PhaseReader, "read")
	}
	defer r.mu.Unlock()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", streamError(errors.PhaseReader, "read", err)
	}
	if format == "" {
		format = provenance.DetectFormat(data)
	}
	store, err := r.engine.Read(format, data)
	if err != nil {
		return "", err
	}
	text, err := store.JSON()
	if err != nil {
		return "", err
	}
	r.store = store
	return text, nil
}

// JSON renders the loaded store.
func (r *Reader) JSON() (string, error) {
	if !r.mu.TryRLock() {
		return "", errors.LockContention(errors.PhaseReader, "json")
	}
	defer r.mu.RUnlock()

	if r.store == nil {
		return "", errors.NotFound(errors.PhaseReader, "manifest store")
	}
	return r.store.JSON()
}

// Store returns the loaded store.
func (r *Reader) Store() (*provenance.Store, error) {
	if !r.mu.TryRLock() {
		return nil, errors.LockContention(errors.PhaseReader, "store")
	}
	defer r.mu.RUnlock()

	if r.store == nil {
		return nil, errors.NotFound(errors.PhaseReader, "manifest store")
	}
	return r.store, nil
}

// Resource returns resource id of manifest. An empty manifest label
// selects the active manifest.
func (r *Reader) Resource(manifest, id string) ([]byte, error) {
	if !r.mu.TryRLock() {
		return nil, errors.LockContention(errors.PhaseReader, "resource")
	}
	defer r.mu.RUnlock()

	if r.store == nil {
		return nil, errors.NotFound(errors.PhaseReader, "manifest store")
	}
	return r.store.Resource(manifest, id)
}

// ResourceWrite copies resource id of manifest to w.
func (r *Reader) ResourceWrite(manifest, id string, w io.Writer) error {
	data, err := r.Resource(manifest, id)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return streamError(errors.PhaseReader, "resource_write", err)
	}
	return nil
}

// streamError keeps bridge errors raised by a stream as they are and
// classifies anything else as an io failure.
func streamError(phase errors.Phase, op string, err error) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}
	return errors.New(phase, errors.KindIO).Op(op).Cause(err).Build()
}
