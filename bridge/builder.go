package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/provenance"
)

// Settings controls how a Builder emits its manifest.
type Settings struct {
	// RemoteURL is recorded in the claim as the manifest's remote home.
	// Nil means absent.
	RemoteURL *string `json:"remote_url"`
	// Sidecar returns the bare manifest store instead of the signed asset.
	Sidecar bool `json:"sidecar"`
}

// ParseSettings decodes builder settings. Empty text selects the defaults;
// a JSON null for remote_url is the same as leaving it out.
func ParseSettings(text string) (Settings, error) {
	var s Settings
	if strings.TrimSpace(text) == "" {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(text))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, errors.Configuration(errors.PhaseBuilder, "invalid builder settings", err)
	}
	if s.RemoteURL != nil && *s.RemoteURL == "" {
		s.RemoteURL = nil
	}
	return s, nil
}

// Builder holds a manifest definition between boundary calls.
//
// Every method mutates or embeds the definition and needs exclusive access.
// A call that cannot take the guard immediately fails with lock_contention.
type Builder struct {
	mu        sync.RWMutex
	engine    provenance.Engine
	settings  Settings
	manifest  *provenance.Manifest
	resources map[string][]byte
}

// NewBuilder creates an unconfigured builder.
func NewBuilder(engine provenance.Engine, settings Settings) *Builder {
	return &Builder{engine: engine, settings: settings}
}

// Load parses a manifest definition and makes it the builder's
// configuration. On failure the previous definition is kept.
func (b *Builder) Load(spec string) error {
	if !b.mu.TryLock() {
		return errors.LockContention(errors.PhaseBuilder, "load")
	}
	defer b.mu.Unlock()

	m, err := provenance.ParseManifest(spec)
	if err != nil {
		return err
	}
	b.manifest = m
	return nil
}

// AddResource attaches binary data referenced by the definition, such as a
// thumbnail. Adding the same id again replaces it.
func (b *Builder) AddResource(id string, data []byte) error {
	if !b.mu.TryLock() {
		return errors.LockContention(errors.PhaseBuilder, "add_resource")
	}
	defer b.mu.Unlock()

	if id == "" {
		return errors.New(errors.PhaseBuilder, errors.KindEngine).
			Op("add_resource").
			Detail("resource id is empty").
			Build()
	}
	if b.resources == nil {
		b.resources = make(map[string][]byte)
	}
	b.resources[id] = append([]byte(nil), data...)
	return nil
}

// Sign embeds the definition into the asset read from input. The result is
// written to output when it is not nil and always returned. Signing again
// re-runs the embedding against the current definition.
func (b *Builder) Sign(s provenance.Signer, input io.ReadSeeker, output io.Writer) ([]byte, error) {
	if !b.mu.TryLock() {
		return nil, errors.LockContention(errors.PhaseBuilder, "sign")
	}
	defer b.mu.Unlock()

	if b.manifest == nil {
		return nil, errors.New(errors.PhaseBuilder, errors.KindEngine).
			Op("sign").
			Detail("builder has no manifest definition").
			Build()
	}

	format := b.manifest.Format
	if format == "" {
		sniffed, err := sniffFormat(input)
		if err != nil {
			return nil, err
		}
		format = sniffed
	}

	def := &provenance.Definition{
		Manifest:  b.manifest,
		Resources: b.resources,
		Sidecar:   b.settings.Sidecar,
	}
	if b.settings.RemoteURL != nil {
		def.RemoteURL = *b.settings.RemoteURL
	}

	signed, err := b.engine.Embed(def, format, input, s)
	if err != nil {
		return nil, err
	}
	if output != nil {
		if _, err := output.Write(signed); err != nil {
			return nil, streamError(errors.PhaseBuilder, "sign", err)
		}
	}
	return signed, nil
}

// sniffFormat detects the asset format from its first bytes and rewinds.
func sniffFormat(input io.ReadSeeker) (string, error) {
	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return "", streamError(errors.PhaseBuilder, "sign", err)
	}
	head := make([]byte, 4)
	n, err := io.ReadFull(input, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", streamError(errors.PhaseBuilder, "sign", err)
	}
	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return "", streamError(errors.PhaseBuilder, "sign", err)
	}
	format := provenance.DetectFormat(head[:n])
	if format == "" {
		return "", errors.New(errors.PhaseBuilder, errors.KindEngine).
			Op("sign").
			Detail("cannot detect the asset format").
			Build()
	}
	return format, nil
}
