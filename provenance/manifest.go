package provenance

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/wippyai/c2pa-bridge/errors"
)

// Assertion kinds. Json is the default.
const (
	KindJSON = "Json"
	KindCBOR = "Cbor"
)

// Ingredient relationships.
const (
	RelationshipParentOf    = "parentOf"
	RelationshipComponentOf = "componentOf"
	RelationshipInputTo     = "inputTo"
)

// Manifest is a manifest definition supplied by the caller.
type Manifest struct {
	ClaimGenerator string       `json:"claim_generator"`
	Format         string       `json:"format,omitempty"`
	Title          string       `json:"title,omitempty"`
	InstanceID     string       `json:"instance_id,omitempty"`
	Label          string       `json:"label,omitempty"`
	Vendor         string       `json:"vendor,omitempty"`
	Assertions     []Assertion  `json:"assertions,omitempty"`
	Ingredients    []Ingredient `json:"ingredients,omitempty"`
	Thumbnail      *ResourceRef `json:"thumbnail,omitempty"`
}

// Assertion is a labeled statement about the asset.
type Assertion struct {
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data"`
	Kind  string          `json:"kind,omitempty"`
}

// Ingredient references an asset this one was derived from.
type Ingredient struct {
	Title          string       `json:"title,omitempty"`
	Format         string       `json:"format,omitempty"`
	InstanceID     string       `json:"instance_id,omitempty"`
	Relationship   string       `json:"relationship,omitempty"`
	ActiveManifest string       `json:"active_manifest,omitempty"`
	Thumbnail      *ResourceRef `json:"thumbnail,omitempty"`
}

// ResourceRef points at a binary resource stored with the manifest.
type ResourceRef struct {
	Format     string `json:"format"`
	Identifier string `json:"identifier"`
}

// ParseManifest decodes a manifest definition. Comments and trailing commas
// are accepted.
func ParseManifest(text string) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON([]byte(text)), &m); err != nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindEngine).
			Op("parse manifest").
			Cause(err).
			Detail("malformed manifest definition").
			Build()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the fields the engine requires.
func (m *Manifest) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New(errors.PhaseEngine, errors.KindEngine).
			Op("validate manifest").
			Detail(format, args...).
			Build()
	}

	if m.ClaimGenerator == "" {
		return invalid("claim_generator is required")
	}
	if m.Format != "" {
		if _, ok := NormalizeFormat(m.Format); !ok {
			return invalid("unsupported format %q", m.Format)
		}
	}
	for i, a := range m.Assertions {
		if a.Label == "" {
			return invalid("assertion %d has no label", i)
		}
		if len(a.Data) == 0 || !json.Valid(a.Data) {
			return invalid("assertion %q has no JSON data", a.Label)
		}
		switch a.Kind {
		case "", KindJSON, KindCBOR:
		default:
			return invalid("assertion %q has unsupported kind %q", a.Label, a.Kind)
		}
	}
	for i, ing := range m.Ingredients {
		switch ing.Relationship {
		case "", RelationshipParentOf, RelationshipComponentOf, RelationshipInputTo:
		default:
			return invalid("ingredient %d has unsupported relationship %q", i, ing.Relationship)
		}
	}
	return nil
}

// newLabel returns a fresh manifest label, prefixed by vendor if set.
func newLabel(vendor string) string {
	label := "urn:uuid:" + uuid.NewString()
	if vendor != "" {
		return fmt.Sprintf("%s:%s", vendor, label)
	}
	return label
}

func newInstanceID() string {
	return "xmp:iid:" + uuid.NewString()
}

// encodeAssertion converts a definition assertion to its stored form.
func encodeAssertion(a Assertion) (wireAssertion, error) {
	kind := a.Kind
	if kind == "" {
		kind = KindJSON
	}

	switch kind {
	case KindCBOR:
		var v any
		if err := json.Unmarshal(a.Data, &v); err != nil {
			return wireAssertion{}, errors.Engine(errors.PhaseEngine, "encode assertion", err)
		}
		data, err := marshalCBOR(v)
		if err != nil {
			return wireAssertion{}, errors.Engine(errors.PhaseEngine, "encode assertion", err)
		}
		return wireAssertion{Label: a.Label, Kind: kind, Data: data}, nil
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, a.Data); err != nil {
			return wireAssertion{}, errors.Engine(errors.PhaseEngine, "encode assertion", err)
		}
		return wireAssertion{Label: a.Label, Kind: kind, Data: compact.Bytes()}, nil
	}
}

// decodeAssertion renders a stored assertion for the JSON report.
func decodeAssertion(w wireAssertion) (Assertion, error) {
	switch w.Kind {
	case KindCBOR:
		var v any
		if err := unmarshalCBOR(w.Data, &v); err != nil {
			return Assertion{}, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return Assertion{}, err
		}
		return Assertion{Label: w.Label, Kind: w.Kind, Data: data}, nil
	default:
		if !json.Valid(w.Data) {
			return Assertion{}, fmt.Errorf("assertion %q is not valid JSON", w.Label)
		}
		return Assertion{Label: w.Label, Data: json.RawMessage(w.Data)}, nil
	}
}
