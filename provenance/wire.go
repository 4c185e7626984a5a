package provenance

import (
	"bytes"
	"fmt"
)

// storeMagic prefixes every encoded manifest store, embedded or sidecar.
var storeMagic = []byte("c2pb")

const storeVersion = 1

type wireStore struct {
	Version   int            `cbor:"1,keyasint"`
	Manifests []wireManifest `cbor:"2,keyasint"`
}

type wireManifest struct {
	Label      string            `cbor:"1,keyasint"`
	Claim      []byte            `cbor:"2,keyasint"`
	Signature  []byte            `cbor:"3,keyasint"`
	Certs      [][]byte          `cbor:"4,keyasint"`
	Assertions []wireAssertion   `cbor:"5,keyasint,omitempty"`
	Resources  map[string][]byte `cbor:"6,keyasint,omitempty"`
	OCSP       []byte            `cbor:"7,keyasint,omitempty"`
}

type wireAssertion struct {
	Label string `cbor:"1,keyasint"`
	Kind  string `cbor:"2,keyasint"`
	Data  []byte `cbor:"3,keyasint"`
}

// wireClaim is the signed part of a manifest.
type wireClaim struct {
	Generator     string           `cbor:"1,keyasint"`
	Title         string           `cbor:"2,keyasint,omitempty"`
	Format        string           `cbor:"3,keyasint"`
	InstanceID    string           `cbor:"4,keyasint"`
	Assertions    []hashedURI      `cbor:"5,keyasint,omitempty"`
	Resources     []hashedURI      `cbor:"6,keyasint,omitempty"`
	Ingredients   []wireIngredient `cbor:"7,keyasint,omitempty"`
	Thumbnail     *wireRef         `cbor:"8,keyasint,omitempty"`
	DataHash      []byte           `cbor:"9,keyasint,omitempty"`
	Alg           string           `cbor:"10,keyasint"`
	SignedAt      int64            `cbor:"11,keyasint"`
	TimeAuthority string           `cbor:"12,keyasint,omitempty"`
	RemoteURL     string           `cbor:"13,keyasint,omitempty"`
}

type hashedURI struct {
	URL  string `cbor:"1,keyasint"`
	Hash []byte `cbor:"2,keyasint"`
}

type wireIngredient struct {
	Title          string   `cbor:"1,keyasint,omitempty"`
	Format         string   `cbor:"2,keyasint,omitempty"`
	InstanceID     string   `cbor:"3,keyasint,omitempty"`
	Relationship   string   `cbor:"4,keyasint"`
	ActiveManifest string   `cbor:"5,keyasint,omitempty"`
	Thumbnail      *wireRef `cbor:"6,keyasint,omitempty"`
}

type wireRef struct {
	Format     string `cbor:"1,keyasint"`
	Identifier string `cbor:"2,keyasint"`
}

func (r *wireRef) report() *ResourceRef {
	if r == nil {
		return nil
	}
	return &ResourceRef{Format: r.Format, Identifier: r.Identifier}
}

func toWireRef(r *ResourceRef) *wireRef {
	if r == nil {
		return nil
	}
	return &wireRef{Format: r.Format, Identifier: r.Identifier}
}

func assertionURL(i int, label string) string {
	return fmt.Sprintf("self#assertion/%d/%s", i, label)
}

func resourceURL(id string) string {
	return "self#resource/" + id
}

func encodeStore(s *wireStore) ([]byte, error) {
	body, err := marshalCBOR(s)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), storeMagic...), body...), nil
}

func decodeWireStore(raw []byte) (*wireStore, error) {
	if !bytes.HasPrefix(raw, storeMagic) {
		return nil, fmt.Errorf("missing store magic")
	}
	var s wireStore
	if err := unmarshalCBOR(raw[len(storeMagic):], &s); err != nil {
		return nil, err
	}
	if s.Version != storeVersion {
		return nil, fmt.Errorf("unsupported store version %d", s.Version)
	}
	if len(s.Manifests) == 0 {
		return nil, fmt.Errorf("store has no manifests")
	}
	return &s, nil
}
