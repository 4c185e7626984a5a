package signer

import (
	"crypto"
	"strings"

	"github.com/wippyai/c2pa-bridge/errors"
)

// Algorithm is a supported signing algorithm identifier.
type Algorithm string

const (
	ES256   Algorithm = "es256"
	ES384   Algorithm = "es384"
	ES512   Algorithm = "es512"
	PS256   Algorithm = "ps256"
	PS384   Algorithm = "ps384"
	PS512   Algorithm = "ps512"
	Ed25519 Algorithm = "ed25519"
)

var algorithms = []Algorithm{ES256, ES384, ES512, PS256, PS384, PS512, Ed25519}

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return append([]Algorithm(nil), algorithms...)
}

// ParseAlgorithm case-normalizes s and matches it against the closed set.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", errors.New(errors.PhaseSigner, errors.KindConfiguration).
		Op("configure").
		Value(s).
		Detail("unsupported algorithm %q", s).
		Build()
}

func (a Algorithm) String() string {
	return string(a)
}

// Hash returns the digest used before signing. Ed25519 signs the message
// itself and returns crypto.Hash(0).
func (a Algorithm) Hash() crypto.Hash {
	switch a {
	case ES256, PS256:
		return crypto.SHA256
	case ES384, PS384:
		return crypto.SHA384
	case ES512, PS512:
		return crypto.SHA512
	default:
		return 0
	}
}

// IsPSS reports whether a is an RSASSA-PSS algorithm.
func (a Algorithm) IsPSS() bool {
	return a == PS256 || a == PS384 || a == PS512
}

// IsECDSA reports whether a is an ECDSA algorithm.
func (a Algorithm) IsECDSA() bool {
	return a == ES256 || a == ES384 || a == ES512
}
