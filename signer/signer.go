// Package signer adapts a foreign "sign these bytes" callback and its
// configuration into the signing capability the provenance engine needs.
//
// The bridge never sees private key material. It hands the callback the
// bytes to sign and a buffer sized to the configured reserve, and takes back
// the produced signature.
package signer

import (
	"crypto/x509"
	"sync"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"golang.org/x/crypto/ocsp"

	"github.com/wippyai/c2pa-bridge/errors"
)

const (
	DefaultAlgorithm   = ES256
	DefaultReserveSize = 1024
)

// Callback produces a signature for data into sig and returns its length,
// or a negative value on failure.
type Callback interface {
	Sign(data, sig []byte) int64
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(data, sig []byte) int64

func (f CallbackFunc) Sign(data, sig []byte) int64 {
	return f(data, sig)
}

// Config is the caller-supplied signing configuration.
type Config struct {
	// Algorithm is parsed case-insensitively.
	Algorithm string
	// Certs is one or more concatenated PEM certificates, leaf first.
	Certs []byte
	// TimeAuthorityURL is optional; empty means absent.
	TimeAuthorityURL string
	// ReserveSize is the base signature reserve. Zero selects the default.
	ReserveSize int
	// OCSP is an optional DER OCSP response for the leaf certificate.
	OCSP []byte
}

type settings struct {
	alg     Algorithm
	chain   [][]byte
	certs   []*x509.Certificate
	tsaURL  string
	reserve int
	ocsp    []byte
}

// Signer wraps a Callback with guarded configuration.
type Signer struct {
	cb Callback
	mu sync.RWMutex
	s  settings
}

// New creates an unconfigured signer using the default algorithm and reserve.
func New(cb Callback) *Signer {
	return &Signer{
		cb: cb,
		s: settings{
			alg:     DefaultAlgorithm,
			reserve: DefaultReserveSize,
		},
	}
}

// NewWithConfig creates a signer and applies cfg.
func NewWithConfig(cb Callback, cfg Config) (*Signer, error) {
	s := New(cb)
	if err := s.Configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure replaces the signer's settings. Everything is parsed before the
// swap, so a failed Configure leaves the previous settings in place.
func (s *Signer) Configure(cfg Config) error {
	next, err := parse(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.s = next
	s.mu.Unlock()
	return nil
}

func parse(cfg Config) (settings, error) {
	alg, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return settings{}, err
	}

	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(cfg.Certs)
	if err != nil {
		return settings{}, errors.Configuration(errors.PhaseSigner, "malformed certificate PEM", err)
	}
	if len(certs) == 0 {
		return settings{}, errors.Configuration(errors.PhaseSigner, "no certificates in PEM material", nil)
	}
	chain := make([][]byte, len(certs))
	for i, c := range certs {
		chain[i] = c.Raw
	}

	base := cfg.ReserveSize
	if base == 0 {
		base = DefaultReserveSize
	}
	if base < 0 {
		return settings{}, errors.New(errors.PhaseSigner, errors.KindConfiguration).
			Value(cfg.ReserveSize).
			Detail("negative reserve size %d", cfg.ReserveSize).
			Build()
	}

	var staple []byte
	if len(cfg.OCSP) > 0 {
		if _, err := ocsp.ParseResponse(cfg.OCSP, nil); err != nil {
			return settings{}, errors.Configuration(errors.PhaseSigner, "malformed OCSP response", err)
		}
		staple = append([]byte(nil), cfg.OCSP...)
	}

	return settings{
		alg:     alg,
		chain:   chain,
		certs:   certs,
		tsaURL:  cfg.TimeAuthorityURL,
		reserve: base + len(cfg.Certs) + len(cfg.TimeAuthorityURL),
		ocsp:    staple,
	}, nil
}

// Algorithm returns the configured algorithm.
func (s *Signer) Algorithm() Algorithm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.alg
}

// CertificateChain returns a copy of the DER chain, leaf first.
func (s *Signer) CertificateChain() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]byte, len(s.s.chain))
	for i, der := range s.s.chain {
		out[i] = append([]byte(nil), der...)
	}
	return out
}

// Leaf returns the parsed leaf certificate, or nil when unconfigured.
func (s *Signer) Leaf() *x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.s.certs) == 0 {
		return nil
	}
	return s.s.certs[0]
}

// ReserveSize is the upper bound on any signature the callback may return.
func (s *Signer) ReserveSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.reserve
}

// TimeAuthorityURL returns the timestamp authority, if one was configured.
func (s *Signer) TimeAuthorityURL() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.tsaURL, s.s.tsaURL != ""
}

// OCSPResponse returns the configured OCSP response, or nil.
func (s *Signer) OCSPResponse() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.s.ocsp...)
}

// Sign hands data and a reserve-sized buffer to the callback. A result
// larger than the reserve is a contract violation and is never truncated.
func (s *Signer) Sign(data []byte) ([]byte, error) {
	reserve := s.ReserveSize()
	sig := make([]byte, reserve)

	n := s.cb.Sign(data, sig)
	switch {
	case n < 0:
		return nil, errors.IO(errors.PhaseSigner, "sign", n)
	case n > int64(reserve):
		return nil, errors.New(errors.PhaseSigner, errors.KindFFI).
			Op("sign").
			Value(n).
			Detail("signature of %d bytes exceeds reserve of %d", n, reserve).
			Build()
	}
	return sig[:n], nil
}
