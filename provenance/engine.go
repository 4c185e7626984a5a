package provenance

import (
	"io"

	"github.com/wippyai/c2pa-bridge/signer"
)

// Engine reads and embeds manifest stores.
type Engine interface {
	Name() string
	Version() string
	// SupportedFormats lists canonical MIME types.
	SupportedFormats() []string
	// SupportedExtensions lists file extensions without the dot.
	SupportedExtensions() []string
	// Read extracts and validates the manifest store in data.
	Read(format string, data []byte) (*Store, error)
	// Embed signs def for the asset read from input and returns the
	// resulting bytes.
	Embed(def *Definition, format string, input io.ReadSeeker, s Signer) ([]byte, error)
}

// Signer is the signing capability the engine calls into.
type Signer interface {
	Algorithm() signer.Algorithm
	CertificateChain() [][]byte
	ReserveSize() int
	TimeAuthorityURL() (string, bool)
	Sign(data []byte) ([]byte, error)
}

// OCSPStapler is optionally implemented by a Signer that carries an OCSP
// response for its leaf certificate.
type OCSPStapler interface {
	OCSPResponse() []byte
}

// Definition is everything needed to produce one manifest.
type Definition struct {
	Manifest  *Manifest
	Resources map[string][]byte
	// Sidecar returns the bare manifest store instead of the asset.
	Sidecar bool
	// RemoteURL, when set, is recorded in the claim as the manifest's
	// remote location.
	RemoteURL string
}

var _ Signer = (*signer.Signer)(nil)
