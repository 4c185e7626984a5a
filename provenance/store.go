package provenance

import (
	"encoding/json"
	"sort"

	"github.com/wippyai/c2pa-bridge/errors"
)

// Validation status codes reported for failed bindings.
const (
	StatusClaimMalformed       = "claim.malformed"
	StatusSignatureMismatch    = "claimSignature.mismatch"
	StatusCredentialInvalid    = "signingCredential.invalid"
	StatusHashedURIMismatch    = "assertion.hashedURI.mismatch"
	StatusDataHashMismatch     = "assertion.dataHash.mismatch"
	StatusIngredientMissing    = "ingredient.manifest.missing"
	StatusAssertionUndecodable = "assertion.undecodable"
)

// Store is the report produced by reading a manifest store.
type Store struct {
	ActiveManifest   string                     `json:"active_manifest,omitempty"`
	Manifests        map[string]*ManifestReport `json:"manifests"`
	ValidationStatus []ValidationStatus         `json:"validation_status,omitempty"`

	resources map[string]map[string][]byte
	order     []string
	raw       []byte
}

// ManifestReport describes one manifest in a store.
type ManifestReport struct {
	Label          string        `json:"label"`
	ClaimGenerator string        `json:"claim_generator"`
	Title          string        `json:"title,omitempty"`
	Format         string        `json:"format"`
	InstanceID     string        `json:"instance_id"`
	Assertions     []Assertion   `json:"assertions,omitempty"`
	Ingredients    []Ingredient  `json:"ingredients,omitempty"`
	Thumbnail      *ResourceRef  `json:"thumbnail,omitempty"`
	Resources      []string      `json:"resources,omitempty"`
	RemoteURL      string        `json:"remote_url,omitempty"`
	SignatureInfo  SignatureInfo `json:"signature_info"`
}

// SignatureInfo summarizes who signed a manifest and when.
type SignatureInfo struct {
	Alg              string `json:"alg"`
	Issuer           string `json:"issuer,omitempty"`
	CommonName       string `json:"common_name,omitempty"`
	CertSerialNumber string `json:"cert_serial_number,omitempty"`
	Time             string `json:"time,omitempty"`
	TimeAuthority    string `json:"time_authority,omitempty"`
	OCSPStapled      bool   `json:"ocsp_stapled,omitempty"`
}

// ValidationStatus is one failed check.
type ValidationStatus struct {
	Code        string `json:"code"`
	URL         string `json:"url,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Valid reports whether every check passed.
func (s *Store) Valid() bool {
	return len(s.ValidationStatus) == 0
}

// Active returns the active manifest report.
func (s *Store) Active() (*ManifestReport, bool) {
	m, ok := s.Manifests[s.ActiveManifest]
	return m, ok
}

// Labels returns manifest labels in store order, oldest first.
func (s *Store) Labels() []string {
	return append([]string(nil), s.order...)
}

// JSON renders the report as indented JSON.
func (s *Store) JSON() (string, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Engine(errors.PhaseEngine, "report", err)
	}
	return string(out), nil
}

// Resource returns the bytes of resource id in manifest label. An empty
// label selects the active manifest.
func (s *Store) Resource(label, id string) ([]byte, error) {
	if label == "" {
		label = s.ActiveManifest
	}
	res, ok := s.resources[label]
	if !ok {
		if _, known := s.Manifests[label]; !known {
			return nil, errors.NotFound(errors.PhaseEngine, "manifest "+label)
		}
	}
	data, ok := res[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseEngine, "resource "+id)
	}
	return append([]byte(nil), data...), nil
}

// Raw returns the encoded manifest store the report was built from.
func (s *Store) Raw() []byte {
	return append([]byte(nil), s.raw...)
}

func (s *Store) addStatus(code, url, explanation string) {
	s.ValidationStatus = append(s.ValidationStatus, ValidationStatus{
		Code:        code,
		URL:         url,
		Explanation: explanation,
	})
}

func resourceIDs(res map[string][]byte) []string {
	ids := make([]string, 0, len(res))
	for id := range res {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
