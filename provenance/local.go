package provenance

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/signer"
)

const (
	engineName    = "provenance"
	engineVersion = "0.1.0"
)

// LocalEngine is the in-process Engine implementation.
type LocalEngine struct {
	now func() time.Time
}

// NewLocalEngine creates an engine that stamps claims with the wall clock.
func NewLocalEngine() *LocalEngine {
	return &LocalEngine{now: time.Now}
}

var _ Engine = (*LocalEngine)(nil)

func (e *LocalEngine) Name() string    { return engineName }
func (e *LocalEngine) Version() string { return engineVersion }

func (e *LocalEngine) SupportedFormats() []string {
	return []string{FormatJPEG, FormatSidecar}
}

func (e *LocalEngine) SupportedExtensions() []string {
	return supportedExtensions()
}

func unsupported(op, format string) error {
	return errors.New(errors.PhaseEngine, errors.KindEngine).
		Op(op).
		Value(format).
		Detail("unsupported format %q", format).
		Build()
}

// Read extracts the store from data and validates every manifest in it.
func (e *LocalEngine) Read(format string, data []byte) (*Store, error) {
	f, ok := NormalizeFormat(format)
	if !ok {
		return nil, unsupported("read", format)
	}

	var (
		raw       []byte
		assetHash []byte
	)
	switch f {
	case FormatJPEG:
		jf, err := parseJPEG(data)
		if err != nil {
			return nil, errors.Engine(errors.PhaseEngine, "read", err)
		}
		var found bool
		raw, found, err = jf.store()
		if err != nil {
			return nil, errors.Engine(errors.PhaseEngine, "read", err)
		}
		if !found {
			return nil, errors.NotFound(errors.PhaseEngine, "manifest store")
		}
		assetHash = keyedHash(assetDomainKey, jf.encode(nil))
	case FormatSidecar:
		// a sidecar has no asset to bind against
		raw = data
	}

	ws, err := decodeWireStore(raw)
	if err != nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindEngine).
			Op("read").
			Cause(err).
			Detail("malformed manifest store").
			Build()
	}
	store := buildStore(ws, assetHash)
	store.raw = raw
	return store, nil
}

func buildStore(ws *wireStore, assetHash []byte) *Store {
	s := &Store{
		Manifests: make(map[string]*ManifestReport, len(ws.Manifests)),
		resources: make(map[string]map[string][]byte, len(ws.Manifests)),
	}
	for _, wm := range ws.Manifests {
		s.order = append(s.order, wm.Label)
	}
	for i := range ws.Manifests {
		wm := &ws.Manifests[i]
		s.Manifests[wm.Label] = s.validate(wm, assetHash)
		s.resources[wm.Label] = wm.Resources
		s.ActiveManifest = wm.Label
	}
	return s
}

// validate checks one manifest's bindings, recording failures on s, and
// returns its report.
func (s *Store) validate(wm *wireManifest, assetHash []byte) *ManifestReport {
	report := &ManifestReport{Label: wm.Label}

	var claim wireClaim
	if err := unmarshalCBOR(wm.Claim, &claim); err != nil {
		s.addStatus(StatusClaimMalformed, wm.Label, err.Error())
		return report
	}

	report.ClaimGenerator = claim.Generator
	report.Title = claim.Title
	report.Format = claim.Format
	report.InstanceID = claim.InstanceID
	report.Thumbnail = claim.Thumbnail.report()
	report.RemoteURL = claim.RemoteURL
	report.Resources = resourceIDs(wm.Resources)
	report.SignatureInfo = SignatureInfo{
		Alg:           claim.Alg,
		Time:          time.Unix(claim.SignedAt, 0).UTC().Format(time.RFC3339),
		TimeAuthority: claim.TimeAuthority,
		OCSPStapled:   len(wm.OCSP) > 0,
	}

	s.checkSignature(wm, &claim, report)

	if len(claim.Assertions) != len(wm.Assertions) {
		s.addStatus(StatusHashedURIMismatch, wm.Label,
			fmt.Sprintf("claim lists %d assertions, store holds %d", len(claim.Assertions), len(wm.Assertions)))
	}
	for i, wa := range wm.Assertions {
		url := assertionURL(i, wa.Label)
		if i < len(claim.Assertions) {
			encoded, err := marshalCBOR(wa)
			if err != nil || claim.Assertions[i].URL != url || !hashMatches(assertionDomainKey, encoded, claim.Assertions[i].Hash) {
				s.addStatus(StatusHashedURIMismatch, wm.Label+"/"+url, "assertion hash does not match claim")
			}
		}
		a, err := decodeAssertion(wa)
		if err != nil {
			s.addStatus(StatusAssertionUndecodable, wm.Label+"/"+url, err.Error())
			continue
		}
		report.Assertions = append(report.Assertions, a)
	}

	claimed := make(map[string][]byte, len(claim.Resources))
	for _, r := range claim.Resources {
		claimed[r.URL] = r.Hash
	}
	for _, id := range report.Resources {
		url := resourceURL(id)
		want, ok := claimed[url]
		if !ok || !hashMatches(resourceDomainKey, wm.Resources[id], want) {
			s.addStatus(StatusHashedURIMismatch, wm.Label+"/"+url, "resource hash does not match claim")
		}
		delete(claimed, url)
	}
	for url := range claimed {
		s.addStatus(StatusHashedURIMismatch, wm.Label+"/"+url, "claimed resource is missing")
	}

	if assetHash != nil && !bytes.Equal(claim.DataHash, assetHash) {
		s.addStatus(StatusDataHashMismatch, wm.Label, "asset bytes do not match the claimed hash")
	}

	for _, wi := range claim.Ingredients {
		report.Ingredients = append(report.Ingredients, Ingredient{
			Title:          wi.Title,
			Format:         wi.Format,
			InstanceID:     wi.InstanceID,
			Relationship:   wi.Relationship,
			ActiveManifest: wi.ActiveManifest,
			Thumbnail:      wi.Thumbnail.report(),
		})
		if wi.ActiveManifest != "" && !s.hasLabel(wi.ActiveManifest) {
			s.addStatus(StatusIngredientMissing, wm.Label, "ingredient manifest "+wi.ActiveManifest+" is not in the store")
		}
	}

	return report
}

func (s *Store) hasLabel(label string) bool {
	for _, l := range s.order {
		if l == label {
			return true
		}
	}
	return false
}

func (s *Store) checkSignature(wm *wireManifest, claim *wireClaim, report *ManifestReport) {
	url := wm.Label + "/signature"
	if len(wm.Certs) == 0 {
		s.addStatus(StatusCredentialInvalid, url, "no signing certificate")
		return
	}
	leaf, err := x509.ParseCertificate(wm.Certs[0])
	if err != nil {
		s.addStatus(StatusCredentialInvalid, url, err.Error())
		return
	}
	report.SignatureInfo.Issuer = leaf.Issuer.String()
	report.SignatureInfo.CommonName = leaf.Subject.CommonName
	report.SignatureInfo.CertSerialNumber = leaf.SerialNumber.String()

	alg, err := signer.ParseAlgorithm(claim.Alg)
	if err != nil {
		s.addStatus(StatusCredentialInvalid, url, err.Error())
		return
	}
	if err := verifySignature(alg, leaf, wm.Claim, wm.Signature); err != nil {
		s.addStatus(StatusSignatureMismatch, url, err.Error())
	}
}

// Embed signs def for the asset in input. When the asset already carries a
// store, the new manifest is appended and records the previous active
// manifest as its parent ingredient.
func (e *LocalEngine) Embed(def *Definition, format string, input io.ReadSeeker, s Signer) ([]byte, error) {
	if def == nil || def.Manifest == nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindEngine).
			Op("embed").
			Detail("no manifest definition").
			Build()
	}
	if err := def.Manifest.Validate(); err != nil {
		return nil, err
	}

	f, ok := NormalizeFormat(format)
	if !ok || f != FormatJPEG {
		return nil, unsupported("embed", format)
	}

	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}

	jf, err := parseJPEG(data)
	if err != nil {
		return nil, errors.Engine(errors.PhaseEngine, "embed", err)
	}

	ws := &wireStore{Version: storeVersion}
	var parent *wireManifest
	if raw, found, err := jf.store(); err != nil {
		return nil, errors.Engine(errors.PhaseEngine, "embed", err)
	} else if found {
		existing, err := decodeWireStore(raw)
		if err != nil {
			return nil, errors.Engine(errors.PhaseEngine, "embed", err)
		}
		ws.Manifests = existing.Manifests
		parent = &ws.Manifests[len(ws.Manifests)-1]
	}

	wm, err := e.buildManifest(def, f, jf.encode(nil), parent, s)
	if err != nil {
		return nil, err
	}
	ws.Manifests = append(ws.Manifests, *wm)

	store, err := encodeStore(ws)
	if err != nil {
		return nil, errors.Engine(errors.PhaseEngine, "embed", err)
	}
	if def.Sidecar {
		return store, nil
	}
	return jf.encode(store), nil
}

func (e *LocalEngine) buildManifest(def *Definition, format string, asset []byte, parent *wireManifest, s Signer) (*wireManifest, error) {
	m := def.Manifest

	certs := s.CertificateChain()
	if len(certs) == 0 {
		return nil, errors.Configuration(errors.PhaseEngine, "signer has no certificate chain", nil)
	}

	label := m.Label
	if label == "" {
		label = newLabel(m.Vendor)
	}
	instanceID := m.InstanceID
	if instanceID == "" {
		instanceID = newInstanceID()
	}
	claimFormat := format
	if m.Format != "" {
		claimFormat, _ = NormalizeFormat(m.Format)
	}

	claim := wireClaim{
		Generator:  m.ClaimGenerator,
		Title:      m.Title,
		Format:     claimFormat,
		InstanceID: instanceID,
		Thumbnail:  toWireRef(m.Thumbnail),
		DataHash:   keyedHash(assetDomainKey, asset),
		Alg:        s.Algorithm().String(),
		SignedAt:   e.now().UTC().Unix(),
		RemoteURL:  def.RemoteURL,
	}
	if url, ok := s.TimeAuthorityURL(); ok {
		claim.TimeAuthority = url
	}

	wm := &wireManifest{Label: label, Certs: certs}

	for i, a := range m.Assertions {
		wa, err := encodeAssertion(a)
		if err != nil {
			return nil, err
		}
		encoded, err := marshalCBOR(wa)
		if err != nil {
			return nil, errors.Engine(errors.PhaseEngine, "embed", err)
		}
		wm.Assertions = append(wm.Assertions, wa)
		claim.Assertions = append(claim.Assertions, hashedURI{
			URL:  assertionURL(i, a.Label),
			Hash: keyedHash(assertionDomainKey, encoded),
		})
	}

	hasParent := false
	for _, ing := range m.Ingredients {
		rel := ing.Relationship
		if rel == "" {
			rel = RelationshipComponentOf
		}
		hasParent = hasParent || rel == RelationshipParentOf
		claim.Ingredients = append(claim.Ingredients, wireIngredient{
			Title:          ing.Title,
			Format:         ing.Format,
			InstanceID:     ing.InstanceID,
			Relationship:   rel,
			ActiveManifest: ing.ActiveManifest,
			Thumbnail:      toWireRef(ing.Thumbnail),
		})
	}
	if parent != nil && !hasParent {
		var prev wireClaim
		if err := unmarshalCBOR(parent.Claim, &prev); err != nil {
			return nil, errors.Engine(errors.PhaseEngine, "embed", err)
		}
		claim.Ingredients = append(claim.Ingredients, wireIngredient{
			Title:          prev.Title,
			Format:         prev.Format,
			InstanceID:     prev.InstanceID,
			Relationship:   RelationshipParentOf,
			ActiveManifest: parent.Label,
		})
	}

	refs := referencedResources(m)
	for _, id := range refs {
		if _, ok := def.Resources[id]; !ok {
			return nil, errors.NotFound(errors.PhaseEngine, "resource "+id)
		}
	}
	if len(def.Resources) > 0 {
		wm.Resources = make(map[string][]byte, len(def.Resources))
		for _, id := range resourceIDs(def.Resources) {
			data := def.Resources[id]
			wm.Resources[id] = data
			claim.Resources = append(claim.Resources, hashedURI{
				URL:  resourceURL(id),
				Hash: keyedHash(resourceDomainKey, data),
			})
		}
	}

	claimBytes, err := marshalCBOR(claim)
	if err != nil {
		return nil, errors.Engine(errors.PhaseEngine, "embed", err)
	}
	sig, err := s.Sign(claimBytes)
	if err != nil {
		return nil, err
	}
	if len(sig) > s.ReserveSize() {
		return nil, errors.New(errors.PhaseEngine, errors.KindFFI).
			Op("embed").
			Detail("signature of %d bytes exceeds reserve of %d", len(sig), s.ReserveSize()).
			Build()
	}

	wm.Claim = claimBytes
	wm.Signature = sig
	if st, ok := s.(OCSPStapler); ok {
		wm.OCSP = st.OCSPResponse()
	}
	return wm, nil
}

func referencedResources(m *Manifest) []string {
	seen := map[string]bool{}
	if m.Thumbnail != nil {
		seen[m.Thumbnail.Identifier] = true
	}
	for _, ing := range m.Ingredients {
		if ing.Thumbnail != nil {
			seen[ing.Thumbnail.Identifier] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
