package provenance

import (
	"bytes"
	"testing"

	"github.com/wippyai/c2pa-bridge/internal/testutil"
	"github.com/wippyai/c2pa-bridge/signer"
)

func newTestSigner(t *testing.T, alg string) *signer.Signer {
	t.Helper()

	creds := testutil.NewCredentials(t, alg)
	parsed, err := signer.ParseAlgorithm(alg)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := signer.NewKeyCallback(creds.Key, parsed)
	if err != nil {
		t.Fatal(err)
	}
	s, err := signer.NewWithConfig(cb, signer.Config{
		Algorithm:        alg,
		Certs:            creds.CertPEM,
		TimeAuthorityURL: "http://tsa.example",
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func minimalDefinition(t *testing.T) *Definition {
	t.Helper()
	m, err := ParseManifest(`{"claim_generator":"test","format":"image/jpeg","title":"t"}`)
	if err != nil {
		t.Fatal(err)
	}
	return &Definition{Manifest: m}
}

func sign(t *testing.T, e *LocalEngine, def *Definition, asset []byte, s Signer) []byte {
	t.Helper()
	out, err := e.Embed(def, "image/jpeg", bytes.NewReader(asset), s)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	return out
}
