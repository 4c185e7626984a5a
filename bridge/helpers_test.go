package bridge

import (
	"bytes"
	"testing"

	"github.com/wippyai/c2pa-bridge/internal/testutil"
	"github.com/wippyai/c2pa-bridge/lasterror"
	"github.com/wippyai/c2pa-bridge/provenance"
	"github.com/wippyai/c2pa-bridge/signer"
)

const minimalSpec = `{"claim_generator":"test","format":"image/jpeg","title":"t"}`

// newTestAPI returns an API with a private channel and a fixed scope, so
// tests do not depend on which OS thread a goroutine runs on.
func newTestAPI(t *testing.T, opts ...Option) *API {
	t.Helper()
	opts = append([]Option{
		WithChannel(&lasterror.Channel{}),
		WithScope(func() lasterror.Scope { return 1 }),
	}, opts...)
	a := New(opts...)
	t.Cleanup(func() { a.Close() })
	return a
}

func signerConfig(t *testing.T, alg string) (signer.Callback, signer.Config) {
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
	return cb, signer.Config{Algorithm: alg, Certs: creds.CertPEM}
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	cb, cfg := signerConfig(t, "es256")
	s, err := signer.NewWithConfig(cb, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func signedAsset(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	if err := b.Load(minimalSpec); err != nil {
		t.Fatal(err)
	}
	out, err := b.Sign(testSigner(t), bytes.NewReader(testutil.JPEG(t, 16, 16)), nil)
	if err != nil {
		t.Fatal(err)
	}
	return out
}
