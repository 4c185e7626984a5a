package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wippyai/c2pa-bridge/internal/testutil"
	"github.com/wippyai/c2pa-bridge/provenance"
)

func testEnv() (*env, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &env{
		stdin:  strings.NewReader(""),
		stdout: &stdout,
		stderr: &stderr,
		log:    zap.NewNop(),
	}, &stdout, &stderr
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// signingFixture writes credentials, a signer YAML with relative paths and
// a manifest definition into a temp dir.
func signingFixture(t *testing.T, alg string) (dir, signerYAML, manifest string) {
	t.Helper()
	dir = t.TempDir()
	creds := testutil.NewCredentials(t, alg)
	sub := filepath.Join(dir, "keys")
	if err := os.Mkdir(sub, 0o700); err != nil {
		t.Fatal(err)
	}
	writeFile(t, sub, "cert.pem", creds.CertPEM)
	writeFile(t, sub, "key.pem", creds.KeyPEM)
	signerYAML = writeFile(t, sub, "signer.yaml", []byte("alg: "+alg+"\nsign_cert: cert.pem\nprivate_key: key.pem\n"))
	manifest = writeFile(t, dir, "manifest.json", []byte(`{
		// edited in the darkroom
		"claim_generator": "cli-test/1.0",
		"title": "cli.jpg",
		"thumbnail": {"format": "image/jpeg", "identifier": "thumb.jpg"},
	}`))
	return dir, signerYAML, manifest
}

func TestRun_VersionAndFormats(t *testing.T) {
	e, stdout, _ := testEnv()
	if err := run(e, []string{"version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "c2pa-bridge/0.1.0 ") {
		t.Fatalf("version = %q", stdout.String())
	}

	e, stdout, _ = testEnv()
	if err := run(e, []string{"formats"}); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "c2pa\njpeg\njpg\n" {
		t.Fatalf("formats = %q", stdout.String())
	}

	e, stdout, _ = testEnv()
	if err := run(e, []string{"formats", "--mime"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "image/jpeg") {
		t.Fatalf("formats --mime = %q", stdout.String())
	}
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"no command", nil, "commands:"},
		{"unknown command", []string{"frobnicate"}, `unknown command "frobnicate"`},
		{"unknown flag", []string{"read", "--bogus", "x.jpg"}, "unknown flag: --bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, stderr := testEnv()
			if err := run(e, tt.args); err != errUsage {
				t.Fatalf("run = %v, want usage error", err)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Fatalf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}

	e, _, stderr := testEnv()
	if err := run(e, []string{"read", "--bogus", "x.jpg"}); err != errUsage {
		t.Fatal(err)
	}
	if !strings.Contains(stderr.String(), "usage: c2pa-bridge read") {
		t.Fatalf("flag error should print command usage: %q", stderr.String())
	}
}

func TestRun_SignReadResource(t *testing.T) {
	dir, signerYAML, manifest := signingFixture(t, "es256")
	thumb := testutil.JPEG(t, 4, 4)
	in := writeFile(t, dir, "in.jpg", testutil.JPEG(t, 16, 16))
	thumbPath := writeFile(t, dir, "thumb.jpg", thumb)
	out := filepath.Join(dir, "out.jpg")

	e, stdout, _ := testEnv()
	err := run(e, []string{"sign", in, out, "--manifest", manifest, "--signer", signerYAML, "--resource", "thumb.jpg=" + thumbPath})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "wrote "+out) {
		t.Fatalf("sign output = %q", stdout.String())
	}

	e, stdout, _ = testEnv()
	if err := run(e, []string{"read", out}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), `"title": "cli.jpg"`) || strings.Contains(stdout.String(), "validation_status") {
		t.Fatalf("read = %s", stdout.String())
	}

	extracted := filepath.Join(dir, "extracted.jpg")
	e, _, _ = testEnv()
	if err := run(e, []string{"resource", out, "--id", "thumb.jpg", "--out", extracted}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(extracted)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, thumb) {
		t.Fatal("extracted resource differs")
	}

	e, stdout, _ = testEnv()
	if err := run(e, []string{"read", out, "--envelope"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), `"ok"`) {
		t.Fatalf("envelope = %s", stdout.String())
	}
}

func TestRun_SignSidecar(t *testing.T) {
	dir, signerYAML, _ := signingFixture(t, "ed25519")
	manifest := writeFile(t, dir, "plain.json", []byte(`{"claim_generator":"cli-test/1.0"}`))
	in := writeFile(t, dir, "in.jpg", testutil.JPEG(t, 8, 8))
	out := filepath.Join(dir, "out.c2pa")

	e, _, _ := testEnv()
	err := run(e, []string{"sign", in, out, "--manifest", manifest, "--signer", signerYAML,
		"--sidecar", "--remote-url", "https://example.com/out.c2pa"})
	if err != nil {
		t.Fatal(err)
	}

	e, stdout, _ := testEnv()
	if err := run(e, []string{"read", out}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "https://example.com/out.c2pa") {
		t.Fatalf("read sidecar = %s", stdout.String())
	}
}

func TestRun_ReadFailures(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "plain.jpg", testutil.JPEG(t, 8, 8))

	e, _, _ := testEnv()
	if err := run(e, []string{"read", plain}); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("read unsigned = %v", err)
	}

	e, stdout, _ := testEnv()
	if err := run(e, []string{"read", plain, "--envelope"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "NotFound") {
		t.Fatalf("envelope = %s", stdout.String())
	}

	e, _, _ = testEnv()
	if err := run(e, []string{"read", plain, "-i"}); err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("read -i without a terminal = %v", err)
	}
}

func TestLoadSigner(t *testing.T) {
	dir, signerYAML, _ := signingFixture(t, "ps256")
	keys := filepath.Dir(signerYAML)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "relative paths", yaml: "alg: ps256\nsign_cert: keys/cert.pem\nprivate_key: keys/key.pem\n"},
		{name: "absolute paths", yaml: "alg: PS256\nsign_cert: " + filepath.Join(keys, "cert.pem") + "\nprivate_key: " + filepath.Join(keys, "key.pem") + "\n"},
		{name: "missing key", yaml: "alg: ps256\nsign_cert: keys/cert.pem\n", wantErr: "required"},
		{name: "unknown algorithm", yaml: "alg: md5\nsign_cert: keys/cert.pem\nprivate_key: keys/key.pem\n", wantErr: "unsupported algorithm"},
		{name: "unknown field", yaml: "alg: ps256\ncert: keys/cert.pem\n", wantErr: "field cert not found"},
		{name: "missing file", yaml: "alg: ps256\nsign_cert: nope.pem\nprivate_key: keys/key.pem\n", wantErr: "nope.pem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "signer.yaml", []byte(tt.yaml))
			s, err := loadSigner(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("loadSigner = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s.Algorithm() != "ps256" || len(s.CertificateChain()) != 1 {
				t.Fatalf("signer = %s with %d certs", s.Algorithm(), len(s.CertificateChain()))
			}
		})
	}
}

func TestBrowserModel(t *testing.T) {
	dir, signerYAML, manifest := signingFixture(t, "es256")
	in := writeFile(t, dir, "in.jpg", testutil.JPEG(t, 8, 8))
	once := filepath.Join(dir, "once.jpg")
	twice := filepath.Join(dir, "twice.jpg")
	plain := writeFile(t, dir, "plain.json", []byte(`{"claim_generator":"cli-test/1.0","title":"second"}`))

	e, _, _ := testEnv()
	thumbPath := writeFile(t, dir, "thumb.jpg", testutil.JPEG(t, 4, 4))
	if err := run(e, []string{"sign", in, once, "--manifest", manifest, "--signer", signerYAML, "--resource", "thumb.jpg=" + thumbPath}); err != nil {
		t.Fatal(err)
	}
	if err := run(e, []string{"sign", once, twice, "--manifest", plain, "--signer", signerYAML}); err != nil {
		t.Fatal(err)
	}

	r, _, err := readStore(twice, provenance.FormatJPEG)
	if err != nil {
		t.Fatal(err)
	}
	store, err := r.Store()
	if err != nil {
		t.Fatal(err)
	}

	m := newBrowserModel("twice.jpg", store)
	view := m.View()
	if !strings.Contains(view, "(active)") || !strings.Contains(view, "second") || !strings.Contains(view, "cli.jpg") {
		t.Fatalf("list view = %s", view)
	}
	if m.labels[0] != store.ActiveManifest {
		t.Fatal("active manifest is not listed first")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateDetail {
		t.Fatal("enter did not open the manifest")
	}
	if detail := m.describe(m.labels[1]); !strings.Contains(detail, "cli.jpg") || !strings.Contains(detail, "thumb.jpg") {
		t.Fatalf("detail = %s", detail)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != stateList || m.selected != 1 {
		t.Fatalf("esc: state=%d selected=%d", m.state, m.selected)
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatal("q did not quit")
	}
}

func TestRun_Ingredient(t *testing.T) {
	dir, signerYAML, manifest := signingFixture(t, "es256")
	thumb := testutil.JPEG(t, 4, 4)
	in := writeFile(t, dir, "in.jpg", testutil.JPEG(t, 16, 16))
	thumbPath := writeFile(t, dir, "thumb.jpg", thumb)
	out := filepath.Join(dir, "out.jpg")

	e, _, _ := testEnv()
	err := run(e, []string{"sign", in, out, "--manifest", manifest, "--signer", signerYAML, "--resource", "thumb.jpg=" + thumbPath})
	if err != nil {
		t.Fatal(err)
	}

	data := filepath.Join(dir, "data")
	e, stdout, _ := testEnv()
	if err := run(e, []string{"ingredient", out, "-d", data}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), `"title": "out.jpg"`) || !strings.Contains(stdout.String(), provenance.ManifestDataID) {
		t.Fatalf("ingredient = %s", stdout.String())
	}
	got, err := os.ReadFile(filepath.Join(data, "thumbnail.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, thumb) {
		t.Fatal("written thumbnail differs")
	}
	if _, err := os.Stat(filepath.Join(data, provenance.ManifestDataID)); err != nil {
		t.Fatal(err)
	}

	e, _, _ = testEnv()
	if err := run(e, []string{"ingredient", filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Fatal("ingredient of a missing file succeeded")
	}
}
