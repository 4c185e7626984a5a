package bridge

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/internal/testutil"
	"github.com/wippyai/c2pa-bridge/provenance"
	"github.com/wippyai/c2pa-bridge/stream"
)

func TestReader_Empty(t *testing.T) {
	r := NewReader(provenance.NewLocalEngine())

	if _, err := r.JSON(); errors.CodeOf(err) != errors.CodeNotFound {
		t.Fatalf("JSON on empty reader = %v", err)
	}
	if _, err := r.Resource("", "thumb"); errors.CodeOf(err) != errors.CodeNotFound {
		t.Fatalf("Resource on empty reader = %v", err)
	}
	if err := r.ResourceWrite("", "thumb", &bytes.Buffer{}); errors.CodeOf(err) != errors.CodeNotFound {
		t.Fatalf("ResourceWrite on empty reader = %v", err)
	}
}

func TestReader_ReadReplacesStore(t *testing.T) {
	r := NewReader(provenance.NewLocalEngine())
	asset := signedAsset(t)

	text, err := r.Read("image/jpeg", bytes.NewReader(asset))
	if err != nil {
		t.Fatal(err)
	}
	var report struct {
		ActiveManifest string `json:"active_manifest"`
		Manifests      map[string]struct {
			Title string `json:"title"`
		} `json:"manifests"`
		ValidationStatus []any `json:"validation_status"`
	}
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		t.Fatal(err)
	}
	if report.Manifests[report.ActiveManifest].Title != "t" || len(report.ValidationStatus) != 0 {
		t.Fatalf("report = %s", text)
	}

	again, err := r.JSON()
	if err != nil || again != text {
		t.Fatalf("JSON after Read = %v", err)
	}

	// a failed read keeps the previous store
	if _, err := r.Read("image/jpeg", bytes.NewReader(testutil.JPEG(t, 8, 8))); errors.CodeOf(err) != errors.CodeNotFound {
		t.Fatalf("Read unsigned = %v", err)
	}
	if kept, err := r.JSON(); err != nil || kept != text {
		t.Fatalf("store changed after failed read: %v", err)
	}

	// a second asset replaces the store
	other := signedAsset(t)
	text2, err := r.Read("jpg", bytes.NewReader(other))
	if err != nil {
		t.Fatal(err)
	}
	if text2 == text {
		t.Fatal("second read should replace the report")
	}
}

func TestReader_StreamFailure(t *testing.T) {
	r := NewReader(provenance.NewLocalEngine())
	src := stream.New(&stream.Funcs{ReadFunc: func([]byte) int64 { return -1 }})

	if _, err := r.Read("image/jpeg", src); !errors.IsKind(err, errors.KindIO) {
		t.Fatalf("Read = %v, want io kind", err)
	}
}

func TestReader_Contention(t *testing.T) {
	r := NewReader(provenance.NewLocalEngine())
	asset := signedAsset(t)

	tests := []struct {
		name  string
		inner func() error
	}{
		{"json during read", func() error { _, err := r.JSON(); return err }},
		{"resource during read", func() error { _, err := r.Resource("", "x"); return err }},
		{"read during read", func() error { _, err := r.Read("image/jpeg", bytes.NewReader(asset)); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := stream.NewBuffer(asset)
			var inner error
			called := false
			src := stream.New(&stream.Funcs{ReadFunc: func(p []byte) int64 {
				if !called {
					called = true
					inner = tt.inner()
				}
				return buf.Read(p)
			}})

			if _, err := r.Read("image/jpeg", src); err != nil {
				t.Fatalf("outer Read = %v", err)
			}
			if !errors.IsKind(inner, errors.KindLockContention) {
				t.Fatalf("inner call = %v, want lock_contention", inner)
			}
			if _, err := r.JSON(); err != nil {
				t.Fatalf("JSON after contention = %v", err)
			}
		})
	}
}

func TestReader_ResourceWrite(t *testing.T) {
	thumb := testutil.JPEG(t, 4, 4)
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	if err := b.Load(`{"claim_generator":"g","thumbnail":{"format":"image/jpeg","identifier":"thumb.jpg"}}`); err != nil {
		t.Fatal(err)
	}
	if err := b.AddResource("thumb.jpg", thumb); err != nil {
		t.Fatal(err)
	}
	signed, err := b.Sign(testSigner(t), bytes.NewReader(testutil.JPEG(t, 8, 8)), nil)
	if err != nil {
		t.Fatal(err)
	}

	r := NewReader(provenance.NewLocalEngine())
	if _, err := r.Read("image/jpeg", bytes.NewReader(signed)); err != nil {
		t.Fatal(err)
	}
	store, err := r.Store()
	if err != nil {
		t.Fatal(err)
	}

	out := stream.NewBuffer(nil)
	if err := r.ResourceWrite(store.ActiveManifest, "thumb.jpg", stream.New(out)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), thumb) {
		t.Fatal("resource bytes mismatch")
	}

	err = r.ResourceWrite("urn:uuid:missing", "thumb.jpg", stream.New(stream.NewBuffer(nil)))
	if errors.CodeOf(err) != errors.CodeNotFound || !strings.Contains(err.Error(), "urn:uuid:missing") {
		t.Fatalf("missing manifest = %v", err)
	}
}

func TestReader_DetectsFormat(t *testing.T) {
	r := NewReader(provenance.NewLocalEngine())

	if _, err := r.Read("", bytes.NewReader(signedAsset(t))); err != nil {
		t.Fatalf("Read without format = %v", err)
	}
	if _, err := r.Read("", bytes.NewReader([]byte("GIF89a"))); !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("Read unknown content = %v", err)
	}
}
