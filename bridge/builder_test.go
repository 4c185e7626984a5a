package bridge

import (
	"bytes"
	"testing"

	"github.com/wippyai/c2pa-bridge/errors"
	"github.com/wippyai/c2pa-bridge/internal/testutil"
	"github.com/wippyai/c2pa-bridge/provenance"
	"github.com/wippyai/c2pa-bridge/stream"
)

func TestParseSettings(t *testing.T) {
	url := "https://example.com/m.c2pa"
	tests := []struct {
		name    string
		text    string
		want    Settings
		wantErr bool
	}{
		{name: "empty", text: "", want: Settings{}},
		{name: "blank", text: "  \n", want: Settings{}},
		{name: "null remote", text: `{"remote_url": null}`, want: Settings{}},
		{name: "empty remote", text: `{"remote_url": ""}`, want: Settings{}},
		{name: "remote", text: `{"remote_url": "` + url + `"}`, want: Settings{RemoteURL: &url}},
		{name: "sidecar with comment", text: "{\n// embed nothing\n\"sidecar\": true,\n}", want: Settings{Sidecar: true}},
		{name: "unknown field", text: `{"side_car": true}`, wantErr: true},
		{name: "wrong type", text: `{"sidecar": "yes"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettings(tt.text)
			if tt.wantErr {
				if !errors.IsKind(err, errors.KindConfiguration) {
					t.Fatalf("ParseSettings = %v, want configuration error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Sidecar != tt.want.Sidecar {
				t.Fatalf("Sidecar = %v", got.Sidecar)
			}
			if (got.RemoteURL == nil) != (tt.want.RemoteURL == nil) {
				t.Fatalf("RemoteURL = %v, want %v", got.RemoteURL, tt.want.RemoteURL)
			}
			if got.RemoteURL != nil && *got.RemoteURL != *tt.want.RemoteURL {
				t.Fatalf("RemoteURL = %q", *got.RemoteURL)
			}
		})
	}
}

func TestBuilder_Unconfigured(t *testing.T) {
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	_, err := b.Sign(testSigner(t), bytes.NewReader(testutil.JPEG(t, 8, 8)), nil)
	if !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("Sign unconfigured = %v", err)
	}
}

func TestBuilder_LoadFailureKeepsDefinition(t *testing.T) {
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	if err := b.Load(minimalSpec); err != nil {
		t.Fatal(err)
	}
	if err := b.Load(`{"claim_generator": `); !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("Load malformed = %v", err)
	}
	if _, err := b.Sign(testSigner(t), bytes.NewReader(testutil.JPEG(t, 8, 8)), nil); err != nil {
		t.Fatalf("Sign after failed Load = %v", err)
	}
}

func TestBuilder_SignTwice(t *testing.T) {
	engine := provenance.NewLocalEngine()
	b := NewBuilder(engine, Settings{})
	if err := b.Load(minimalSpec); err != nil {
		t.Fatal(err)
	}
	s := testSigner(t)
	asset := testutil.JPEG(t, 16, 16)

	for i := 0; i < 2; i++ {
		out := stream.NewBuffer(nil)
		signed, err := b.Sign(s, bytes.NewReader(asset), stream.New(out))
		if err != nil {
			t.Fatalf("Sign #%d: %v", i, err)
		}
		if !bytes.Equal(out.Bytes(), signed) {
			t.Fatalf("Sign #%d: output stream differs from returned bytes", i)
		}
		store, err := engine.Read("image/jpeg", signed)
		if err != nil {
			t.Fatal(err)
		}
		if !store.Valid() || len(store.Labels()) != 1 {
			t.Fatalf("Sign #%d: store = %+v", i, store)
		}
	}
}

func TestBuilder_SniffsFormat(t *testing.T) {
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	if err := b.Load(`{"claim_generator":"test"}`); err != nil {
		t.Fatal(err)
	}
	s := testSigner(t)

	if _, err := b.Sign(s, bytes.NewReader(testutil.JPEG(t, 8, 8)), nil); err != nil {
		t.Fatalf("Sign without format = %v", err)
	}
	if _, err := b.Sign(s, bytes.NewReader([]byte("GIF89a")), nil); !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("Sign unknown format = %v", err)
	}
}

func TestBuilder_SidecarAndRemote(t *testing.T) {
	url := "https://example.com/m.c2pa"
	engine := provenance.NewLocalEngine()
	b := NewBuilder(engine, Settings{Sidecar: true, RemoteURL: &url})
	if err := b.Load(minimalSpec); err != nil {
		t.Fatal(err)
	}

	side, err := b.Sign(testSigner(t), bytes.NewReader(testutil.JPEG(t, 8, 8)), nil)
	if err != nil {
		t.Fatal(err)
	}
	store, err := engine.Read(provenance.DetectFormat(side), side)
	if err != nil {
		t.Fatal(err)
	}
	active, _ := store.Active()
	if active.RemoteURL != url {
		t.Fatalf("remote_url = %q", active.RemoteURL)
	}
}

func TestBuilder_Contention(t *testing.T) {
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	if err := b.Load(minimalSpec); err != nil {
		t.Fatal(err)
	}
	asset := testutil.JPEG(t, 8, 8)

	buf := stream.NewBuffer(asset)
	var inner []error
	called := false
	input := stream.New(&stream.Funcs{
		ReadFunc: func(p []byte) int64 {
			if !called {
				called = true
				inner = append(inner,
					b.Load(minimalSpec),
					b.AddResource("x", nil),
				)
				_, err := b.Sign(testSigner(t), bytes.NewReader(asset), nil)
				inner = append(inner, err)
			}
			return buf.Read(p)
		},
		SeekFunc: buf.Seek,
	})

	if _, err := b.Sign(testSigner(t), input, nil); err != nil {
		t.Fatalf("outer Sign = %v", err)
	}
	for i, err := range inner {
		if !errors.IsKind(err, errors.KindLockContention) {
			t.Fatalf("inner call %d = %v, want lock_contention", i, err)
		}
	}
}

func TestBuilder_AddResourceRejectsEmptyID(t *testing.T) {
	b := NewBuilder(provenance.NewLocalEngine(), Settings{})
	if err := b.AddResource("", []byte("x")); !errors.IsKind(err, errors.KindEngine) {
		t.Fatalf("AddResource empty id = %v", err)
	}
}
