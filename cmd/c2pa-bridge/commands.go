package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wippyai/c2pa-bridge/bridge"
	"github.com/wippyai/c2pa-bridge/host"
	"github.com/wippyai/c2pa-bridge/provenance"
)

func commands() []command {
	return []command{
		{name: "version", usage: "version", summary: "print bridge and engine versions", setup: versionCmd},
		{name: "formats", usage: "formats [--mime]", summary: "list supported asset formats", setup: formatsCmd},
		{name: "read", usage: "read FILE [--format F] [-i] [--envelope]", summary: "print the manifest report of an asset", setup: readCmd},
		{name: "sign", usage: "sign IN OUT --manifest M.json --signer S.yaml", summary: "sign an asset", setup: signCmd},
		{name: "ingredient", usage: "ingredient FILE [--data-dir DIR]", summary: "describe an asset as an ingredient", setup: ingredientCmd},
		{name: "resource", usage: "resource FILE --id ID --out PATH [--manifest LABEL]", summary: "extract a manifest resource", setup: resourceCmd},
		{name: "run", usage: "run GUEST.wasm [--func NAME] [--dir DIR] [-- ARGS...]", summary: "run a wasm guest against the c2pa host module", setup: runCmd},
	}
}

func versionCmd(_ *pflag.FlagSet) func(e *env, args []string) error {
	return func(e *env, _ []string) error {
		api := bridge.New(bridge.WithLogger(e.log))
		defer api.Close()
		fmt.Fprintln(e.stdout, api.Version())
		return nil
	}
}

func formatsCmd(fs *pflag.FlagSet) func(e *env, args []string) error {
	mime := fs.Bool("mime", false, "list MIME types instead of extensions")
	return func(e *env, _ []string) error {
		engine := provenance.NewLocalEngine()
		list := engine.SupportedExtensions()
		if *mime {
			list = engine.SupportedFormats()
		}
		for _, f := range list {
			fmt.Fprintln(e.stdout, f)
		}
		return nil
	}
}

// formatOf picks the format for path: the explicit flag, then the file
// extension. An empty result lets the content decide.
func formatOf(path, flag string) string {
	if flag != "" {
		return flag
	}
	if canonical, ok := provenance.NormalizeFormat(filepath.Ext(path)); ok {
		return canonical
	}
	return ""
}

func readStore(path, format string) (*bridge.Reader, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if format == "" {
		format = provenance.DetectFormat(data)
	}
	r := bridge.NewReader(provenance.NewLocalEngine())
	report, err := r.Read(format, bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return r, report, nil
}

func readCmd(fs *pflag.FlagSet) func(e *env, args []string) error {
	format := fs.String("format", "", "asset format (MIME type or extension); detected when empty")
	interactive := fs.BoolP("interactive", "i", false, "browse the manifests in a terminal UI")
	envelope := fs.Bool("envelope", false, "wrap the report in an {\"ok\"|\"error\"} envelope")
	return func(e *env, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("read: expected one FILE, got %d arguments", len(args))
		}
		path := args[0]
		if *interactive && !e.tty {
			return fmt.Errorf("read -i needs a terminal on stdout")
		}

		if *envelope {
			api := bridge.New(bridge.WithLogger(e.log))
			defer api.Close()
			fmt.Fprintln(e.stdout, api.VerifyFileJSON(path))
			return nil
		}

		r, report, err := readStore(path, formatOf(path, *format))
		if err != nil {
			return err
		}
		e.log.Debug("manifest store read", zap.String("file", path))

		if !*interactive {
			fmt.Fprintln(e.stdout, report)
			return nil
		}
		store, err := r.Store()
		if err != nil {
			return err
		}
		return runBrowser(path, store)
	}
}

func ingredientCmd(fs *pflag.FlagSet) func(e *env, args []string) error {
	dataDir := fs.StringP("data-dir", "d", "", "write the manifest store and thumbnail here")
	return func(e *env, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("ingredient: expected one FILE, got %d arguments", len(args))
		}
		api := bridge.New(bridge.WithLogger(e.log))
		defer api.Close()

		var resp bridge.Response
		if err := json.Unmarshal([]byte(api.IngredientFromFileJSON(args[0], *dataDir)), &resp); err != nil {
			return err
		}
		if resp.Error != nil {
			return fmt.Errorf("ingredient: %s", resp.Error.Message)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, resp.Ok, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, out.String())
		return nil
	}
}

func signCmd(fs *pflag.FlagSet) func(e *env, args []string) error {
	manifest := fs.String("manifest", "", "manifest definition (JSON, comments allowed)")
	signerPath := fs.String("signer", "", "signer configuration (YAML)")
	sidecar := fs.Bool("sidecar", false, "write the bare manifest store instead of the signed asset")
	remote := fs.String("remote-url", "", "record this URL as the manifest's remote location")
	resources := fs.StringArray("resource", nil, "attach a resource as ID=PATH (repeatable)")
	return func(e *env, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("sign: expected IN and OUT, got %d arguments", len(args))
		}
		if *manifest == "" || *signerPath == "" {
			return fmt.Errorf("sign: --manifest and --signer are required")
		}
		in, out := args[0], args[1]

		def, err := os.ReadFile(*manifest)
		if err != nil {
			return err
		}
		s, err := loadSigner(*signerPath)
		if err != nil {
			return err
		}

		settings := bridge.Settings{Sidecar: *sidecar}
		if *remote != "" {
			settings.RemoteURL = remote
		}
		b := bridge.NewBuilder(provenance.NewLocalEngine(), settings)
		if err := b.Load(string(def)); err != nil {
			return err
		}
		for _, spec := range *resources {
			id, path, ok := strings.Cut(spec, "=")
			if !ok {
				return fmt.Errorf("sign: --resource %q is not ID=PATH", spec)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := b.AddResource(id, data); err != nil {
				return err
			}
		}

		src, err := os.Open(in)
		if err != nil {
			return err
		}
		defer src.Close()

		signed, err := b.Sign(s, src, nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, signed, 0o644); err != nil {
			return err
		}
		e.log.Info("signed", zap.String("in", in), zap.String("out", out), zap.Int("bytes", len(signed)))
		fmt.Fprintf(e.stdout, "wrote %s (%d bytes)\n", out, len(signed))
		return nil
	}
}

func resourceCmd(fs *pflag.FlagSet) func(e *env, args []string) error {
	label := fs.String("manifest", "", "manifest label; the active manifest when empty")
	id := fs.String("id", "", "resource identifier")
	outPath := fs.String("out", "", "output file, or - for stdout")
	format := fs.String("format", "", "asset format; detected when empty")
	return func(e *env, args []string) error {
		if len(args) != 1 || *id == "" || *outPath == "" {
			return fmt.Errorf("resource: expected FILE with --id and --out")
		}
		r, _, err := readStore(args[0], formatOf(args[0], *format))
		if err != nil {
			return err
		}

		var w io.Writer = e.stdout
		if *outPath != "-" {
			f, err := os.Create(*outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return r.ResourceWrite(*label, *id, w)
	}
}

func runCmd(fs *pflag.FlagSet) func(e *env, args []string) error {
	entry := fs.String("func", "_start", "guest export to call")
	dir := fs.String("dir", "", "host directory mounted as the guest's root")
	pages := fs.Uint32("memory-pages", 0, "guest memory limit in 64KiB pages")
	return func(e *env, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("run: expected GUEST.wasm")
		}
		wasm, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		h := host.New(host.WithLogger(e.log))
		defer h.Close()

		return h.Run(context.Background(), wasm, host.RunConfig{
			Entry:            *entry,
			Args:             args,
			Dir:              *dir,
			Stdin:            e.stdin,
			Stdout:           e.stdout,
			Stderr:           e.stderr,
			MemoryLimitPages: *pages,
		})
	}
}

// prettyJSON re-indents raw JSON for display, falling back to the input.
func prettyJSON(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
