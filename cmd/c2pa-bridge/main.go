// Command c2pa-bridge reads, signs and inspects provenance manifests through
// the bridge, and runs WebAssembly guests against the bridge host module.
//
//	c2pa-bridge version
//	c2pa-bridge formats [--mime]
//	c2pa-bridge read FILE [--format F] [-i] [--envelope]
//	c2pa-bridge sign IN OUT --manifest M.json --signer S.yaml [--sidecar] [--remote-url URL] [--resource ID=PATH]
//	c2pa-bridge resource FILE --id ID --out PATH [--manifest LABEL]
//	c2pa-bridge run GUEST.wasm [--func NAME] [--dir DIR] [-- ARGS...]
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// env is what a subcommand runs against.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *zap.Logger
	// tty reports whether stdout is an interactive terminal.
	tty bool
}

type command struct {
	name    string
	usage   string
	summary string
	// setup registers the command's flags and returns its body.
	setup func(fs *pflag.FlagSet) func(e *env, args []string) error
}

var errUsage = stderrors.New("usage")

func main() {
	e := &env{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		tty:    isTerminal(os.Stdout),
	}
	if err := run(e, os.Args[1:]); err != nil {
		if !stderrors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(e *env, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(e.stderr)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	for _, c := range commands() {
		if c.name != args[0] {
			continue
		}
		fs := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
		fs.SetOutput(e.stderr)
		fs.Usage = func() {
			fmt.Fprintf(e.stderr, "usage: c2pa-bridge %s\n\n", c.usage)
			fs.PrintDefaults()
		}
		verbose := fs.BoolP("verbose", "v", false, "log bridge activity to stderr")
		body := c.setup(fs)
		if err := fs.Parse(args[1:]); err != nil {
			if stderrors.Is(err, pflag.ErrHelp) {
				return nil
			}
			// ContinueOnError leaves reporting to the caller
			fmt.Fprintln(e.stderr, err)
			fs.Usage()
			return errUsage
		}

		if e.log == nil {
			e.log = zap.NewNop()
			if *verbose {
				log, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				e.log = log
				defer log.Sync()
			}
		}
		return body(e, fs.Args())
	}

	fmt.Fprintf(e.stderr, "unknown command %q\n\n", args[0])
	printUsage(e.stderr)
	return errUsage
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: c2pa-bridge <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
