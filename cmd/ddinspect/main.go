// Command ddinspect parses a device description offline and prints the
// normalized device, its config schema or the warnings as JSON.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/devices"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/ingest"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	exitFatal    = 1
	exitWarnings = 2
)

type options struct {
	format   string
	verbose  bool
	strict   bool
	validate bool
	stdvars  string
	units    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ddinspect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.format, "format", "schema", "output: device | schema | warnings")
	fs.BoolVar(&opts.verbose, "v", false, "log parser diagnostics to stderr")
	fs.BoolVar(&opts.strict, "strict", false, "exit with status 2 when warnings were reported")
	fs.BoolVar(&opts.validate, "validate", false, "check the composed schema against the output contract")
	fs.StringVar(&opts.stdvars, "stdvars", "", "standard variable table overriding the built-in one")
	fs.StringVar(&opts.units, "units", "", "unit table overriding the built-in one")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ddinspect [flags] <file>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitFatal
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitFatal
	}

	warnings, err := inspect(fs.Arg(0), opts, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "ddinspect: %v\n", err)
		return exitFatal
	}
	if opts.strict && warnings > 0 {
		return exitWarnings
	}
	return 0
}

func inspect(path string, opts options, stdout io.Writer) (int, error) {
	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return 0, fmt.Errorf("failed to create logger: %w", err)
		}
		defer l.Sync()
		logger = l
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	cat, err := catalog.Load(opts.stdvars, opts.units)
	if err != nil {
		return 0, err
	}

	loaded, err := devices.NewLoader(cat, ingest.DefaultLimits(), time.Minute, logger).Load(path, data)
	if err != nil {
		return 0, err
	}
	d := loaded.Result.Device
	d.ContentHash = loaded.Package.Hash

	composer := devices.NewComposer(cat, logger)
	schema, composeWarnings, err := composer.ComposeJSON(d)
	if err != nil {
		return 0, err
	}

	if opts.validate {
		v, err := devices.NewValidator()
		if err != nil {
			return 0, err
		}
		if err := v.Validate(schema); err != nil {
			return 0, err
		}
	}

	warnings := append(append([]types.Issue{}, loaded.Result.Warnings...), composeWarnings...)

	var out []byte
	switch opts.format {
	case "schema":
		out = schema
	case "device":
		out, err = json.MarshalIndent(d, "", "  ")
	case "warnings":
		out, err = json.MarshalIndent(warnings, "", "  ")
	default:
		return 0, errors.New("unknown -format " + opts.format)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to encode output: %w", err)
	}

	if _, err := fmt.Fprintln(stdout, string(out)); err != nil {
		return 0, err
	}
	return len(warnings), nil
}
