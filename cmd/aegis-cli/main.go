package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/registry"
	"github.com/samijaber1/aegis-tracker/internal/replay"
	"github.com/samijaber1/aegis-tracker/internal/slo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		os.Exit(runValidate(os.Args[2:], os.Stdout, os.Stderr))
	case "replay":
		os.Exit(runReplay(os.Args[2:], os.Stdout, os.Stderr))
	default:
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: aegis <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  validate --definitions <glob>                      Validate SLO definition files")
	fmt.Fprintln(w, "  replay --definitions <glob> --fixture <file>       Replay observations and print summaries")
	fmt.Fprintln(w)
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pattern := fs.String("definitions", "", "glob matching SLO definition YAML files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *pattern == "" {
		fmt.Fprintln(stderr, "Error: --definitions flag is required")
		fs.Usage()
		return 1
	}

	validator, err := slo.NewValidator(slo.DefaultSettings())
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	errs := validator.ValidateGlob(*pattern)
	if len(errs) == 0 {
		defs, err := validator.Load(*pattern)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "✓ %d SLO definition(s) are valid\n", len(defs))
		for _, raw := range defs {
			def, err := slo.Normalize(raw, slo.DefaultSettings())
			if err != nil {
				continue
			}
			fmt.Fprintf(stdout, "  %s (window %s, target %g)\n", def.ID, slo.FormatWindow(def.WindowMinutes), def.TargetAvailability)
		}
		return 0
	}

	// Group errors by file
	errorsByFile := make(map[string][]slo.ValidationError)
	for _, e := range errs {
		errorsByFile[e.Source] = append(errorsByFile[e.Source], e)
	}

	var files []string
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(stderr, "✗ Validation failed with %d error(s):\n\n", len(errs))
	for _, file := range files {
		for _, e := range errorsByFile[file] {
			fmt.Fprintln(stderr, e.Error())
		}
	}

	return 1
}

func runReplay(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pattern := fs.String("definitions", "", "glob matching SLO definition YAML files")
	fixturePath := fs.String("fixture", "", "JSON file with recorded observations")
	nowFlag := fs.String("now", "", "evaluation time (RFC 3339); defaults to the newest observation")
	includeDefinition := fs.Bool("include-definition", false, "include normalized definitions in the output")
	seed := fs.Uint64("seed", 1, "latency sampling seed")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *pattern == "" || *fixturePath == "" {
		fmt.Fprintln(stderr, "Error: --definitions and --fixture flags are required")
		fs.Usage()
		return 1
	}

	validator, err := slo.NewValidator(slo.DefaultSettings())
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}
	defs, err := validator.Load(*pattern)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fixture, err := replay.LoadFile(*fixturePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	now, ok := fixture.Latest()
	if *nowFlag != "" {
		now, err = time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --now: %v\n", err)
			return 1
		}
	} else if !ok {
		now = time.Now()
	}

	// Untimed records land at the evaluation instant.
	reg, err := registry.New(defs,
		registry.WithClock(func() time.Time { return now }),
		registry.WithRandSeed(*seed),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	res := fixture.Replay(reg)
	fmt.Fprintf(stderr, "replayed %d observation(s), %d discarded\n", res.Accepted, res.Discarded)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reg.Summaries(registry.SummaryOptions{IncludeDefinition: *includeDefinition})); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
