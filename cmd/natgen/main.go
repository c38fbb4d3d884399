package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"github.com/xyproto/natgen"
)

const versionString = "natgen 0.1.0"

// main.go is the CLI driver: flag parsing matches the teacher's main.go
// (arch/os/output flags parsed before any positional argument), with
// NATGEN_* environment overrides layered on top via env/v2 the way the
// teacher never needed to (its own go.mod carries env/v2 but nothing in
// the teacher's main.go calls it).
func main() {
	var (
		archFlag    = flag.String("arch", "", "target architecture (amd64, arm64)")
		osFlag      = flag.String("os", "", "target OS (linux, macos, windows, raw)")
		outputFlag  = flag.String("o", "", "output file path")
		scenario    = flag.String("scenario", "hello", "demo program to generate (hello, arith, forbreak, rangefor, enum, escapes)")
		verbose     = flag.Bool("v", false, "verbose mode")
		version     = flag.Bool("version", false, "print version information and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println(versionString)
		return
	}

	archStr := *archFlag
	if archStr == "" {
		archStr = env.Str("NATGEN_ARCH", "auto")
	}
	osStr := *osFlag
	if osStr == "" {
		osStr = env.Str("NATGEN_OS", "linux")
	}
	outputPath := *outputFlag
	if outputPath == "" {
		outputPath = env.Str("NATGEN_OUTPUT", "a.out")
	}
	isVerbose := *verbose || env.Bool("NATGEN_VERBOSE")

	arch, err := natgen.ParseArch(archStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "natgen: %v\n", err)
		os.Exit(1)
	}
	targetOS, err := natgen.ParseOS(osStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "natgen: %v\n", err)
		os.Exit(1)
	}

	prog, ok := scenarioProgram(*scenario)
	if !ok {
		fmt.Fprintf(os.Stderr, "natgen: unknown scenario %q\n", *scenario)
		os.Exit(1)
	}

	outputMode := natgen.OutputSilent
	if isVerbose {
		outputMode = natgen.OutputStdout
	}

	prefs := natgen.Preferences{
		Arch:       arch,
		OS:         targetOS,
		IsVerbose:  isVerbose,
		OutputMode: outputMode,
		Path:       outputPath,
	}

	if isVerbose {
		fmt.Fprintf(os.Stderr, "----=[ %s ]=----\n", versionString)
		fmt.Fprintf(os.Stderr, "target: %s-%s\n", natgen.ResolveArch(arch, "").String(), targetOS.String())
		fmt.Fprintf(os.Stderr, "scenario: %s\n", *scenario)
	}

	metrics, err := natgen.Generate(prog, prefs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "natgen: %v\n", err)
		os.Exit(1)
	}

	if isVerbose {
		fmt.Fprintf(os.Stderr, "-> wrote %d bytes (%d statements lowered) to %s\n", metrics.Bytes, metrics.Lines, outputPath)
		if err := natgen.VerifyOutput(outputPath, targetOS.Format()); err != nil {
			fmt.Fprintf(os.Stderr, "natgen: output verification failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "-> container magic verified")
	}
}
