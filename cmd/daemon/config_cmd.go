// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/hlsgate/internal/config"
	"github.com/ManuGH/hlsgate/internal/version"
)

func runConfigCLI(args []string) int {
	return runConfigCommand(args, os.Stdout, os.Stderr)
}

func runConfigCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hlsgate config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  hlsgate config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func configFileFlag(fs *flag.FlagSet) *string {
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	return &file
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hlsgate config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := configFileFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := strings.TrimSpace(*file)
	if _, err := config.NewLoader(path, version.Version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", displayPath(path), err)
		return 1
	}

	fmt.Fprintf(stdout, "%s is valid\n", displayPath(path))
	return 0
}

// runConfigDump prints the effective configuration with secrets masked.
func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hlsgate config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := configFileFlag(fs)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.NewLoader(strings.TrimSpace(*file), version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	redacted := cfg.Redacted()

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(redacted)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		err = enc.Encode(redacted)
		if err == nil {
			err = enc.Close()
		}
	default:
		fmt.Fprintf(stderr, "Unknown format: %s\n", *format)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Failed to encode config: %v\n", err)
		return 1
	}
	return 0
}

func displayPath(path string) string {
	if path == "" {
		return "environment configuration"
	}
	return path
}
