// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/speedup/internal/config"
	"github.com/ManuGH/speedup/internal/version"
	"gopkg.in/yaml.v3"
)

func runConfigCLI(args []string) int {
	return runConfigCLIWithOutput(args, os.Stdout, os.Stderr)
}

func runConfigCLIWithOutput(args []string, stdout, stderr io.Writer) int {
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
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  speedup config validate [--file|-f config.yaml]")
	_, _ = fmt.Fprintln(w, "  speedup config dump --effective [--file|-f config.yaml] [--format=yaml|json]")
}

// resolveDefaultConfigPath picks $SPEEDUP_CONFIG, then config.yaml inside the
// data directory when it exists.
func resolveDefaultConfigPath() string {
	if p := strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG")); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA"))
	if dataDir == "" {
		env := strings.TrimSpace(os.Getenv(config.EnvPrefix + "ENVIRONMENT"))
		if env == "" {
			env = config.EnvDevelopment
		}
		dataDir = config.DefaultDataDir(env)
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func configFileFlag(fs *flag.FlagSet) *string {
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	return &file
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("speedup config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := configFileFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(configPath, version.Version)
	if _, err := loader.Load(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describeSource(configPath), err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "✓ %s is valid\n", describeSource(configPath))
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("speedup config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := configFileFlag(fs)
	var format string
	var effective bool
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	fs.BoolVar(&effective, "effective", false, "dump effective configuration (defaults + file + env)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !effective {
		_, _ = fmt.Fprintln(stderr, "Error: --effective is required")
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describeSource(configPath), err)
		return 1
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

func describeSource(path string) string {
	if path == "" {
		return "environment+defaults"
	}
	return path
}
