// Package config defines the compiler options threaded through lowering,
// comptime evaluation and interpretation, and the optional synth.json
// project file they can be derived from.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/synth-lang/synth/internal/cli"
	serrors "github.com/synth-lang/synth/internal/errors"
)

// DefaultMaxCallDepth bounds user function recursion in the interpreter.
const DefaultMaxCallDepth = 1000

// DefaultFileName is the project file looked up next to a source file.
const DefaultFileName = "synth.json"

// Options is the read-only compiler context. It is passed by pointer and
// never mutated once constructed.
type Options struct {
	// CurrentFile satisfies the __file__ compiler constant.
	CurrentFile string
	// Optimization level: 0 disables constant folding, >0 enables it.
	Optimization int
	// MaxCallDepth limits nested user function calls during interpretation.
	MaxCallDepth int
}

// NewOptions returns options for file at the given optimization level.
func NewOptions(file string, optimization int) *Options {
	return &Options{
		CurrentFile:  file,
		Optimization: optimization,
		MaxCallDepth: DefaultMaxCallDepth,
	}
}

// CallDepthLimit returns the configured limit or the default.
func (o *Options) CallDepthLimit() int {
	if o == nil || o.MaxCallDepth <= 0 {
		return DefaultMaxCallDepth
	}
	return o.MaxCallDepth
}

// Targets understood by the driver.
const (
	TargetInterp = "interp"
	TargetX86    = "x86"
	TargetLLVM   = "llvm"
)

// Config represents a synth.json project file
type Config struct {
	// Language is a semver constraint the compiler version must satisfy,
	// e.g. ">= 0.1.0, < 1.0.0".
	Language     string `json:"language,omitempty"`
	Optimization int    `json:"optimization"`
	Target       string `json:"target,omitempty"`
	BuildDir     string `json:"build_dir,omitempty"`
	MaxCallDepth int    `json:"max_call_depth,omitempty"`
	Verbose      bool   `json:"verbose"`
	Debug        bool   `json:"debug"`
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return &Config{
		Target:       TargetInterp,
		BuildDir:     "build",
		MaxCallDepth: DefaultMaxCallDepth,
	}
}

// Load loads configuration from file. A missing file yields the default
// configuration.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := cfg.Validate(cli.Version); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field values and that compilerVersion satisfies the
// project's language constraint.
func (c *Config) Validate(compilerVersion string) error {
	switch c.Target {
	case "":
		c.Target = TargetInterp
	case TargetInterp, TargetX86, TargetLLVM:
	default:
		return serrors.InvalidConfig(fmt.Sprintf("unknown target %q (want %s)",
			c.Target, strings.Join([]string{TargetInterp, TargetX86, TargetLLVM}, "|")))
	}

	if c.Optimization < 0 {
		return serrors.InvalidConfig(fmt.Sprintf("optimization level must be >= 0, got %d", c.Optimization))
	}
	if c.MaxCallDepth < 0 {
		return serrors.InvalidConfig(fmt.Sprintf("max_call_depth must be >= 0, got %d", c.MaxCallDepth))
	}

	return CheckLanguage(c.Language, compilerVersion)
}

// CheckLanguage reports an error when version does not satisfy constraint.
// An empty constraint accepts every version.
func CheckLanguage(constraint, version string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}

	con, err := semver.NewConstraint(constraint)
	if err != nil {
		return serrors.InvalidConfig(fmt.Sprintf("invalid language constraint %q: %v", constraint, err))
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return serrors.InvalidConfig(fmt.Sprintf("invalid compiler version %q: %v", version, err))
	}

	if !con.Check(v) {
		return serrors.IncompatibleLanguage(constraint, v.String())
	}
	return nil
}

// Options derives compiler options for file.
func (c *Config) Options(file string) *Options {
	opts := NewOptions(file, c.Optimization)
	if c.MaxCallDepth > 0 {
		opts.MaxCallDepth = c.MaxCallDepth
	}
	return opts
}

// SaveConfig writes c to configPath as indented JSON.
func (c *Config) SaveConfig(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
