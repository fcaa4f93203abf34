// Package config holds the settings a host passes to a brainfuck run and
// the ways of loading them: a YAML file, an environment list and flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"gopkg.in/yaml.v3"

	"github.com/runbf/brainf/bf"
)

// DefaultMaxProgramSize is the longest program (in characters) a host
// hands to the engine. Anything past it is cut off.
const DefaultMaxProgramSize = 16384

// Environment variables read by FromEnv.
const (
	EnvMode           = "BF_MODE"
	EnvInput          = "BF_INPUT"
	EnvTapeSize       = "BF_TAPE_SIZE"
	EnvMaxInput       = "BF_MAX_INPUT"
	EnvMaxSteps       = "BF_MAX_STEPS"
	EnvMaxProgramSize = "BF_MAX_PROGRAM_SIZE"
)

// Run holds the settings for a single run
type Run struct {
	Mode           string `yaml:"mode"`
	Input          string `yaml:"input"`
	HasInput       bool   `yaml:"-"`
	TapeSize       int    `yaml:"tape_size"`
	MaxInput       int    `yaml:"max_input"`
	MaxSteps       int    `yaml:"max_steps"`
	MaxProgramSize int    `yaml:"max_program_size"`
}

// Default returns the default settings
func Default() *Run {
	return &Run{
		Mode:           bf.Character.String(),
		TapeSize:       bf.DefaultTapeSize,
		MaxInput:       bf.DefaultMaxInput,
		MaxProgramSize: DefaultMaxProgramSize,
	}
}

// Load reads path over the defaults. A missing file is an error; callers
// only pass a path the user asked for.
func Load(path string) (*Run, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := cfg.Overlay(data); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Overlay overlays the YAML document in data on c.
func (c *Run) Overlay(data []byte) error {
	var doc struct {
		Input *string `yaml:"input"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	if doc.Input != nil {
		c.HasInput = true
	}
	return nil
}

// FromEnv overlays the BF_* entries of env ("KEY=value" pairs, as found
// in os.Environ or an OCI process spec) on c.
func (c *Run) FromEnv(env []string) error {
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		var err error
		switch key {
		case EnvMode:
			c.Mode = value
		case EnvInput:
			c.Input = value
			c.HasInput = true
		case EnvTapeSize:
			c.TapeSize, err = strconv.Atoi(value)
		case EnvMaxInput:
			c.MaxInput, err = strconv.Atoi(value)
		case EnvMaxSteps:
			c.MaxSteps, err = strconv.Atoi(value)
		case EnvMaxProgramSize:
			c.MaxProgramSize, err = strconv.Atoi(value)
		}
		if err != nil {
			return fmt.Errorf("%s: %w: %w", key, errdefs.ErrInvalidArgument, err)
		}
	}
	return nil
}

// Validate reports the first setting the engine could not run with.
func (c *Run) Validate() error {
	if _, err := bf.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}
	checks := []struct {
		name  string
		value int
		min   int
	}{
		{"tape size", c.TapeSize, 1},
		{"max input", c.MaxInput, 1},
		{"max steps", c.MaxSteps, 0},
		{"max program size", c.MaxProgramSize, 1},
	}
	for _, check := range checks {
		if check.value < check.min {
			return fmt.Errorf("%w: %s must be at least %d, got %d", errdefs.ErrInvalidArgument, check.name, check.min, check.value)
		}
	}
	return nil
}

// Truncate cuts source down to MaxProgramSize characters.
func (c *Run) Truncate(source string) string {
	if c.MaxProgramSize <= 0 {
		return source
	}
	n := 0
	for j := range source {
		if n == c.MaxProgramSize {
			return source[:j]
		}
		n++
	}
	return source
}

// Options renders the settings for bf.Execute. Call Validate first; an
// unknown mode falls back to Character.
func (c *Run) Options() []bf.Option {
	mode, _ := bf.ParseMode(c.Mode)
	return []bf.Option{
		bf.WithMode(mode),
		bf.WithInput(c.Input),
		bf.WithTapeSize(c.TapeSize),
		bf.WithMaxInput(c.MaxInput),
		bf.WithMaxSteps(c.MaxSteps),
	}
}

// Args renders the settings as flags of the brainfuck command.
func (c *Run) Args() []string {
	args := []string{
		"--mode", c.Mode,
		"--tape-size", strconv.Itoa(c.TapeSize),
		"--max-input", strconv.Itoa(c.MaxInput),
		"--max-steps", strconv.Itoa(c.MaxSteps),
		"--max-program-size", strconv.Itoa(c.MaxProgramSize),
	}
	if c.HasInput {
		args = append(args, "--input", c.Input)
	}
	return args
}
