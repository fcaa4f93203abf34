// Package cli implements the brainfuck command, the host that feeds a
// program, its input and its settings to the bf engine.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/runbf/brainf/bf"
	"github.com/runbf/brainf/config"
)

// ExitError carries the exit status for a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type options struct {
	file       string
	expression string
	configFile string
	stdin      bool
	strip      bool
	timeout    time.Duration
	logLevel   string
	logFormat  string
	run        config.Run
}

// NewCommand builds the brainfuck command. Output goes to the command's
// out writer, diagnostics to its err writer.
func NewCommand() *cobra.Command {
	opts := &options{run: *config.Default()}

	cmd := &cobra.Command{
		Use:           "brainfuck [flags] [file]",
		Short:         "Run a brainfuck program on a bounded tape",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.file != "" {
					return errors.New("give the program either as an argument or with --file")
				}
				opts.file = args[0]
			}
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "brainfuck source file")
	flags.StringVarP(&opts.expression, "expression", "e", "", "brainfuck source given inline")
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML file with run settings")
	flags.BoolVar(&opts.stdin, "stdin", false, "read the input text from stdin")
	flags.BoolVar(&opts.strip, "strip", false, "drop non-command characters before running")
	flags.DurationVar(&opts.timeout, "timeout", 0, "stop the run after this long (0 = never)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", string(log.TextFormat), "log format (text, json)")

	flags.StringVarP(&opts.run.Mode, "mode", "m", opts.run.Mode, "I/O mode (character, numeric)")
	flags.StringVarP(&opts.run.Input, "input", "i", "", "input text consumed by ','")
	flags.IntVar(&opts.run.TapeSize, "tape-size", opts.run.TapeSize, "number of tape cells")
	flags.IntVar(&opts.run.MaxInput, "max-input", opts.run.MaxInput, "number of ',' reads allowed")
	flags.IntVar(&opts.run.MaxSteps, "max-steps", opts.run.MaxSteps, "instruction budget (0 = unlimited)")
	flags.IntVar(&opts.run.MaxProgramSize, "max-program-size", opts.run.MaxProgramSize, "characters of the program kept")

	cmd.MarkFlagsMutuallyExclusive("file", "expression")
	cmd.MarkFlagsMutuallyExclusive("input", "stdin")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if err := log.SetLevel(opts.logLevel); err != nil {
		return fmt.Errorf("setting log level: %w", err)
	}
	if err := log.SetFormat(log.OutputFormat(opts.logFormat)); err != nil {
		return fmt.Errorf("setting log format: %w", err)
	}

	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	source, err := readSource(cmd, opts)
	if err != nil {
		return err
	}
	source = cfg.Truncate(source)
	if opts.strip {
		source = bf.Strip(source)
	}

	if opts.stdin {
		input, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		cfg.Input = string(input)
		cfg.HasInput = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	log.G(ctx).WithFields(log.Fields{
		"mode":      cfg.Mode,
		"tape_size": cfg.TapeSize,
		"max_input": cfg.MaxInput,
		"max_steps": cfg.MaxSteps,
		"length":    len(source),
	}).Debug("starting run")

	output, err := bf.Execute(ctx, source, cfg.Options()...)
	if _, werr := io.WriteString(cmd.OutOrStdout(), output); werr != nil {
		return fmt.Errorf("writing output: %w", werr)
	}
	if err != nil {
		// partial output may not end in a newline
		if output != "" {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		code := 1
		if e, ok := bf.AsError(err); ok {
			code = e.Kind.ExitCode()
		}
		return &ExitError{Code: code, Err: err}
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// resolveConfig layers defaults, the config file, BF_* variables and the
// flags the user actually set, in that order.
func resolveConfig(cmd *cobra.Command, opts *options) (*config.Run, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.FromEnv(os.Environ()); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = opts.run.Mode
	}
	if flags.Changed("input") {
		cfg.Input = opts.run.Input
		cfg.HasInput = true
	}
	if flags.Changed("tape-size") {
		cfg.TapeSize = opts.run.TapeSize
	}
	if flags.Changed("max-input") {
		cfg.MaxInput = opts.run.MaxInput
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = opts.run.MaxSteps
	}
	if flags.Changed("max-program-size") {
		cfg.MaxProgramSize = opts.run.MaxProgramSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSource(cmd *cobra.Command, opts *options) (string, error) {
	switch {
	case opts.expression != "":
		return opts.expression, nil
	case opts.file == "-":
		if opts.stdin {
			return "", errors.New("cannot read both the program and the input from stdin")
		}
		source, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading program: %w", err)
		}
		return string(source), nil
	case opts.file != "":
		source, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("reading program: %w", err)
		}
		return string(source), nil
	default:
		return "", errors.New("invalid argument: a program is required (--file or --expression)")
	}
}

// Execute runs the brainfuck command with args and returns the process
// exit status.
func Execute(ctx context.Context, args []string) int {
	cmd := NewCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error running brainfuck:", err)
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 2
}
