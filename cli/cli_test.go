package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/runbf/brainf/bf"
	"github.com/runbf/brainf/cli"
	"github.com/runbf/brainf/utils"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommand_Expression(t *testing.T) {
	out, err := runCommand(t, "", "-e", ",.", "--input", "A")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "A"+bf.CompletionMarker+"\n")
}

func TestCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echo.bf")
	utils.AssertNoError(t, os.WriteFile(path, []byte("read , write .\n"), 0644))

	out, err := runCommand(t, "", path, "--mode", "numeric", "--input", "65")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "65, "+bf.CompletionMarker+"\n")
}

func TestCommand_Stdin(t *testing.T) {
	out, err := runCommand(t, "1,2", "-e", ",.,.", "-m", "numeric", "--stdin")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "1, 2, "+bf.CompletionMarker+"\n")
}

func TestCommand_ProgramFromStdin(t *testing.T) {
	out, err := runCommand(t, "+.", "--file", "-", "-m", "numeric")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "1, "+bf.CompletionMarker+"\n")
}

func TestCommand_Config(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	utils.AssertNoError(t, os.WriteFile(path, []byte("mode: numeric\ninput: \"7\"\n"), 0644))

	out, err := runCommand(t, "", "-e", ",.", "--config", path)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "7, "+bf.CompletionMarker+"\n")

	// flags win over the file
	out, err = runCommand(t, "", "-e", ",.", "--config", path, "--input", "8")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "8, "+bf.CompletionMarker+"\n")
}

func TestCommand_Fault(t *testing.T) {
	out, err := runCommand(t, "", "-e", "+.<", "-m", "numeric")
	var exit *cli.ExitError
	utils.Assert(t, errors.As(err, &exit), "expected exit error")
	utils.AssertEqual(t, exit.Code, bf.PointerUnderflow.ExitCode())
	utils.AssertErrorIs(t, err, bf.PointerUnderflow)
	utils.AssertEqual(t, out, "1, \n")
}

func TestCommand_Truncate(t *testing.T) {
	// the '<' past the limit never reaches the engine
	out, err := runCommand(t, "", "-e", "+.<", "-m", "numeric", "--max-program-size", "2")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out, "1, "+bf.CompletionMarker+"\n")
}

func TestCommand_StepLimit(t *testing.T) {
	_, err := runCommand(t, "", "-e", "+[]", "--max-steps", "50")
	utils.AssertErrorIs(t, err, bf.StepLimitExceeded)
}

func TestCommand_Timeout(t *testing.T) {
	_, err := runCommand(t, "", "-e", "+[]", "--timeout", "10ms")
	utils.AssertErrorIs(t, err, bf.Canceled)
	utils.AssertErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommand_InvalidSettings(t *testing.T) {
	_, err := runCommand(t, "", "-e", "+", "--mode", "hex")
	utils.AssertError(t, err)
	_, err = runCommand(t, "", "-e", "+", "--tape-size", "0")
	utils.AssertError(t, err)
	_, err = runCommand(t, "")
	utils.AssertError(t, err)
}

func TestExecute_ExitCode(t *testing.T) {
	utils.AssertEqual(t, cli.Execute(context.Background(), []string{"-e", "+", "--log-level", "error"}), 0)
	utils.AssertEqual(t, cli.Execute(context.Background(), []string{"-e", "<"}), bf.PointerUnderflow.ExitCode())
	utils.AssertEqual(t, cli.Execute(context.Background(), []string{"--bogus"}), 2)
}
