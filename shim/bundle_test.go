package shim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/runbf/brainf/utils"
)

func writeBundle(t *testing.T, args []string, env []string) string {
	t.Helper()
	dir := t.TempDir()
	rootfs := filepath.Join(dir, "rootfs")
	utils.AssertNoError(t, os.MkdirAll(rootfs, 0755))
	utils.AssertNoError(t, os.WriteFile(filepath.Join(rootfs, "hello.bf"), []byte("+."), 0644))

	data, err := json.Marshal(map[string]any{
		"root":    map[string]any{"path": "rootfs"},
		"process": map[string]any{"args": args, "env": env},
	})
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, os.WriteFile(filepath.Join(dir, configFilename), data, 0644))
	return dir
}

func TestReadBundle(t *testing.T) {
	dir := writeBundle(t, []string{"hello.bf"}, []string{
		"PATH=/usr/local/bin:/usr/bin",
		"BF_MODE=numeric",
		"BF_MAX_STEPS=500",
	})

	bundle, err := ReadBundle(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, bundle.Root, filepath.Join(dir, "rootfs"))
	utils.AssertEqual(t, bundle.FullPath(), filepath.Join(dir, "rootfs", "hello.bf"))
	utils.AssertEqualArrays(t, bundle.Path, []string{"/usr/local/bin", "/usr/bin"})
	utils.AssertEqual(t, bundle.Run.Mode, "numeric")
	utils.AssertEqual(t, bundle.Run.MaxSteps, 500)
	utils.AssertEqual(t, bundle.Run.HasInput, false)
}

func TestReadBundle_Args(t *testing.T) {
	dir := writeBundle(t, []string{"hello.bf"}, nil)
	bundle, err := ReadBundle(dir)
	utils.AssertNoError(t, err)

	args := bundle.Args(true)
	utils.AssertEqualArrays(t, args[:3], []string{"brainfuck", "--file", bundle.FullPath()})
	utils.AssertEqual(t, args[len(args)-1], "--stdin")
	noStdin := bundle.Args(false)
	utils.AssertNotEqual(t, noStdin[len(noStdin)-1], "--stdin")

	dir = writeBundle(t, []string{"hello.bf"}, []string{"BF_INPUT=abc"})
	bundle, err = ReadBundle(dir)
	utils.AssertNoError(t, err)
	args = bundle.Args(true)
	utils.AssertEqualArrays(t, args[len(args)-2:], []string{"--input", "abc"})
}

func TestReadBundle_Errors(t *testing.T) {
	_, err := ReadBundle(t.TempDir())
	utils.Assert(t, errdefs.IsNotFound(err), "expected missing config")

	_, err = ReadBundle(writeBundle(t, []string{"hello.bf", "extra"}, nil))
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected too many args")

	_, err = ReadBundle(writeBundle(t, []string{"hello.sh"}, nil))
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected bad extension")

	_, err = ReadBundle(writeBundle(t, []string{"missing.b"}, nil))
	utils.Assert(t, errdefs.IsNotFound(err), "expected missing script")

	_, err = ReadBundle(writeBundle(t, []string{"hello.bf"}, []string{"BF_MODE=morse"}))
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected bad mode")
}

func TestBundle_Env(t *testing.T) {
	base := []string{"HOME=/root", "PATH=/usr/bin", "TERM=xterm"}

	b := &Bundle{Path: []string{"/opt/bf/bin", "/bin"}}
	utils.AssertEqualArrays(t, b.Env(base), []string{"HOME=/root", "TERM=xterm", "PATH=/opt/bf/bin:/bin"})

	b = &Bundle{}
	utils.AssertEqualArrays(t, b.Env(base), base)
}

func TestReadBundle_PathReachesEnv(t *testing.T) {
	dir := writeBundle(t, []string{"hello.bf"}, []string{"PATH=/sbin:/usr/local/bin"})
	b, err := ReadBundle(dir)
	utils.AssertNoError(t, err)
	utils.AssertEqualArrays(t, b.Env([]string{"PATH=/usr/bin"}), []string{"PATH=/sbin:/usr/local/bin"})
}
