package shim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/runbf/brainf/config"
)

const configFilename = "config.json"

// Entry points the shim agrees to run.
var scriptExtensions = []string{".bf", ".b", ".brainfuck"}

type root struct {
	// Path is the path to the rootfs
	Path string `json:"path"`
}

type process struct {
	// Args is the command to run
	Args []string `json:"args"`
	// Env is the environment variables to set
	Env []string `json:"env"`
}

type spec struct {
	Root    root    `json:"root"`
	Process process `json:"process"`
}

// Bundle is what the shim needs from an OCI bundle to run a task.
type Bundle struct {
	Root       string
	Entrypoint string
	Path       []string
	Run        *config.Run
}

// ReadBundle reads the OCI config.json in path. The process must have a
// single argument naming a brainfuck script inside the rootfs; BF_*
// variables in its environment become the run settings.
func ReadBundle(path string) (*Bundle, error) {
	filePath := filepath.Join(path, configFilename)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found: %w", configFilename, errdefs.ErrNotFound)
		}
		return nil, err
	}
	var s spec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configFilename, err)
	}

	if s.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s: %w", configFilename, errdefs.ErrInvalidArgument)
	}
	rootPath := s.Root.Path
	if !filepath.IsAbs(rootPath) {
		rootPath = filepath.Join(path, rootPath)
	}

	if len(s.Process.Args) != 1 {
		return nil, fmt.Errorf("incorrect number of args in the CMD. Expected 1, got %d: %w", len(s.Process.Args), errdefs.ErrInvalidArgument)
	}
	arg0 := s.Process.Args[0]
	if !isScript(arg0) {
		return nil, fmt.Errorf("entry point (%s) is not one of %v: %w", arg0, scriptExtensions, errdefs.ErrInvalidArgument)
	}

	script := filepath.Join(rootPath, arg0)
	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s does not exist: %w", arg0, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("checking script %s: %w", arg0, err)
	}

	run := config.Default()
	if err := run.FromEnv(s.Process.Env); err != nil {
		return nil, fmt.Errorf("reading run settings: %w", err)
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("reading run settings: %w", err)
	}

	var searchPath []string
	for _, env := range s.Process.Env {
		if value, ok := strings.CutPrefix(env, "PATH="); ok {
			searchPath = strings.Split(value, ":")
			break
		}
	}

	return &Bundle{
		Root:       rootPath,
		Entrypoint: arg0,
		Path:       searchPath,
		Run:        run,
	}, nil
}

func isScript(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range scriptExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (b *Bundle) FullPath() string {
	return filepath.Join(b.Root, b.Entrypoint)
}

// Args is the command line of the brainfuck subcommand for this bundle.
// Without BF_INPUT the task reads its input from stdin, when it has one.
func (b *Bundle) Args(withStdin bool) []string {
	args := append([]string{"brainfuck", "--file", b.FullPath()}, b.Run.Args()...)
	if withStdin && !b.Run.HasInput {
		args = append(args, "--stdin")
	}
	return args
}

// Env is the environment of the run process: base, with PATH taken from
// the bundle when it sets one.
func (b *Bundle) Env(base []string) []string {
	env := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if len(b.Path) > 0 && strings.HasPrefix(kv, "PATH=") {
			continue
		}
		env = append(env, kv)
	}
	if len(b.Path) > 0 {
		env = append(env, "PATH="+strings.Join(b.Path, ":"))
	}
	return env
}
