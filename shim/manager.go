// Package shim runs brainfuck programs as containerd tasks. Each task is a
// child process of the shim executing the brainfuck subcommand on the
// bundle's script; the task exits with the status of its run.
package shim

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	apitypes "github.com/containerd/containerd/api/types"
	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/log"
)

// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html#tag_18_21_18
const exitCodeSignal = 128
const initPidFile = "bf.pid"

// Version is reported to containerd by Info.
var Version = "v1.3.0"

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/runbf/brainf/shim.debug=true'"`
var debug string

type bfManager struct {
	name string
}

func NewManager(name string) shim.Manager {
	return bfManager{name: name}
}

func (m bfManager) Name() string {
	return m.name
}

func (m bfManager) Start(ctx context.Context, id string, opts shim.StartOpts) (retShim shim.BootstrapParams, retErr error) {
	log.G(ctx).WithFields(log.Fields{"id": id, "runtime": m.name, "debug": debug != ""}).Debug("start (manager)")

	self, err := os.Executable()
	if err != nil {
		return retShim, fmt.Errorf("getting executable of current process: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return retShim, fmt.Errorf("getting current working directory: %w", err)
	}

	var args []string
	if opts.Debug || debug != "" {
		args = append(args, "-debug")
	}

	cmdCfg := &shim.CommandConfig{
		Runtime:      self,
		Address:      opts.Address,
		TTRPCAddress: opts.TTRPCAddress,
		Path:         cwd,
		Args:         args,
	}

	cmd, err := shim.Command(ctx, cmdCfg)
	if err != nil {
		return retShim, fmt.Errorf("creating shim command: %w", err)
	}

	sockAddr, err := shim.SocketAddress(ctx, opts.Address, id, opts.Debug)
	if err != nil {
		return retShim, fmt.Errorf("getting a socket address: %w", err)
	}

	socket, err := shim.NewSocket(sockAddr)
	if err != nil {
		return retShim, fmt.Errorf("creating socket: %w", err)
	}

	sockF, err := socket.File()
	if err != nil {
		return retShim, fmt.Errorf("getting shim socket file descriptor: %w", err)
	}

	cmd.ExtraFiles = append(cmd.ExtraFiles, sockF)

	retErr = func() error {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := cmd.Start(); err != nil {
			sockF.Close()
			return fmt.Errorf("starting shim command: %w", err)
		}
		return nil
	}()
	if retErr != nil {
		return retShim, retErr
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			if _, ok := err.(*exec.ExitError); !ok {
				log.G(ctx).WithError(err).Errorf("failed to wait for shim process %d", cmd.Process.Pid)
			}
		}
	}()

	if err := shim.AdjustOOMScore(cmd.Process.Pid); err != nil {
		return retShim, fmt.Errorf("adjusting shim process OOM score: %w", err)
	}

	return shim.BootstrapParams{
		Version:  2,
		Address:  sockAddr,
		Protocol: "ttrpc",
	}, nil
}

func (m bfManager) Stop(ctx context.Context, id string) (shim.StopStatus, error) {
	logger := log.G(ctx).WithFields(log.Fields{"id": id, "runtime": m.name})
	logger.Debug("stop (manager)")

	pid, err := taskPidFile(id).read()
	if err != nil {
		return shim.StopStatus{}, err
	}
	logger = logger.WithField("pid", pid)

	if pid > 0 {
		p, _ := os.FindProcess(pid)
		// The POSIX standard specifies that a null-signal can be sent to check
		// whether a PID is valid.
		if err := p.Signal(syscall.Signal(0)); err == nil {
			if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
				logger.WithError(err).Warn("failed to send kill syscall to run process")
			}
		}
	}

	return shim.StopStatus{
		Pid:        pid,
		ExitedAt:   time.Now(),
		ExitStatus: int(exitCodeSignal + syscall.SIGKILL),
	}, nil
}

func (m bfManager) Info(ctx context.Context, optionsR io.Reader) (*apitypes.RuntimeInfo, error) {
	log.G(ctx).WithFields(log.Fields{"runtime": m.name, "version": Version}).Debug("info (manager)")
	return &apitypes.RuntimeInfo{
		Name: m.name,
		Version: &apitypes.RuntimeVersion{
			Version: Version,
		},
	}, nil
}

var (
	_ = shim.Manager(&bfManager{})
)

// pidFile holds the pid of the run process of one task. If containerd
// needs to resort to calling the shim's "stop" command to clean things up,
// having the process' pid readable from a file is the only way for it to
// know what process is associated with the task.
type pidFile struct {
	id string
}

func taskPidFile(id string) pidFile {
	return pidFile{id: id}
}

// path is where the pid lives: the shim runs in the bundle directory, and
// bundles of one namespace are siblings.
func (f pidFile) path() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current working directory: %w", err)
	}
	return filepath.Join(filepath.Dir(cwd), f.id, initPidFile), nil
}

func (f pidFile) read() (int, error) {
	path, err := f.path()
	if err != nil {
		return -1, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("reading pid file of task %s: %w", f.id, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1, fmt.Errorf("parsing pid file of task %s: %w", f.id, err)
	}
	return pid, nil
}

func (f pidFile) write(pid int) error {
	path, err := f.path()
	if err != nil {
		return err
	}
	if err := shim.WritePidFile(path, pid); err != nil {
		return fmt.Errorf("writing pid file of run process: %w", err)
	}
	// rw-r--r--
	if err := os.Chmod(path, 0644); err != nil {
		return fmt.Errorf("changing pid file permissions: %w", err)
	}
	return nil
}
