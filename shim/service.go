package shim

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	taskAPI "github.com/containerd/containerd/api/runtime/task/v2"
	tasktypes "github.com/containerd/containerd/api/types/task"
	"github.com/containerd/containerd/protobuf"
	ptypes "github.com/containerd/containerd/v2/pkg/protobuf/types"
	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/containerd/v2/pkg/shutdown"
	"github.com/containerd/containerd/v2/plugins"
	"github.com/containerd/errdefs"
	"github.com/containerd/fifo"
	"github.com/containerd/log"
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"
	"github.com/containerd/ttrpc"
	"google.golang.org/protobuf/types/known/anypb"
)

func init() {
	registry.Register(&plugin.Registration{
		Type: plugins.TTRPCPlugin,
		ID:   "task",
		Requires: []plugin.Type{
			plugins.InternalPlugin,
		},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			ss, err := ic.GetByID(plugins.InternalPlugin, "shutdown")
			if err != nil {
				return nil, err
			}
			return newTaskService(ic.Context, ss.(shutdown.Service))
		},
	})
}

// exit status of a run process whose status could not be read
const unknownExitStatus = 255

type proc struct {
	pid int

	done       context.Context
	exitTime   time.Time
	exitStatus int

	stdout string
	stdin  string
	stderr string
}

func (p *proc) String() string {
	if p.done.Err() != nil {
		return fmt.Sprintf("pid:%d, exitTime:%s, exitStatus:%d", p.pid, p.exitTime.Format(time.RFC3339), p.exitStatus)
	}
	return fmt.Sprintf("pid:%d running", p.pid)
}

type bfTaskService struct {
	mu       sync.RWMutex
	procs    map[string]*proc
	shutdown shutdown.Service
}

func newTaskService(ctx context.Context, sd shutdown.Service) (taskAPI.TaskService, error) {
	return &bfTaskService{
		procs:    make(map[string]*proc, 1),
		shutdown: sd,
	}, nil
}

// RegisterTTRPC allows TTRPC services to be registered with the underlying server
func (s *bfTaskService) RegisterTTRPC(server *ttrpc.Server) error {
	taskAPI.RegisterTaskService(server, s)
	return nil
}

var (
	_ = shim.TTRPCService(&bfTaskService{})
)

func (s *bfTaskService) lookup(id string) (*proc, error) {
	p, ok := s.procs[id]
	if !ok {
		return nil, fmt.Errorf("task %s not created: %w", id, errdefs.ErrNotFound)
	}
	return p, nil
}

func (s *bfTaskService) doneContext(id string) (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return p.done, nil
}

// exitStatus turns the state of a finished run process into the status
// reported to containerd. Engine faults exit with bf.Kind.ExitCode.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return unknownExitStatus
	}
	switch ws := state.Sys().(syscall.WaitStatus); {
	case state.Exited():
		return state.ExitCode()
	case ws.Signaled():
		return exitCodeSignal + int(ws.Signal())
	}
	return unknownExitStatus
}

// watch waits for the run process of task id and records how it ended.
// The shim shuts down once every task is done.
func (s *bfTaskService) watch(ctx context.Context, id string, cmd *exec.Cmd, markDone func()) {
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			log.G(ctx).WithError(err).Errorf("failed to wait for run process %d", pid)
		}
	}
	if cmd.ProcessState == nil {
		log.G(ctx).Warn("run process wait returned without setting process state")
	}
	status := exitStatus(cmd.ProcessState)
	log.G(ctx).WithFields(log.Fields{"id": id, "pid": pid, "status": status}).Debug("run process exited")

	s.mu.Lock()
	defer s.mu.Unlock()

	markDone()
	p, ok := s.procs[id]
	if !ok {
		log.G(ctx).Errorf("failed to write final status of run process %d: task was removed", pid)
		return
	}
	p.exitStatus = status
	p.exitTime = time.Now()

	for _, other := range s.procs {
		if other.done.Err() == nil {
			return
		}
	}
	log.G(ctx).Debug("all procs exited. shutting down the shim")
	s.shutdown.Shutdown()
}

const startStoppedScript = `
#!/bin/sh
kill -STOP $$
exec "$@"
`

const commandWaitDelay = 100 * time.Millisecond

func openFifo(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	ok, err := fifo.IsFifo(path)
	if err != nil {
		return nil, fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("file %s is not a fifo: %w", path, errdefs.ErrInvalidArgument)
	}
	f, err := fifo.OpenFifo(ctx, path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}

// stdio is the plumbing between the fifos containerd hands us and the
// pipes of the run process. Copying starts only once the process runs;
// until then close releases everything opened so far.
type stdio struct {
	closers []io.Closer
	copies  []func()
}

// connectOutput copies pipe, an output of the run process, into the fifo
// at path.
func (p *stdio) connectOutput(ctx context.Context, path string, pipe io.ReadCloser) error {
	p.closers = append(p.closers, pipe)
	fw, err := openFifo(ctx, path, syscall.O_WRONLY)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, fw)
	p.copies = append(p.copies, func() {
		defer fw.Close()
		if _, err := io.Copy(fw, pipe); err != nil {
			log.G(ctx).WithError(err).Errorf("failed to copy pipe to fifo %s", path)
		}
	})
	return nil
}

// connectInput copies the fifo at path into pipe, the stdin of the run
// process.
func (p *stdio) connectInput(ctx context.Context, path string, pipe io.WriteCloser) error {
	p.closers = append(p.closers, pipe)
	fr, err := openFifo(ctx, path, syscall.O_RDONLY)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, fr)
	p.copies = append(p.copies, func() {
		defer pipe.Close()
		if _, err := io.Copy(pipe, fr); err != nil {
			log.G(ctx).WithError(err).Errorf("failed to copy fifo %s to stdin pipe", path)
		}
	})
	return nil
}

func (p *stdio) start() {
	for _, copyFn := range p.copies {
		go copyFn()
	}
}

func (p *stdio) close() {
	for _, c := range p.closers {
		c.Close()
	}
}

// Create a new task: the run process is started stopped and continued by Start
func (s *bfTaskService) Create(ctx context.Context, r *taskAPI.CreateTaskRequest) (_ *taskAPI.CreateTaskResponse, retErr error) {
	log.G(ctx).WithField("id", r.ID).Debug("create (service)")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.procs[r.ID]; ok {
		return nil, fmt.Errorf("task %s: %w", r.ID, errdefs.ErrAlreadyExists)
	}

	bundle, err := ReadBundle(r.Bundle)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	scriptPath := filepath.Join(r.Bundle, "start-stopped.sh")
	if err := os.WriteFile(scriptPath, []byte(startStoppedScript), 0755); err != nil {
		return nil, fmt.Errorf("writing start-stopped.sh: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("getting executable of current process: %w", err)
	}

	args := append([]string{scriptPath, self}, bundle.Args(r.Stdin != "")...)
	// not tied to ctx: the request ends long before the run does
	cmd := exec.Command("/bin/sh", args...)
	cmd.Dir = bundle.Root
	cmd.WaitDelay = commandWaitDelay

	cmd.Env = bundle.Env(os.Environ())

	var pipes stdio
	defer func() {
		if retErr != nil {
			pipes.close()
		}
	}()

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stdout pipe: %w", err)
	}
	if err := pipes.connectOutput(ctx, r.Stdout, stdoutPipe); err != nil {
		return nil, err
	}

	stderr := r.Stderr
	if stderr == "" {
		stderr = r.Stdout
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stderr pipe: %w", err)
	}
	if err := pipes.connectOutput(ctx, stderr, stderrPipe); err != nil {
		return nil, err
	}

	if r.Stdin != "" {
		stdinPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("getting stdin pipe: %w", err)
		}
		if err := pipes.connectInput(ctx, r.Stdin, stdinPipe); err != nil {
			return nil, err
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("running brainfuck command: %w", err)
	}
	pipes.start()
	pid := cmd.Process.Pid

	doneCtx, markDone := context.WithCancel(context.Background())
	s.procs[r.ID] = &proc{
		pid:    pid,
		done:   doneCtx,
		stdout: r.Stdout,
		stdin:  r.Stdin,
		stderr: r.Stderr,
	}
	go s.watch(log.WithLogger(context.Background(), log.G(ctx)), r.ID, cmd, markDone)

	if err := taskPidFile(r.ID).write(pid); err != nil {
		log.G(ctx).WithError(err).WithField("id", r.ID).Warn("failed to write pid file")
	}

	log.G(ctx).WithFields(log.Fields{
		"id":     r.ID,
		"pid":    pid,
		"script": bundle.Entrypoint,
		"mode":   bundle.Run.Mode,
	}).Debug("run process created")

	return &taskAPI.CreateTaskResponse{
		Pid: uint32(pid),
	}, nil
}

// Start continues the stopped run process
func (s *bfTaskService) Start(ctx context.Context, r *taskAPI.StartRequest) (*taskAPI.StartResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("start (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "kill", "-CONT", strconv.Itoa(p.pid))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("continuing run process %d: %w", p.pid, err)
	}

	return &taskAPI.StartResponse{
		Pid: uint32(p.pid),
	}, nil
}

// Delete a finished task
func (s *bfTaskService) Delete(ctx context.Context, r *taskAPI.DeleteRequest) (*taskAPI.DeleteResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("delete (service)")

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}
	if p.done.Err() == nil {
		return nil, errdefs.ErrFailedPrecondition.WithMessage(fmt.Sprintf("run process %d is not done yet", p.pid))
	}
	delete(s.procs, r.ID)

	return &taskAPI.DeleteResponse{
		Pid:        uint32(p.pid),
		ExitStatus: uint32(p.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(p.exitTime),
	}, nil
}

// Exec an additional process inside the container
func (s *bfTaskService) Exec(ctx context.Context, r *taskAPI.ExecProcessRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("exec (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Exec (task)")
}

// ResizePty of a process
func (s *bfTaskService) ResizePty(ctx context.Context, r *taskAPI.ResizePtyRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("resizepty (service)")
	return &ptypes.Empty{}, nil
}

// State returns runtime state of a task
func (s *bfTaskService) State(ctx context.Context, r *taskAPI.StateRequest) (*taskAPI.StateResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("state (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}

	status := tasktypes.Status_RUNNING
	if p.done.Err() != nil {
		status = tasktypes.Status_STOPPED
	}

	return &taskAPI.StateResponse{
		ID:         r.ID,
		Pid:        uint32(p.pid),
		Status:     status,
		Stdout:     p.stdout,
		Stdin:      p.stdin,
		Stderr:     p.stderr,
		ExitStatus: uint32(p.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(p.exitTime),
	}, nil
}

// Pause the container
func (s *bfTaskService) Pause(ctx context.Context, r *taskAPI.PauseRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("pause (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Pause (task)")
}

// Resume the container
func (s *bfTaskService) Resume(ctx context.Context, r *taskAPI.ResumeRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("resume (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Resume (task)")
}

// Kill the run process of a task and wait for it to go away
func (s *bfTaskService) Kill(ctx context.Context, r *taskAPI.KillRequest) (*ptypes.Empty, error) {
	log.G(ctx).WithField("id", r.ID).Debug("kill (service)")

	alreadyExited, err := func() (bool, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		p, err := s.lookup(r.ID)
		if err != nil {
			return false, err
		}
		if p.done.Err() != nil {
			return true, nil
		}
		if p.pid > 0 {
			sig := syscall.SIGKILL
			if r.Signal != 0 {
				sig = syscall.Signal(r.Signal)
			}
			process, _ := os.FindProcess(p.pid)
			// The POSIX standard specifies that a null-signal can be sent to check
			// whether a PID is valid.
			if err := process.Signal(syscall.Signal(0)); err == nil {
				if err := process.Signal(sig); err != nil {
					return false, fmt.Errorf("sending %s to run process: %w", sig, err)
				}
				// a stopped process only acts on the signal once continued
				_ = process.Signal(syscall.SIGCONT)
			}
		}
		return false, nil
	}()
	if err != nil {
		log.G(ctx).WithError(err).Errorf("failed to kill run process of %s", r.ID)
		return nil, err
	}

	if alreadyExited {
		log.G(ctx).Warnf("task already exited: %s", r.ID)
		return &ptypes.Empty{}, nil
	}

	done, err := s.doneContext(r.ID)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}
	return &ptypes.Empty{}, nil
}

// Pids returns all pids inside the container
func (s *bfTaskService) Pids(ctx context.Context, r *taskAPI.PidsRequest) (*taskAPI.PidsResponse, error) {
	log.G(ctx).Debug("pids (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Pids (task)")
}

// CloseIO of a process
func (s *bfTaskService) CloseIO(ctx context.Context, r *taskAPI.CloseIORequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("closeio (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("CloseIO (task)")
}

// Checkpoint the container
func (s *bfTaskService) Checkpoint(ctx context.Context, r *taskAPI.CheckpointTaskRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("checkpoint (service)")
	return nil, errdefs.ErrNotImplemented.WithMessage("Checkpoint (task)")
}

// Connect returns shim information of the underlying service
func (s *bfTaskService) Connect(ctx context.Context, r *taskAPI.ConnectRequest) (*taskAPI.ConnectResponse, error) {
	log.G(ctx).Debug("connect (service)")

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}

	return &taskAPI.ConnectResponse{
		ShimPid: uint32(os.Getpid()),
		TaskPid: uint32(p.pid),
	}, nil
}

// Shutdown is called after the underlying resources of the shim are cleaned up and the service can be stopped
func (s *bfTaskService) Shutdown(ctx context.Context, r *taskAPI.ShutdownRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("shutdown (service)")
	s.shutdown.Shutdown()
	return &ptypes.Empty{}, nil
}

// Stats are not collected; an empty message is returned
func (s *bfTaskService) Stats(ctx context.Context, r *taskAPI.StatsRequest) (*taskAPI.StatsResponse, error) {
	log.G(ctx).Debug("stats (service)")
	return &taskAPI.StatsResponse{
		Stats: &anypb.Any{},
	}, nil
}

// Update the live container
func (s *bfTaskService) Update(ctx context.Context, r *taskAPI.UpdateTaskRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("update (service)")
	return nil, errdefs.ErrAborted.WithMessage("Update (task)")
}

// Wait for the run process of a task to exit
func (s *bfTaskService) Wait(ctx context.Context, r *taskAPI.WaitRequest) (*taskAPI.WaitResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("wait (service)")

	done, err := s.doneContext(r.ID)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.procs[r.ID]
	if !ok {
		return nil, fmt.Errorf("task was removed: %w", errdefs.ErrNotFound)
	}

	return &taskAPI.WaitResponse{
		ExitStatus: uint32(p.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(p.exitTime),
	}, nil
}
