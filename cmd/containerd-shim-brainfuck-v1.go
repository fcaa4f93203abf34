package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/v2/pkg/shim"

	"github.com/runbf/brainf/cli"
	bf_shim "github.com/runbf/brainf/shim"
)

const runtimeName = "io.containerd.bf.v1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// The shim starts its tasks by running itself with the brainfuck
	// argument; anything else is containerd talking to the shim.
	brainfuck, args := isBrainfuckArg(os.Args[1:])
	if brainfuck {
		code := cli.Execute(ctx, args)
		cancel()
		os.Exit(code)
	}

	defer cancel()
	shim.Run(ctx, bf_shim.NewManager(runtimeName))
}

func isBrainfuckArg(args []string) (bool, []string) {
	for i, arg := range args {
		if arg == "brainfuck" {
			rest := append([]string{}, args[:i]...)
			return true, append(rest, args[i+1:]...)
		}
	}
	return false, args
}
