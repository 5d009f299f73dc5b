package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/parsegraph/internal/cli"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
)

const (
	exitError       = 1
	exitConfig      = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.New(os.Stderr, cli.LogInfo).RootCommand().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode reports err on stderr and maps it to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case perrors.Cancelled(err):
		return exitInterrupted
	}
	fmt.Fprintln(os.Stderr, "Error:", perrors.UserMessage(err))
	if perrors.Is(err, perrors.ErrCodeInvalidConfig) {
		return exitConfig
	}
	return exitError
}
