package utils

import (
	"context"
	"os/exec"
)

func NewCommandFactory() *ExecCommandFactory {
	return &ExecCommandFactory{}
}

// CommandFactory creates CommandExecutor values. Callers depend on it instead
// of exec.Command so tests can substitute recorded fakes.
type CommandFactory interface {
	Command(ctx context.Context, name string, args ...string) CommandExecutor
}

// ExecCommandFactory launches real OS processes.
type ExecCommandFactory struct{}

func (e *ExecCommandFactory) Command(ctx context.Context, name string, args ...string) CommandExecutor {
	return &ExecCmd{cmd: exec.CommandContext(ctx, name, args...)}
}

// CommandExecutor is the subset of exec.Cmd the engine uses.
type CommandExecutor interface {
	CombinedOutput() ([]byte, error)
}

type ExecCmd struct {
	cmd *exec.Cmd
}

func (e *ExecCmd) CombinedOutput() ([]byte, error) {
	return e.cmd.CombinedOutput()
}
