package functions

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/polisai/polis-oss/internal/composition"
	"github.com/polisai/polis-oss/internal/vars"
)

func invokeShell(ctx context.Context, fn composition.Function, env *vars.Environment) Result {
	command := vars.Substitute(fn.Command, env)
	args := substituteSlice(fn.Args, env)

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = os.Environ()
	for k, v := range substituteMap(fn.Env, env) {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if fn.Cwd != "" {
		cmd.Dir = vars.Substitute(fn.Cwd, env)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Run in its own process group so the timeout below can kill the
	// whole subtree, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	err := cmd.Run()
	if err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg = stderr.String()
		}
		return Result{Error: msg}
	}
	return Result{Success: true, PayloadText: stdout.String()}
}
