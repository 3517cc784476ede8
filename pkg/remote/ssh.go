package remote

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// SSHExecutor runs commands with os/exec, going through ssh/scp whenever the
// target host is not LocalHost. Commands are run through the shell so that
// redirections and globs in the step recipes behave as they do when typed by
// an operator.
type SSHExecutor struct {
	// WorkDir is the working directory for local commands.
	WorkDir string
}

// NewSSHExecutor returns an executor rooted at workDir for local commands.
func NewSSHExecutor(workDir string) *SSHExecutor {
	return &SSHExecutor{WorkDir: workDir}
}

func (s *SSHExecutor) Execute(ctx context.Context, host, command string, args ...string) (*Result, error) {
	cmdLine := CommandString(command, args)

	var cmd *exec.Cmd
	if host == "" || host == LocalHost {
		cmd = exec.CommandContext(ctx, "bash", "-c", cmdLine)
		cmd.Dir = s.WorkDir
	} else {
		cmd = exec.CommandContext(ctx, "ssh", "-Y", host, cmdLine)
	}

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Host:     host,
		Command:  cmdLine,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, &CommandError{
				Host:     hostLabel(host),
				Command:  cmdLine,
				ExitCode: res.ExitCode,
				Stderr:   stderr.String(),
			}
		}
		return res, &CommandError{Host: hostLabel(host), Command: cmdLine, Err: err}
	}
	return res, nil
}

func (s *SSHExecutor) FileExists(ctx context.Context, host, path string) (bool, error) {
	if host == "" || host == LocalHost {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	// test -e exits 1 when the file is absent; only launch failures are errors.
	res, err := s.Execute(ctx, host, "test", "-e", path)
	if err == nil {
		return true, nil
	}
	if res != nil && res.ExitCode == 1 {
		return false, nil
	}
	return false, fmt.Errorf("check %s on %s: %w", path, host, err)
}

func (s *SSHExecutor) Copy(ctx context.Context, srcHost, srcPath, dstHost, dstPath string) (*Result, error) {
	return s.Execute(ctx, LocalHost, "scp", scpArg(srcHost, srcPath), scpArg(dstHost, dstPath))
}

func scpArg(host, path string) string {
	if host == "" || host == LocalHost {
		return path
	}
	return host + ":" + path
}

func hostLabel(host string) string {
	if host == "" {
		return LocalHost
	}
	return host
}
