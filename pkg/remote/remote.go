// Package remote runs commands for the post-processing steps, either on the
// local machine or on one of the correlator/pipeline hosts over ssh. Every
// execution path, local or remote, produces the same Result record.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LocalHost is the host name that makes an Executor run commands in-process
// instead of over ssh.
const LocalHost = "local"

// Result is the single record produced by every command execution.
type Result struct {
	Host     string        `json:"host"`
	Command  string        `json:"command"`
	Stdout   []byte        `json:"-"`
	Stderr   []byte        `json:"-"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandLine returns the command as it was launched, for logs and records.
func (r *Result) CommandLine() string {
	if r.Host == "" || r.Host == LocalHost {
		return r.Command
	}
	return fmt.Sprintf("%s: %s", r.Host, r.Command)
}

// Executor runs commands on behalf of the processing steps.
type Executor interface {
	// Execute runs command with args on host and waits for it to finish.
	// A non-zero exit status is reported as a *CommandError; the Result is
	// still returned alongside it so callers can inspect the output.
	Execute(ctx context.Context, host, command string, args ...string) (*Result, error)

	// FileExists reports whether path exists on host.
	FileExists(ctx context.Context, host, path string) (bool, error)

	// Copy transfers a file between hosts. Either side may be LocalHost.
	Copy(ctx context.Context, srcHost, srcPath, dstHost, dstPath string) (*Result, error)
}

// CommandError reports a command that ran but exited non-zero, or could not
// be launched at all.
type CommandError struct {
	Host     string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	tail := lastLines(e.Stderr, 3)
	if e.Err != nil {
		return fmt.Sprintf("command %q on %s: %v", e.Command, e.Host, e.Err)
	}
	if tail != "" {
		return fmt.Sprintf("command %q on %s exited %d: %s", e.Command, e.Host, e.ExitCode, tail)
	}
	return fmt.Sprintf("command %q on %s exited %d", e.Command, e.Host, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// lastLines keeps the final n non-empty lines of s on a single line.
func lastLines(s string, n int) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}

// CommandString joins a command and its arguments for display.
func CommandString(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
