package remote

import (
	"context"
	"time"
)

// DryRunExecutor records what would run without touching any host.
type DryRunExecutor struct {
	// Commands collects every command line handed to Execute or Copy.
	Commands []string
	// Log, when set, receives each command line as it is recorded.
	Log func(line string)
}

func (d *DryRunExecutor) Execute(ctx context.Context, host, command string, args ...string) (*Result, error) {
	cmdLine := CommandString(command, args)
	res := &Result{Host: host, Command: cmdLine, Duration: time.Duration(0)}
	d.record(res.CommandLine())
	return res, nil
}

func (d *DryRunExecutor) FileExists(ctx context.Context, host, path string) (bool, error) {
	// Assume present so later steps stay reachable in a dry run.
	return true, nil
}

func (d *DryRunExecutor) Copy(ctx context.Context, srcHost, srcPath, dstHost, dstPath string) (*Result, error) {
	return d.Execute(ctx, LocalHost, "scp", scpArg(srcHost, srcPath), scpArg(dstHost, dstPath))
}

func (d *DryRunExecutor) record(line string) {
	d.Commands = append(d.Commands, line)
	if d.Log != nil {
		d.Log(line)
	}
}
