package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

// AcquireLock takes the per-experiment lock so two mutating invocations
// cannot interleave writes to the same state file. It returns a release
// function; a held lock aborts with a message naming the lock file instead
// of waiting.
func AcquireLock(expDir string) (func(), error) {
	if err := os.MkdirAll(expDir, 0o755); err != nil {
		return nil, fmt.Errorf("create experiment directory: %w", err)
	}
	path := filepath.Join(expDir, ".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another evnpp invocation holds %s; remove it if that run is gone", path)
		}
		return nil, fmt.Errorf("take lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { os.Remove(path) }, nil
}
