// Package identity implements the Job Identity Store (§4.6): the
// directory lock guarding job.json plus every other mutating operation
// against a job directory, and the SSOT issuing/preserving job_id.
//
// The lock is an atomic-mkdir directory lock, generalizing the teacher's
// TryAcquireLock/ReleaseLock pattern (pkg/psp/format_2025/locking.go) from
// a single-file O_EXCL lock to a directory lock with bounded
// retry/backoff, per §4.6's ".job_json.lock/" contract. Unlike the
// teacher, this lock never auto-clears an orphaned holder: §4.6 requires
// that an operator remove a lock left behind by a dead process, so the
// dead-holder check here is diagnostic logging only.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

// pidFile is the name of the file inside the lock directory that records
// the holder's PID, so an operator (or this package's diagnostics) can
// tell which process to investigate.
const pidFile = "holder.pid"

// Lock is a held directory lock; release it with Unlock.
type Lock struct {
	path   string
	logger hclog.Logger
}

// Acquire attempts to create lockDir atomically. On EEXIST it sleeps
// retryInterval and retries up to maxRetries times, logging a warning if
// the recorded holder PID belongs to a process that is no longer running
// (the lock is left in place regardless — §4.6 requires manual clearing
// of an orphaned lock, never automatic). Exhaustion returns a
// JOB_JSON_LOCK_TIMEOUT RejectError.
func Acquire(lockDir string, retryInterval time.Duration, maxRetries int, logger hclog.Logger) (*Lock, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := os.Mkdir(lockDir, 0o755)
		if err == nil {
			if writeErr := os.WriteFile(filepath.Join(lockDir, pidFile), []byte(strconv.Itoa(os.Getpid())), 0o644); writeErr != nil {
				logger.Debug("failed to record lock holder pid", "error", writeErr)
			}
			return &Lock{path: lockDir, logger: logger}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("identity: create lock directory %s: %w", lockDir, err)
		}

		warnIfOrphaned(lockDir, logger)

		if attempt == maxRetries {
			break
		}
		time.Sleep(retryInterval)
	}

	return nil, pkgerrors.Reject(pkgerrors.JobJSONLockTimeout, "", lockDir,
		fmt.Sprintf("could not acquire %s within %d attempts", lockDir, maxRetries+1))
}

// warnIfOrphaned logs a warning when lockDir's recorded holder PID is no
// longer running. It never removes the lock: the operator must do that.
func warnIfOrphaned(lockDir string, logger hclog.Logger) {
	data, err := os.ReadFile(filepath.Join(lockDir, pidFile))
	if err != nil {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return
	}
	if !isProcessRunning(pid) {
		logger.Warn("lock directory held by a pid that is no longer running; remove it manually if the process is confirmed dead",
			"path", lockDir, "pid", pid)
	}
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Unlock releases the lock by removing its directory.
func (l *Lock) Unlock() error {
	if err := os.RemoveAll(l.path); err != nil {
		return fmt.Errorf("identity: release lock %s: %w", l.path, err)
	}
	return nil
}
