//go:build linux

package processmgr

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// FindByName returns the pids under root (normally os.DirFS("/proc")) whose
// command name is one of names. The calling process is never included.
func FindByName(root fs.FS, names ...string) []int {
	entries, err := fs.ReadDir(root, ".")
	if err != nil {
		return nil
	}
	self := os.Getpid()

	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() || pid == self {
			continue
		}
		comm, err := fs.ReadFile(root, e.Name()+"/comm")
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(comm))
		for _, n := range names {
			if name == n {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids
}

// KillStray terminates leftover processes of a previous run: SIGTERM, then
// SIGKILL for whatever survives grace. It returns the number of processes
// signalled.
func KillStray(log *zap.Logger, grace time.Duration, names ...string) int {
	proc := os.DirFS("/proc")
	pids := FindByName(proc, names...)
	if len(pids) == 0 {
		return 0
	}

	for _, pid := range pids {
		log.Info("terminating stray process", zap.Int("cmd_pid", pid))
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if len(FindByName(proc, names...)) == 0 {
			return len(pids)
		}
		time.Sleep(100 * time.Millisecond)
	}
	for _, pid := range FindByName(proc, names...) {
		log.Warn("stray process survived SIGTERM; sending SIGKILL", zap.Int("cmd_pid", pid))
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	return len(pids)
}
