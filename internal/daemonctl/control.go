package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"showseed/internal/config"
	"showseed/internal/ipc"
	"showseed/internal/preflight"
	"showseed/internal/snapshot"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartResult captures daemon start orchestration state.
type StartResult struct {
	AlreadyRunning bool
	PID            int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	Signaled   bool
	ForcedKill bool
	PID        int
}

// Snapshot is the status the CLI renders, with offline fallbacks filled in.
type Snapshot struct {
	Status *ipc.StatusResponse
	// PersistedJobs counts jobs waiting in the snapshot file while the
	// daemon is down.
	PersistedJobs int
}

// Launch starts a detached showseed daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless it already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		status, _ := client.Status()
		result := StartResult{AlreadyRunning: true}
		if status != nil {
			result.PID = status.PID
		}
		return result, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{PID: status.PID}, nil
}

// Stop sends SIGTERM to the daemon so it persists its jobs, then kills it if
// the socket is still answering after gracePeriod.
func Stop(socketPath, pidPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	status, statusErr := client.Status()
	_ = client.Close()

	pid := ReadPID(pidPath)
	if statusErr == nil && status.PID > 0 {
		pid = status.PID
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{Signaled: true, PID: pid}

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	_ = os.Remove(pidPath)
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	return result, nil
}

// WaitForShutdown waits for daemon IPC to stop answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return nil
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("daemon did not stop before timeout")
}

// ReadPID returns the pid recorded at path, or 0.
func ReadPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// WritePID records the current process id at path.
func WritePID(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// BuildStatusSnapshot asks the daemon for its status. When the daemon is
// down it runs preflight locally and counts the jobs a restart would resume.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			return &Snapshot{Status: resp}, nil
		}
	}

	status := &ipc.StatusResponse{
		LockPath:     cfg.LockPath(),
		SnapshotPath: cfg.SnapshotPath(),
		LogPath:      cfg.LogPath(),
		Preflight:    preflight.RunAll(ctx, cfg),
	}
	snap := &Snapshot{Status: status}
	if snapshot.Exists(cfg.SnapshotPath()) {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		records, err := snapshot.Load(queryCtx, cfg.SnapshotPath())
		if err != nil {
			return snap, fmt.Errorf("read job snapshot: %w", err)
		}
		snap.PersistedJobs = len(records)
	}
	return snap, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
