package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const instanceFilename = "crovest.pid"

// ErrNotRunning means no live daemon owns the data directory.
var ErrNotRunning = errors.New("crovest is not running")

// instance is the record a running daemon keeps in <dataDir>/crovest.pid.
// The stop and status commands read it instead of re-deriving the address
// from a config that may have changed since start.
type instance struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

func instancePath(dataDir string) string {
	return filepath.Join(dataDir, instanceFilename)
}

// writeInstance replaces the record atomically.
func writeInstance(dataDir string, inst instance) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory for PID file: %w", err)
	}
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encoding PID file: %w", err)
	}

	path := instancePath(dataDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing PID file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing PID file %s: %w", path, err)
	}
	return nil
}

func readInstance(dataDir string) (*instance, error) {
	path := instancePath(dataDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PID file %s: %w", path, err)
	}
	var inst instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("parsing PID file %s: %w", path, err)
	}
	if inst.PID <= 0 {
		return nil, fmt.Errorf("parsing PID file %s: invalid pid %d", path, inst.PID)
	}
	return &inst, nil
}

func removeInstance(dataDir string) error {
	path := instancePath(dataDir)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file %s: %w", path, err)
	}
	return nil
}

// releaseInstance removes the record on shutdown, unless another process
// has taken it over in the meantime.
func releaseInstance(dataDir string, pid int) error {
	inst, err := readInstance(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return removeInstance(dataDir)
	}
	if inst.PID != pid {
		return nil
	}
	return removeInstance(dataDir)
}

// liveInstance returns the recorded daemon when its process is alive. A
// record that is unreadable or left behind by a dead process is removed.
func liveInstance(dataDir string) (*instance, bool) {
	inst, err := readInstance(dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	}
	if err != nil || !processAlive(inst.PID) {
		_ = removeInstance(dataDir)
		return nil, false
	}
	return inst, true
}

// dialAddr is the address a local client connects to. Wildcard listen
// hosts are replaced by localhost.
func (i *instance) dialAddr() string {
	host, port, err := net.SplitHostPort(i.Addr)
	if err != nil {
		return i.Addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// processAlive reports whether signal 0 can be delivered to pid.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
