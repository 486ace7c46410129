package broadcast

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoRuntimeDir is returned when the runtime directory cannot be
// resolved. Callers treat it as a fatal startup error.
var ErrNoRuntimeDir = errors.New("XDG_RUNTIME_DIR not set")

// runtimeSubdir is the per-user directory holding pulsebar sockets.
const runtimeSubdir = "pulsebar"

// SocketPath resolves the socket path for a named producer. An absolute
// name is used as-is. Otherwise the path is
// $XDG_RUNTIME_DIR/pulsebar/<name>; the directory is created if absent.
func SocketPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", ErrNoRuntimeDir
	}
	dir := filepath.Join(runtimeDir, runtimeSubdir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}
