//go:build !windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultSocketPath returns $XDG_RUNTIME_DIR/musicd/musicd.sock,
// or /tmp/musicd-{uid}.sock when no runtime directory is usable.
func DefaultSocketPath() string {
	if p, err := xdg.RuntimeFile(filepath.Join("musicd", "musicd.sock")); err == nil {
		return p
	}
	return fmt.Sprintf("/tmp/musicd-%d.sock", os.Getuid())
}

// Dial connects to the service socket
func Dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

// Listen creates the service socket, replacing a stale one, readable by the current user only
func Listen(path string) (net.Listener, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return listener, nil
}

func removeEndpoint(path string) {
	os.RemoveAll(path)
}
