//go:build windows

package ipc

import (
	"context"
	"net"
	"os/user"
	"regexp"

	"github.com/Microsoft/go-winio"
)

var pipeNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DefaultSocketPath returns the per-user named pipe of the service
func DefaultSocketPath() string {
	name := `\\.\pipe\musicd`
	if u, err := user.Current(); err == nil {
		name += pipeNameSanitizer.ReplaceAllString(u.Username, "")
	}
	return name
}

// Dial connects to the service pipe
func Dial(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

// Listen creates the service pipe
func Listen(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}

// Named pipes are removed by the system when the listener closes
func removeEndpoint(string) {}
