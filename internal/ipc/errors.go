package ipc

import "errors"

var (
	// ErrClosed is returned by calls on a connection that has been closed
	ErrClosed = errors.New("ipc: connection closed")

	// ErrUnauthorized matches a RemoteError caused by a missing or rejected token
	ErrUnauthorized = errors.New("unauthorized")
)

// unauthorizedMessage is the error text the server uses for token failures
const unauthorizedMessage = "unauthorized"

// RemoteError is an error response returned by the service
type RemoteError struct {
	Cmd     CommandType
	Message string
}

func (e *RemoteError) Error() string {
	return string(e.Cmd) + ": " + e.Message
}

// Is reports unauthorized responses as ErrUnauthorized
func (e *RemoteError) Is(target error) bool {
	return target == ErrUnauthorized && e.Message == unauthorizedMessage
}
