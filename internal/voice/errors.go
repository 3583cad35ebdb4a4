package voice

import (
	"errors"
	"fmt"
)

// Command failure classes surfaced to callers through reply slots.
var (
	// ErrNotConnected is returned when a command arrives while the worker
	// is not logged in to the voice server.
	ErrNotConnected = errors.New("not connected to voice server")

	// ErrDispatchFailed is returned when the client refused to start an
	// operation (non-positive command id).
	ErrDispatchFailed = errors.New("failed to dispatch command")

	// ErrConnectionLost is returned for commands that were in flight when
	// the connection dropped.
	ErrConnectionLost = errors.New("connection to voice server lost")
)

// ServerError is a terminal error reported by the voice server for a
// dispatched command.
type ServerError struct {
	Code    int32
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("command rejected by server (code %d)", e.Code)
	}
	return fmt.Sprintf("command rejected by server: %s (code %d)", e.Message, e.Code)
}

// IsServerRejected reports whether err is a server-side command rejection.
func IsServerRejected(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
