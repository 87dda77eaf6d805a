package session

import "fmt"

// ConnectionError is generated when the serial channel cannot be opened
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("opening %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DiscoveryError is generated when no controller is found
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering controller: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// OperationError is generated when a command or a telemetry read fails
type OperationError struct {
	// Op is "send command" or "read status"
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
