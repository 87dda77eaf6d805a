// Package session runs the connect, command, status, close workflow against
// one ODrive controller
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tankbot/odriveuart/comm"
	"github.com/tankbot/odriveuart/odrive"
)

const (
	// DefaultPort is the usual device node of an ODrive on Linux
	DefaultPort = "/dev/ttyACM0"

	// DefaultBaud is the ODrive UART default
	DefaultBaud = 115200

	// DefaultCommand puts axis0 in closed loop control
	DefaultCommand = "w axis0.requested_state 8"

	// DefaultSettle is the pause between the command and the status read
	DefaultSettle = 2 * time.Second
)

// Config holds the workflow parameters
type Config struct {
	Port             string
	Baud             int
	ReadTimeout      time.Duration
	DiscoveryTimeout time.Duration
	Command          string
	Settle           time.Duration
}

// DefaultConfig returns the stock parameters
func DefaultConfig() Config {
	return Config{
		Port:             DefaultPort,
		Baud:             DefaultBaud,
		ReadTimeout:      comm.DefaultReadTimeout,
		DiscoveryTimeout: odrive.DefaultDiscoveryTimeout,
		Command:          DefaultCommand,
		Settle:           DefaultSettle,
	}
}

// OpenFunc opens the command channel
type OpenFunc func(comm.Config) (comm.Communicator, error)

// Finder discovers a controller
type Finder interface {
	FindAny(ctx context.Context) (*odrive.ODrive, error)
}

// Deps are the collaborators of a session
type Deps struct {
	Open   OpenFunc
	Finder Finder

	// Sleep waits between command and status, time.Sleep when nil
	Sleep func(time.Duration)
}

// OpenSerial opens a tarm serial channel
func OpenSerial(c comm.Config) (comm.Communicator, error) {
	return comm.Open(c)
}

// Session owns an open command channel and a discovered controller
type Session struct {
	ch   comm.Communicator
	odrv *odrive.ODrive
	open bool
}

// Init opens the channel and discovers a controller.  Discovery is bounded
// by cfg.DiscoveryTimeout unless it is zero.  If discovery fails the channel
// is released before returning.
func Init(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	ch, err := deps.Open(comm.Config{Path: cfg.Port, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout})
	if err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}
	if cfg.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DiscoveryTimeout)
		defer cancel()
	}
	odrv, err := deps.Finder.FindAny(ctx)
	if err != nil {
		ch.Close()
		return nil, &DiscoveryError{Err: err}
	}
	return &Session{ch: ch, odrv: odrv, open: true}, nil
}

// ODrive returns the discovered controller
func (s *Session) ODrive() *odrive.ODrive {
	return s.odrv
}

// SendCommand transmits cmd with a newline and returns the one-line reply.
// A timeout with no reply wraps comm.ErrNoResponse; an empty line is "", nil.
func (s *Session) SendCommand(cmd string) (string, error) {
	resp, err := s.ch.SendRecv(cmd)
	if err != nil {
		return "", &OperationError{Op: "send command", Err: err}
	}
	return resp, nil
}

// ReadStatus reads a telemetry snapshot of axis0
func (s *Session) ReadStatus() (odrive.Telemetry, error) {
	t, err := odrive.ReadTelemetry(s.odrv.Axis0())
	if err != nil {
		return odrive.Telemetry{}, &OperationError{Op: "read status", Err: err}
	}
	return t, nil
}

// Close releases the command channel, then the controller link.  Only the
// first call does anything.
func (s *Session) Close() error {
	if !s.open {
		return comm.ErrNotConnected
	}
	s.open = false
	err := s.ch.Close()
	if err2 := s.odrv.Close(); err == nil {
		err = err2
	}
	return err
}

// Run performs the full workflow, narrating to w.  The returned error is
// the first failure encountered; the channel is closed on every path after
// a successful Init.
func Run(ctx context.Context, cfg Config, deps Deps, w io.Writer) (err error) {
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	narrated := deps
	narrated.Open = func(c comm.Config) (comm.Communicator, error) {
		ch, err := deps.Open(c)
		if err == nil {
			fmt.Fprintf(w, "Serial connection established on %s at %d baud\n", c.Path, c.Baud)
			fmt.Fprintln(w, "Looking for ODrive...")
		}
		return ch, err
	}
	s, err := Init(ctx, cfg, narrated)
	if err != nil {
		var conn *ConnectionError
		if errors.As(err, &conn) {
			fmt.Fprintf(w, "Error initializing UART: %v\n", conn.Err)
		} else {
			fmt.Fprintf(w, "Error connecting to ODrive: %v\n", errors.Unwrap(err))
		}
		fmt.Fprintln(w, "Failed to initialize ODrive and UART.")
		return err
	}
	fmt.Fprintln(w, "Found ODrive!")
	defer func() {
		cerr := s.Close()
		fmt.Fprintln(w, "Serial connection closed.")
		if err == nil {
			err = cerr
		}
	}()

	fmt.Fprintln(w, "ODrive initialized. Sending test command...")
	resp, err := s.SendCommand(cfg.Command)
	if err != nil {
		fmt.Fprintf(w, "Error sending command: %v\n", errors.Unwrap(err))
	} else {
		fmt.Fprintf(w, "Response: %s\n", resp)
	}

	sleep(cfg.Settle)

	status, serr := s.ReadStatus()
	if serr != nil {
		fmt.Fprintf(w, "Error reading ODrive status: %v\n", errors.Unwrap(serr))
		if err == nil {
			err = serr
		}
		return err
	}
	fmt.Fprintln(w, "ODrive Status:")
	for _, f := range status.Fields() {
		fmt.Fprintf(w, "%s: %v\n", f.Key, f.Value)
	}
	return err
}
