/*Package comm provides a line-oriented serial channel for talking to motor
controllers over a UART or a USB CDC port.

Most usages of this package will boil down to:
	1.  Open a Channel with a Config naming the device path and baud rate.
	2.  Send a command; the newline terminator is appended for you.
	3.  Recv the reply, which comes back with the terminator stripped.
	4.  Close the channel when done.

A minimal example that asks an ODrive for its bus voltage:

	ch, err := comm.Open(comm.Config{Path: "/dev/ttyACM0", Baud: 115200})
	if err != nil {
		return 0, err
	}
	defer ch.Close()
	resp, err := ch.SendRecv("r vbus_voltage")
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
*/
package comm

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/tarm/serial"
)

const (
	// Terminator ends every line sent or received on a Channel
	Terminator = byte('\n')

	// DefaultReadTimeout bounds how long Recv waits for a reply
	DefaultReadTimeout = 1 * time.Second
)

var (
	// ErrNotConnected is generated when the channel is used after Close
	ErrNotConnected = errors.New("channel is closed, not connected to remote")

	// ErrNoResponse is generated when the read timeout elapses before any byte arrives
	ErrNoResponse = errors.New("no response within read timeout")

	// ErrTerminatorNotFound is generated when a reply starts but the
	// termination byte does not arrive before the read timeout
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Sender has a Send method that transmits one terminated line
type Sender interface {
	Send(string) error
}

// Recver has a Recv method that returns one line with the terminator stripped
type Recver interface {
	Recv() (string, error)
}

// SendRecver can send and recieve, and provides a method that sends then recieves
type SendRecver interface {
	Sender
	Recver

	SendRecv(string) (string, error)
}

// A Communicator can Send, Recv and Close
type Communicator interface {
	io.Closer
	SendRecver
}

// Config holds the parameters needed to open a serial channel
type Config struct {
	// Path is the device path, e.g. /dev/ttyACM0 or COM3
	Path string

	// Baud is the baud rate, e.g. 115200
	Baud int

	// ReadTimeout bounds each read.  Zero means DefaultReadTimeout.
	ReadTimeout time.Duration
}

// SerialConf converts the Config to a tarm serial.Config with 8N1 framing
func (c Config) SerialConf() *serial.Config {
	to := c.ReadTimeout
	if to == 0 {
		to = DefaultReadTimeout
	}
	return &serial.Config{
		Name:        c.Path,
		Baud:        c.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: to}
}

// Channel is a line-oriented connection to a remote device.
// It is not concurrent-safe; the owner serializes access.
type Channel struct {
	conn io.ReadWriteCloser
	rd   *bufio.Reader
}

// Open opens the serial port described by c
func Open(c Config) (*Channel, error) {
	port, err := serial.OpenPort(c.SerialConf())
	if err != nil {
		return nil, err
	}
	return NewChannel(port), nil
}

// NewChannel wraps an already-open stream.  The stream's Read must return
// (0, io.EOF) or (0, nil) when its read timeout elapses.
func NewChannel(conn io.ReadWriteCloser) *Channel {
	return &Channel{conn: conn, rd: bufio.NewReader(conn)}
}

// Send writes s followed by the terminator
func (c *Channel) Send(s string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	b = append(b, Terminator)
	_, err := c.conn.Write(b)
	return err
}

// Recv recieves one line from the remote and strips the terminator and
// surrounding whitespace.  A terminated but empty line returns "", nil.
func (c *Channel) Recv() (string, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}
	var sb strings.Builder
	for {
		chunk, err := c.rd.ReadString(Terminator)
		sb.WriteString(chunk)
		if err == nil {
			return strings.TrimSpace(sb.String()), nil
		}
		if err != io.EOF && err != io.ErrNoProgress {
			return "", err
		}
		// an empty read from a serial port is a read timeout
		if sb.Len() == 0 {
			return "", ErrNoResponse
		}
		if chunk == "" {
			return strings.TrimSpace(sb.String()), ErrTerminatorNotFound
		}
	}
}

// SendRecv sends a line, then returns the reply with the terminator stripped
func (c *Channel) SendRecv(s string) (string, error) {
	if err := c.Send(s); err != nil {
		return "", err
	}
	return c.Recv()
}

// Close the connection.  A second Close returns ErrNotConnected.
func (c *Channel) Close() error {
	if c.conn == nil {
		return ErrNotConnected
	}
	err := c.conn.Close()
	c.conn = nil
	c.rd = nil
	return err
}
