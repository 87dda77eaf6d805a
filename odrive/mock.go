package odrive

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Mock is an in-memory controller.  Writing axisN.requested_state moves
// axisN.current_state to the requested value immediately.
type Mock struct {
	sync.Mutex
	props map[string]string

	// Fail makes reads of the named paths return the given error
	Fail map[string]error

	// Reads counts reads per path
	Reads map[string]int
}

// NewMock returns a mock controller idling with a warm motor
func NewMock() *Mock {
	return &Mock{
		props: map[string]string{
			"vbus_voltage":                             "24.0",
			"axis0.current_state":                      "1",
			"axis0.requested_state":                    "0",
			"axis0.encoder.pos_estimate":               "0.0",
			"axis0.encoder.vel_estimate":               "0.0",
			"axis0.motor.motor_thermistor.temperature": "25.0",
			"axis1.current_state":                      "1",
			"axis1.requested_state":                    "0",
			"axis1.encoder.pos_estimate":               "0.0",
			"axis1.encoder.vel_estimate":               "0.0",
			"axis1.motor.motor_thermistor.temperature": "25.0",
		},
		Fail:  make(map[string]error),
		Reads: make(map[string]int),
	}
}

// Set a property directly
func (m *Mock) Set(path, value string) {
	m.Lock()
	defer m.Unlock()
	m.props[path] = value
}

// Get a property directly
func (m *Mock) Get(path string) string {
	m.Lock()
	defer m.Unlock()
	return m.props[path]
}

// Read satisfies Endpoint
func (m *Mock) Read(path string) (string, error) {
	m.Lock()
	defer m.Unlock()
	m.Reads[path]++
	if err, ok := m.Fail[path]; ok {
		return "", err
	}
	v, ok := m.props[path]
	if !ok {
		return "", ErrInvalidProperty{Path: path}
	}
	return v, nil
}

// Write satisfies Endpoint
func (m *Mock) Write(path, value string) error {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.props[path]; !ok {
		return ErrInvalidProperty{Path: path}
	}
	m.props[path] = value
	if strings.HasSuffix(path, ".requested_state") {
		m.props[strings.TrimSuffix(path, "requested_state")+"current_state"] = value
	}
	return nil
}

// Stream returns a byte stream that answers the ASCII protocol from the
// mock's property tree.  Reads with nothing pending return io.EOF, as a
// serial port does on timeout.
func (m *Mock) Stream() io.ReadWriteCloser {
	return &mockStream{m: m}
}

type mockStream struct {
	m       *Mock
	pending bytes.Buffer
	out     bytes.Buffer
}

func (s *mockStream) Write(p []byte) (int, error) {
	s.pending.Write(p)
	for {
		line, err := s.pending.ReadString('\n')
		if err != nil {
			// put back the incomplete line
			rest := append([]byte(line), s.pending.Bytes()...)
			s.pending.Reset()
			s.pending.Write(rest)
			break
		}
		s.handle(strings.TrimSpace(line))
	}
	return len(p), nil
}

func (s *mockStream) handle(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "r":
		if len(fields) != 2 {
			s.out.WriteString(replyInvalidCommand + "\n")
			return
		}
		v, err := s.m.Read(fields[1])
		if err != nil {
			s.out.WriteString(replyInvalidProperty + "\n")
			return
		}
		s.out.WriteString(v + "\n")
	case "w":
		if len(fields) != 3 {
			s.out.WriteString(replyInvalidCommand + "\n")
			return
		}
		if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
			s.out.WriteString(replyInvalidCommand + "\n")
			return
		}
		if err := s.m.Write(fields[1], fields[2]); err != nil {
			s.out.WriteString(replyInvalidProperty + "\n")
		}
	default:
		s.out.WriteString(replyInvalidCommand + "\n")
	}
}

func (s *mockStream) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

func (s *mockStream) Close() error {
	return nil
}
