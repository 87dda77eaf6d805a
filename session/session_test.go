package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankbot/odriveuart/comm"
	"github.com/tankbot/odriveuart/odrive"
)

// fakeChannel wraps a comm.Channel over an in-memory stream and counts closes
type fakeChannel struct {
	*comm.Channel
	stream *stream
	closes int
}

type stream struct {
	reply   *strings.Reader
	written bytes.Buffer
	readErr error
}

func (s *stream) Read(p []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.reply.Read(p)
}

func (s *stream) Write(p []byte) (int, error) { return s.written.Write(p) }
func (s *stream) Close() error                { return nil }

func newFakeChannel(reply string) *fakeChannel {
	st := &stream{reply: strings.NewReader(reply)}
	return &fakeChannel{Channel: comm.NewChannel(st), stream: st}
}

func (f *fakeChannel) Close() error {
	f.closes++
	return f.Channel.Close()
}

type fakeFinder struct {
	odrv  *odrive.ODrive
	err   error
	calls int
}

func (f *fakeFinder) FindAny(ctx context.Context) (*odrive.ODrive, error) {
	f.calls++
	return f.odrv, f.err
}

type harness struct {
	ch      *fakeChannel
	finder  *fakeFinder
	mock    *odrive.Mock
	opened  []comm.Config
	openErr error
	slept   []time.Duration
}

func newHarness(reply string) *harness {
	m := odrive.NewMock()
	return &harness{
		ch:     newFakeChannel(reply),
		finder: &fakeFinder{odrv: odrive.New(m, nil)},
		mock:   m,
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Open: func(c comm.Config) (comm.Communicator, error) {
			h.opened = append(h.opened, c)
			if h.openErr != nil {
				return nil, h.openErr
			}
			return h.ch, nil
		},
		Finder: h.finder,
		Sleep:  func(d time.Duration) { h.slept = append(h.slept, d) },
	}
}

func TestInitPassesPortAndBaud(t *testing.T) {
	h := newHarness("")
	cfg := DefaultConfig()
	s, err := Init(context.Background(), cfg, h.deps())
	require.NoError(t, err)
	defer s.Close()
	require.Len(t, h.opened, 1)
	assert.Equal(t, comm.Config{Path: "/dev/ttyACM0", Baud: 115200, ReadTimeout: time.Second}, h.opened[0])
}

func TestInitConnectionFailureSkipsDiscovery(t *testing.T) {
	h := newHarness("")
	h.openErr = errors.New("no such file or directory")
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	assert.Nil(t, s)
	var ce *ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "/dev/ttyACM0", ce.Port)
	assert.Equal(t, 0, h.finder.calls)
}

func TestInitDiscoveryFailureReleasesChannel(t *testing.T) {
	h := newHarness("")
	h.finder = &fakeFinder{err: odrive.ErrNotFound}
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	assert.Nil(t, s)
	var de *DiscoveryError
	require.True(t, errors.As(err, &de))
	assert.True(t, errors.Is(err, odrive.ErrNotFound))
	assert.Equal(t, 1, h.ch.closes)
}

// waitingFinder only returns once its context is done
type waitingFinder struct{}

func (waitingFinder) FindAny(ctx context.Context) (*odrive.ODrive, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInitBoundsDiscovery(t *testing.T) {
	h := newHarness("")
	deps := h.deps()
	deps.Finder = waitingFinder{}
	cfg := DefaultConfig()
	cfg.DiscoveryTimeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := Init(context.Background(), cfg, deps)
		done <- err
	}()
	select {
	case err := <-done:
		var de *DiscoveryError
		require.True(t, errors.As(err, &de))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, 1, h.ch.closes)
	case <-time.After(5 * time.Second):
		t.Fatal("Init did not return after the discovery timeout")
	}
}

func TestSendCommandBytes(t *testing.T) {
	h := newHarness("w axis0.requested_state 8\n")
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	require.NoError(t, err)
	defer s.Close()
	resp, err := s.SendCommand("w axis0.requested_state 8")
	require.NoError(t, err)
	assert.Equal(t, "w axis0.requested_state 8", resp)
	assert.Equal(t, []byte("w axis0.requested_state 8\n"), h.ch.stream.written.Bytes())
}

func TestSendCommandNoResponse(t *testing.T) {
	h := newHarness("")
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	require.NoError(t, err)
	defer s.Close()
	resp, err := s.SendCommand("w axis0.requested_state 8")
	assert.Equal(t, "", resp)
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "send command", oe.Op)
	assert.True(t, errors.Is(err, comm.ErrNoResponse))
}

func TestSendCommandEmptyLineIsAResponse(t *testing.T) {
	h := newHarness("\r\n")
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	require.NoError(t, err)
	defer s.Close()
	resp, err := s.SendCommand("w axis0.requested_state 8")
	require.NoError(t, err)
	assert.Equal(t, "", resp)
}

func TestReadStatusFailureIsOperationError(t *testing.T) {
	h := newHarness("")
	h.mock.Fail["axis0.encoder.vel_estimate"] = errors.New("timeout")
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	require.NoError(t, err)
	defer s.Close()
	tel, err := s.ReadStatus()
	assert.Equal(t, odrive.Telemetry{}, tel)
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "read status", oe.Op)
}

func TestCloseOnce(t *testing.T) {
	h := newHarness("")
	s, err := Init(context.Background(), DefaultConfig(), h.deps())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, comm.ErrNotConnected, s.Close())
	assert.Equal(t, 1, h.ch.closes)
}

func TestRunEchoScenario(t *testing.T) {
	h := newHarness("w axis0.requested_state 8\n")
	h.mock.Set("axis0.encoder.pos_estimate", "0.5")
	h.mock.Set("axis0.encoder.vel_estimate", "0.25")
	h.mock.Set("axis0.motor.motor_thermistor.temperature", "30.5")
	// the controller reached closed loop
	h.mock.Set("axis0.current_state", "8")

	var out bytes.Buffer
	err := Run(context.Background(), DefaultConfig(), h.deps(), &out)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Serial connection established on /dev/ttyACM0 at 115200 baud",
		"Looking for ODrive...",
		"Found ODrive!",
		"ODrive initialized. Sending test command...",
		"Response: w axis0.requested_state 8",
		"ODrive Status:",
		"current_state: 8",
		"pos_estimate: 0.5",
		"vel_estimate: 0.25",
		"motor_temperature: 30.5",
		"Serial connection closed.",
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, []time.Duration{2 * time.Second}, h.slept)
	assert.Equal(t, 1, h.ch.closes)
}

func TestRunConnectionFailure(t *testing.T) {
	h := newHarness("")
	h.openErr = errors.New("could not open port /dev/ttyACM0")
	var out bytes.Buffer
	err := Run(context.Background(), DefaultConfig(), h.deps(), &out)
	var ce *ConnectionError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "Error initializing UART: could not open port /dev/ttyACM0\nFailed to initialize ODrive and UART.\n", out.String())
	assert.Equal(t, 0, h.finder.calls)
	assert.Empty(t, h.slept)
}

func TestRunDiscoveryFailure(t *testing.T) {
	h := newHarness("")
	h.finder = &fakeFinder{err: odrive.ErrNotFound}
	var out bytes.Buffer
	err := Run(context.Background(), DefaultConfig(), h.deps(), &out)
	var de *DiscoveryError
	assert.True(t, errors.As(err, &de))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"Serial connection established on /dev/ttyACM0 at 115200 baud",
		"Looking for ODrive...",
		"Error connecting to ODrive: no ODrive found",
		"Failed to initialize ODrive and UART.",
	}, lines)
	assert.Empty(t, h.ch.stream.written.Bytes())
	assert.Empty(t, h.mock.Reads)
	assert.NotContains(t, out.String(), "Serial connection closed.")
}

func TestRunClosesAfterCommandAndStatusFailures(t *testing.T) {
	h := newHarness("")
	h.ch.stream.readErr = errors.New("device reports readiness to read but returned no data")
	h.mock.Fail["axis0.current_state"] = errors.New("link dropped")
	var out bytes.Buffer
	err := Run(context.Background(), DefaultConfig(), h.deps(), &out)
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "send command", oe.Op)
	assert.Contains(t, out.String(), "Error sending command: device reports readiness to read but returned no data\n")
	assert.Contains(t, out.String(), "Error reading ODrive status: link dropped\n")
	assert.NotContains(t, out.String(), "Response:")
	assert.NotContains(t, out.String(), "ODrive Status:")
	assert.True(t, strings.HasSuffix(out.String(), "Serial connection closed.\n"))
	assert.Equal(t, 1, h.ch.closes)
}
