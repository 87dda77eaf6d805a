package odrive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tankbot/odriveuart/comm"
)

const (
	// DefaultDiscoveryTimeout bounds FindAny when Finder.Timeout is zero
	DefaultDiscoveryTimeout = 10 * time.Second

	// ByIDDir is where udev publishes stable names for serial devices
	ByIDDir = "/dev/serial/by-id"

	defaultPollInterval = 250 * time.Millisecond
)

var (
	// ErrNotFound is generated when no controller answers before the discovery timeout
	ErrNotFound = errors.New("no ODrive found")

	errNoCandidates = errors.New("no candidate devices attached")
)

// DialFunc opens a line channel
type DialFunc func(comm.Config) (comm.Communicator, error)

func dialSerial(c comm.Config) (comm.Communicator, error) {
	return comm.Open(c)
}

// Finder locates a controller.  If Path is set only that device is probed,
// otherwise USB is enumerated and each controller's CDC port is probed.
type Finder struct {
	// Timeout bounds the search, zero means DefaultDiscoveryTimeout
	Timeout time.Duration

	// Path pins discovery to one device path
	Path string

	// Baud and ReadTimeout configure the probe channel
	Baud        int
	ReadTimeout time.Duration

	// PollInterval is the pause between attempts
	PollInterval time.Duration

	Enumerator Enumerator
	Glob       func(pattern string) ([]string, error)
	Dial       DialFunc
}

// NewFinder returns a Finder using libusb and tarm serial
func NewFinder(timeout time.Duration) *Finder {
	return &Finder{
		Timeout:    timeout,
		Baud:       115200,
		Enumerator: USBEnumerator{},
		Glob:       filepath.Glob,
		Dial:       dialSerial,
	}
}

type candidate struct {
	path    string
	serial  string
	product string
}

func (f *Finder) candidates() ([]candidate, error) {
	if f.Path != "" {
		return []candidate{{path: f.Path}}, nil
	}
	devs, err := f.Enumerator.Enumerate()
	if err != nil {
		return nil, err
	}
	out := []candidate{}
	for _, d := range devs {
		matches, err := f.Glob(filepath.Join(ByIDDir, "*ODrive*"+d.SerialNumber+"*"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			out = append(out, candidate{path: m, serial: d.SerialNumber, product: d.Product})
		}
	}
	if len(out) == 0 {
		return nil, errNoCandidates
	}
	return out, nil
}

// probe opens a candidate and checks that it answers a bus voltage read
func (f *Finder) probe(c candidate) (*ODrive, error) {
	ch, err := f.Dial(comm.Config{Path: c.path, Baud: f.Baud, ReadTimeout: f.ReadTimeout})
	if err != nil {
		return nil, err
	}
	odrv := New(NewASCII(ch), ch)
	if _, err = odrv.VbusVoltage(); err != nil {
		ch.Close()
		return nil, fmt.Errorf("%s did not answer: %w", c.path, err)
	}
	odrv.Path = c.path
	odrv.SerialNumber = c.serial
	odrv.Product = c.product
	return odrv, nil
}

// FindAny returns the first controller that answers, polling until the
// timeout elapses or ctx is done
func (f *Finder) FindAny(ctx context.Context) (*ODrive, error) {
	timeout := f.Timeout
	if timeout == 0 {
		timeout = DefaultDiscoveryTimeout
	}
	poll := f.PollInterval
	if poll == 0 {
		poll = defaultPollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var found *ODrive
	op := func() error {
		cands, err := f.candidates()
		if err != nil {
			return err
		}
		var lastErr error
		for _, c := range cands {
			odrv, err := f.probe(c)
			if err == nil {
				found = odrv
				return nil
			}
			lastErr = err
		}
		return lastErr
	}
	err := backoff.Retry(op, backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     poll,
		RandomizationFactor: 0.,
		Multiplier:          1.,
		MaxInterval:         poll,
		MaxElapsedTime:      timeout,
		Clock:               backoff.SystemClock}, ctx))
	if err == nil && found != nil {
		return found, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	return nil, fmt.Errorf("%w within %s: %v", ErrNotFound, timeout, err)
}
