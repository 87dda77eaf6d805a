package main

import (
	"path/filepath"

	"github.com/tankbot/odriveuart/comm"
	"github.com/tankbot/odriveuart/odrive"
	"github.com/tankbot/odriveuart/session"
)

// sharedUART is the command channel lent to discovery.  The session owns
// the channel and closes it, so closing the loan does nothing.
type sharedUART struct {
	comm.Communicator
}

func (sharedUART) Close() error {
	return nil
}

// sameDevice reports whether a and b name the same device node once
// symlinks such as those under /dev/serial/by-id are resolved
func sameDevice(a, b string) bool {
	if a == b {
		return true
	}
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		return false
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		return false
	}
	return ra == rb
}

// serialDeps opens the command UART with open and hands the same channel to
// discovery when a candidate is that tty, so one device never has two
// readers racing for its replies
func serialDeps(c Config, open session.OpenFunc) session.Deps {
	var uart comm.Communicator
	f := c.finder()
	dial := f.Dial
	f.Dial = func(cc comm.Config) (comm.Communicator, error) {
		if uart != nil && sameDevice(cc.Path, c.Port) {
			return sharedUART{uart}, nil
		}
		return dial(cc)
	}
	return session.Deps{
		Open: func(cc comm.Config) (comm.Communicator, error) {
			ch, err := open(cc)
			if err == nil {
				uart = ch
			}
			return ch, err
		},
		Finder: f,
	}
}

// foundMessage describes a discovered controller for the spinner
func foundMessage(o *odrive.ODrive) string {
	if o.SerialNumber == "" {
		return " found on " + o.Path
	}
	return " found " + o.Product + " " + o.SerialNumber + " on " + o.Path
}
