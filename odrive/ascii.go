package odrive

import (
	"strings"

	"github.com/tankbot/odriveuart/comm"
)

const (
	replyInvalidProperty = "invalid property"
	replyInvalidCommand  = "invalid command format"
)

// ASCII is an Endpoint speaking the ASCII protocol over a line channel
type ASCII struct {
	Comm comm.SendRecver
}

// NewASCII returns an ASCII endpoint on top of c
func NewASCII(c comm.SendRecver) *ASCII {
	return &ASCII{Comm: c}
}

func checkReply(path, resp string) error {
	switch {
	case strings.HasPrefix(resp, replyInvalidProperty):
		return ErrInvalidProperty{Path: path}
	case strings.HasPrefix(resp, replyInvalidCommand):
		return ErrInvalidCommand
	}
	return nil
}

// Read sends "r <path>" and returns the reply
func (a *ASCII) Read(path string) (string, error) {
	resp, err := a.Comm.SendRecv("r " + path)
	if err != nil {
		return "", err
	}
	if err = checkReply(path, resp); err != nil {
		return "", err
	}
	return resp, nil
}

// Write sends "w <path> <value>".  The controller does not acknowledge writes.
func (a *ASCII) Write(path, value string) error {
	return a.Comm.Send(strings.Join([]string{"w", path, value}, " "))
}
