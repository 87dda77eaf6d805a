package main

import (
	"context"
	"time"

	"github.com/theckman/yacspin"

	"github.com/tankbot/odriveuart/odrive"
	"github.com/tankbot/odriveuart/session"
)

// spinnerFinder shows a spinner on stdout while discovery runs
type spinnerFinder struct {
	session.Finder
}

func (s spinnerFinder) FindAny(ctx context.Context) (*odrive.ODrive, error) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " searching USB",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return s.Finder.FindAny(ctx)
	}
	spinner.Start()
	odrv, err := s.Finder.FindAny(ctx)
	if err != nil {
		spinner.StopFail()
		return nil, err
	}
	spinner.StopMessage(foundMessage(odrv))
	spinner.Stop()
	return odrv, nil
}
