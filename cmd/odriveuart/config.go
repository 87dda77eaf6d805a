package main

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/tankbot/odriveuart/comm"
	"github.com/tankbot/odriveuart/odrive"
	"github.com/tankbot/odriveuart/session"
)

// Config holds everything odriveuart can be told
type Config struct {
	// Port is the UART the command is written to
	Port string `koanf:"port"`

	// Baud is the UART baud rate
	Baud int `koanf:"baud"`

	// ReadTimeout bounds each line read on the UART
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// DiscoveryTimeout bounds the search for a controller
	DiscoveryTimeout time.Duration `koanf:"discovery_timeout"`

	// DevicePath pins discovery to one device instead of scanning USB
	DevicePath string `koanf:"device_path"`

	// Command is sent once by the run workflow
	Command string `koanf:"command"`

	// Settle is the pause between the command and the status read
	Settle time.Duration `koanf:"settle"`

	// Addr is the address serve listens at
	Addr string `koanf:"addr"`

	// Endpoint is the URL prefix serve mounts the controller under
	Endpoint string `koanf:"endpoint"`

	// Mock replaces the hardware with an in-memory controller
	Mock bool `koanf:"mock"`

	// RawRate limits POST /raw to this many commands per second, 0 for no limit
	RawRate float64 `koanf:"raw_rate"`
}

func defaultConfig() Config {
	return Config{
		Port:             session.DefaultPort,
		Baud:             session.DefaultBaud,
		ReadTimeout:      comm.DefaultReadTimeout,
		DiscoveryTimeout: odrive.DefaultDiscoveryTimeout,
		Command:          session.DefaultCommand,
		Settle:           session.DefaultSettle,
		Addr:             ":8000",
		Endpoint:         "/odrive",
		RawRate:          10,
	}
}

// loadConfig populates k with the defaults, then the file at path if it exists
func loadConfig(k *koanf.Koanf, path string) (Config, error) {
	c := Config{}
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return c, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// file missing, who cares
		if !errors.Is(err, os.ErrNotExist) && !strings.Contains(err.Error(), "no such") {
			return c, err
		}
	}
	err := k.Unmarshal("", &c)
	return c, err
}

func (c Config) sessionConfig() session.Config {
	return session.Config{
		Port:             c.Port,
		Baud:             c.Baud,
		ReadTimeout:      c.ReadTimeout,
		DiscoveryTimeout: c.DiscoveryTimeout,
		Command:          c.Command,
		Settle:           c.Settle,
	}
}

func (c Config) finder() *odrive.Finder {
	f := odrive.NewFinder(c.DiscoveryTimeout)
	f.Path = c.DevicePath
	f.Baud = c.Baud
	f.ReadTimeout = c.ReadTimeout
	return f
}

// writeYAML writes c with durations spelled as "1s" rather than nanoseconds
func (c Config) writeYAML(w io.Writer) error {
	doc := yml.MapSlice{
		{Key: "port", Value: c.Port},
		{Key: "baud", Value: c.Baud},
		{Key: "read_timeout", Value: c.ReadTimeout.String()},
		{Key: "discovery_timeout", Value: c.DiscoveryTimeout.String()},
		{Key: "device_path", Value: c.DevicePath},
		{Key: "command", Value: c.Command},
		{Key: "settle", Value: c.Settle.String()},
		{Key: "addr", Value: c.Addr},
		{Key: "endpoint", Value: c.Endpoint},
		{Key: "mock", Value: c.Mock},
		{Key: "raw_rate", Value: c.RawRate},
	}
	enc := yml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
