package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/knadh/koanf"

	"github.com/tankbot/odriveuart/odrive"
	"github.com/tankbot/odriveuart/session"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "odriveuart.yml"
	k              = koanf.New(".")
)

func help() {
	str := `odriveuart talks to an ODrive motor controller over a serial link.

With no command it opens the UART, finds the controller, sends the configured
command (by default "w axis0.requested_state 8", closed loop control), waits,
prints the axis0 telemetry and closes the UART.

Usage:
	odriveuart [command]

Commands:
	run      the default workflow
	serve    expose telemetry, state and raw commands over HTTP
	mkconf   write the current configuration to odriveuart.yml
	conf     print the current configuration
	version
	help

Configuration is read from odriveuart.yml in the working directory if it
exists.  Keys: port, baud, read_timeout, discovery_timeout, device_path,
command, settle, addr, endpoint, mock, raw_rate.

When device_path is empty the controller is found by scanning USB for
VID 1209 PID 0D32 and opening its /dev/serial/by-id node.  If that node
(or device_path) is the same tty as port, discovery reuses the command
UART instead of opening the device a second time.`
	fmt.Println(str)
}

func mkconf(c Config) {
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err = c.writeYAML(f); err != nil {
		log.Fatal(err)
	}
}

func printconf(c Config) {
	if err := c.writeYAML(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("odriveuart version %v\n", Version)
}

// run performs the workflow.  Failures are narrated on stdout and do not
// change the exit status.
func run(c Config) {
	deps := serialDeps(c, session.OpenSerial)
	deps.Finder = spinnerFinder{deps.Finder}
	if c.Mock {
		deps = mockDeps(odrive.NewMock())
	}
	session.Run(context.Background(), c.sessionConfig(), deps, os.Stdout)
}

func serve(c Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	n, err := openNode(ctx, c)
	if err != nil {
		log.Fatal(err)
	}
	defer n.Close()
	srv := &http.Server{Addr: c.Addr, Handler: BuildMux(c, n)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	log.Println("now listening for requests at ", c.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Println(err)
	}
}

func main() {
	c, err := loadConfig(k, ConfigFileName)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = strings.ToLower(os.Args[1])
	}
	switch cmd {
	case "run":
		run(c)
	case "serve":
		serve(c)
	case "mkconf":
		mkconf(c)
	case "conf":
		printconf(c)
	case "version":
		pversion()
	case "help", "-h", "--help":
		help()
	default:
		log.Fatal("unknown command ", cmd)
	}
}
