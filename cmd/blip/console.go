package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/srg/blip/internal/groutine"
	"github.com/srg/blip/internal/peripheral"
)

// controller is the part of the peripheral the console drives.
type controller interface {
	Start() error
	Stop()
	Send(text string) error
	State() peripheral.AdvertisingState
	Peer() (peripheral.Peer, bool)
}

// lineReader yields one command line per call; io.EOF or
// readline.ErrInterrupt ends the session.
type lineReader interface {
	Readline() (string, error)
}

// console is the interactive surface: it runs commands against a controller
// and presents peripheral events.
type console struct {
	ctl  controller
	out  io.Writer
	name string

	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	value *color.Color
}

func newConsole(ctl controller, out io.Writer, name string, colorize bool) *console {
	c := &console{
		ctl:   ctl,
		out:   out,
		name:  name,
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		value: color.New(color.FgCyan, color.Bold),
	}
	for _, col := range []*color.Color{c.ok, c.warn, c.fail, c.value} {
		if colorize {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// eventSource presents peripheral events until ctx is done.
type eventSource func(ctx context.Context, pr peripheral.Presenter)

// run presents events in the background and executes lines until the
// reader ends, quit is entered or ctx is cancelled. A nil present skips
// event delivery.
func (c *console) run(ctx context.Context, lines lineReader, present eventSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if present != nil {
		delivered := groutine.Go(ctx, "console-events", func(ctx context.Context) {
			present(ctx, c)
		})
		defer func() {
			cancel()
			<-delivered
		}()
	}

	c.printHelp()
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := lines.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}
		if c.execute(line) {
			return nil
		}
	}
}

// execute runs one command line and reports whether the session should end.
func (c *console) execute(line string) (quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	switch strings.ToLower(cmd) {
	case "help", "?":
		c.printHelp()
	case "start":
		c.cmdStart()
	case "stop":
		c.ctl.Stop()
		fmt.Fprintln(c.out, "Advertising stopped")
	case "send", "s":
		c.cmdSend(strings.TrimLeft(rest, " "))
	case "status":
		c.cmdStatus()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *console) cmdStart() {
	if st := c.ctl.State(); st != peripheral.AdvertisingIdle {
		fmt.Fprintf(c.out, "Already %s\n", st)
		return
	}
	if err := c.ctl.Start(); err != nil {
		c.fail.Fprintf(c.out, "Start failed: %s\n", FormatUserError(err))
		return
	}
	fmt.Fprintln(c.out, "Advertising requested")
}

func (c *console) cmdSend(text string) {
	if err := c.ctl.Send(text); err != nil {
		c.fail.Fprintf(c.out, "Data not written: %s\n", FormatUserError(err))
		return
	}
	c.ok.Fprintln(c.out, "Data written")
}

func (c *console) cmdStatus() {
	fmt.Fprintf(c.out, "Advertising: %s\n", c.ctl.State())
	if peer, ok := c.ctl.Peer(); ok {
		fmt.Fprintf(c.out, "Central:     %s\n", peer)
	} else {
		fmt.Fprintln(c.out, "Central:     none")
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `
Commands:
  start          - Open the GATT server and start advertising
  stop           - Stop advertising and close the GATT server
  send <text>    - Store text in the characteristic and notify the central
  status         - Show advertising state and connected central
  help           - Show this help
  quit           - Stop and exit

`)
}

// OnIncomingValue implements peripheral.Presenter.
func (c *console) OnIncomingValue(text string) {
	c.value.Fprintf(c.out, "<- %s\n", text)
}

func (c *console) OnPeerConnected(peer peripheral.Peer) {
	c.ok.Fprintf(c.out, "Central connected: %s\n", peer)
}

func (c *console) OnPeerDisconnected(peer peripheral.Peer) {
	c.warn.Fprintf(c.out, "Central disconnected: %s\n", peer)
}

func (c *console) OnAdvertisingStarted() {
	c.ok.Fprintf(c.out, "Advertising as %q\n", c.name)
}

func (c *console) OnAdvertisingFailed(code peripheral.AdvertiseFailure) {
	c.fail.Fprintf(c.out, "Advertising failed: %s\n", code)
}

var _ peripheral.StatusPresenter = (*console)(nil)
