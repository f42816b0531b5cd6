package main

import (
	"bytes"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/radio/goble"
	"github.com/srg/blip/internal/testutils"
)

var testPeer = peripheral.Peer{Address: "00:00:00:00:00:01"}

// CommandTestSuite extends MockRadioSuite with command testing utilities.
// All cmd/blip test suites should embed this instead of MockRadioSuite.
type CommandTestSuite struct {
	testutils.MockRadioSuite

	Output *testutils.SafeBuffer

	originalRadioFactory func(goble.Config, *logrus.Logger) radioRuntime
	radioClosed          int
}

// mockRuntime gives the mocked adapter the Close the platform radio has.
type mockRuntime struct {
	peripheral.RadioAdapter
	close func() error
}

func (r *mockRuntime) Close() error { return r.close() }

func (s *CommandTestSuite) SetupTest() {
	s.Output = &testutils.SafeBuffer{}
	s.radioClosed = 0

	s.originalRadioFactory = radioFactory
	radioFactory = func(goble.Config, *logrus.Logger) radioRuntime {
		return &mockRuntime{RadioAdapter: s.Radio, close: func() error {
			s.radioClosed++
			return nil
		}}
	}

	// Call parent SetupTest last
	s.MockRadioSuite.SetupTest()
}

func (s *CommandTestSuite) TearDownTest() {
	radioFactory = s.originalRadioFactory
}

// NewConsole creates an uncoloured console on p writing into Output.
func (s *CommandTestSuite) NewConsole(p *peripheral.Peripheral) *console {
	return newConsole(p, s.Output, p.Options().DeviceName, false)
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// scriptedLines replays lines and then reports err, io.EOF by default.
type scriptedLines struct {
	lines []string
	err   error
}

func (l *scriptedLines) Readline() (string, error) {
	if len(l.lines) == 0 {
		if l.err != nil {
			return "", l.err
		}
		return "", io.EOF
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line, nil
}
