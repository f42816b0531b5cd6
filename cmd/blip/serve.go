package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/radio/goble"
	"github.com/srg/blip/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the peripheral with an interactive console",
	Long: `Hosts the GATT server and opens an interactive console.

Text written by a central is printed as it arrives. Use "send <text>" to
store a value in the characteristic and notify the connected central.

Examples:
  # Start advertising right away
  blip serve --start

  # Serve stored values instead of the synthetic "test" reply
  blip serve --read-mode stored

  # Use a configuration file and override the advertised name
  blip serve --config blip.yaml --name bench-01`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveName      string
	serveReadMode  string
	serveNoConfirm bool
	serveStart     bool
)

// radioRuntime is a radio adapter that owns platform resources.
type radioRuntime interface {
	peripheral.RadioAdapter
	Close() error
}

// radioFactory creates the platform radio (can be overridden in tests)
var radioFactory = func(cfg goble.Config, logger *logrus.Logger) radioRuntime {
	return goble.NewRadio(cfg, logger)
}

func init() {
	serveCmd.Flags().StringVar(&serveName, "name", "", "Advertised device name (overrides device_name)")
	serveCmd.Flags().StringVar(&serveReadMode, "read-mode", "", "Read mode: synthetic or stored (overrides read.mode)")
	serveCmd.Flags().BoolVar(&serveNoConfirm, "no-confirm", false, "Send plain notifications instead of indications")
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "Start advertising immediately")
}

// serveConfig loads the configuration and applies the serve flags to it.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if serveName != "" {
		cfg.DeviceName = serveName
	}
	if serveReadMode != "" {
		cfg.Read.Mode = serveReadMode
	}
	if serveNoConfirm {
		cfg.Notify.Confirm = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	opts, err := cfg.PeripheralOptions()
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "blip> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Route logs through readline so they do not garble the prompt
	logger.SetOutput(rl.Stderr())

	con := newConsole(nil, rl.Stdout(), cfg.DeviceName, isTerminal(os.Stdout))
	return serve(cmd.Context(), cfg, opts, logger, con, rl, func() { _ = rl.Close() })
}

// serve runs the peripheral session. The radio and server are torn down on
// every exit path. interrupt unblocks the line reader on a signal.
func serve(ctx context.Context, cfg *config.Config, opts peripheral.Options, logger *logrus.Logger, con *console, lines lineReader, interrupt func()) error {
	radio := radioFactory(cfg.RadioConfig(), logger)
	defer func() {
		if err := radio.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release Bluetooth adapter")
		}
	}()

	p := peripheral.New(radio, opts, logger)
	defer p.Close()
	con.ctl = p

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Received interrupt signal, shutting down...")
			cancel()
			if interrupt != nil {
				interrupt()
			}
		case <-ctx.Done():
		}
	}()

	svc := p.Service()
	logger.WithFields(logrus.Fields{
		"name":            opts.DeviceName,
		"service":         svc.ID.String(),
		"characteristics": len(svc.Characteristics),
		"char_uuid":       opts.CharacteristicID.String(),
		"read_mode":       cfg.Read.Mode,
		"confirm":         opts.ConfirmNotifications,
	}).Info("Peripheral ready")

	if serveStart {
		con.execute("start")
	}
	return con.run(ctx, lines, p.Present)
}
