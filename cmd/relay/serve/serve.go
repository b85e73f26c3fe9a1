// Package servecmder provides the serve command that runs the relay server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zerouihq/relay/pkg/config"
	"github.com/zerouihq/relay/pkg/logger"
	"github.com/zerouihq/relay/relay"
)

type serveCommander struct {
	listen          string
	upstream        string
	defaultModel    string
	upstreamTimeout time.Duration
	debug           bool

	logger *zap.Logger
}

const serveLongDesc string = `Run the relay server.

The relay accepts chat requests from the editor extension, normalizes
user-authored message text, forwards the request to the configured Ollama
server, and streams the response back line by line.

Configuration comes from flags, or from the environment when a flag is not
set (RELAY_LISTEN, RELAY_UPSTREAM / OLLAMA_BASE_URL, RELAY_DEFAULT_MODEL /
DEFAULT_MODEL, RELAY_UPSTREAM_TIMEOUT).`

const serveShortDesc string = "Run the relay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("listen") {
				cmder.listen = cfg.Listen
			}
			if !cmd.Flags().Changed("upstream") {
				cmder.upstream = cfg.Upstream
			}
			if !cmd.Flags().Changed("default-model") {
				cmder.defaultModel = cfg.DefaultModel
			}
			if !cmd.Flags().Changed("upstream-timeout") {
				cmder.upstreamTimeout = cfg.UpstreamTimeout
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.Listen, "Address for the relay to listen on")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", defaults.Upstream, "Ollama server base URL")
	cmd.Flags().StringVarP(&cmder.defaultModel, "default-model", "m", defaults.DefaultModel, "Model used when a request names none")
	cmd.Flags().DurationVar(&cmder.upstreamTimeout, "upstream-timeout", defaults.UpstreamTimeout, "Ceiling on the upstream chat exchange (0 = unbounded)")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.New(c.debug)
	defer func() { _ = c.logger.Sync() }()

	r, err := relay.New(relay.Config{
		ListenAddr:      c.listen,
		UpstreamURL:     c.upstream,
		DefaultModel:    c.defaultModel,
		UpstreamTimeout: c.upstreamTimeout,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	// Channel to capture the server error
	errChan := make(chan error, 1)

	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return r.Shutdown()
	}
}
