// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/api"
	apicmder "github.com/papercomputeco/tapestream/cmd/tapestream/serve/api"
	proxycmder "github.com/papercomputeco/tapestream/cmd/tapestream/serve/proxy"
	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/proxy"
)

type serveCommander struct {
	debug   bool
	logFile string
	v       *viper.Viper
	logger  *slog.Logger
}

const serveLongDesc string = `Run tapestream services.

Use subcommands to run individual services or all services together:
  tapestream serve          Run the proxy and the API server sharing one persister
  tapestream serve api      Run just the API server
  tapestream serve proxy    Run just the proxy server`

const serveShortDesc string = "Run tapestream services"

func serveFlags() []string {
	keys := []string{config.FlagProxyListen, config.FlagAPIListen, config.FlagPprof}
	keys = append(keys, stack.UpstreamFlags...)
	return append(keys, stack.RuntimeFlags()...)
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.v, err = stack.Bind(cmd, serveFlags()...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd)
		},
	}

	stack.AddFlags(cmd, serveFlags()...)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	var closeLog func() error
	var err error
	c.logger, closeLog, err = stack.NewLogger(c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	settings, err := stack.SettingsFromViper(c.v)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := stack.Open(ctx, settings, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("closing runtime", "error", err)
		}
	}()

	configDir, _ := cmd.Flags().GetString("config-dir")
	proxyConfig, err := stack.ProxyConfig(c.v, configDir)
	if err != nil {
		return err
	}

	p, err := proxy.New(proxyConfig, st.Persister, st.Stores.Driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	apiServer, err := api.NewServer(stack.APIConfig(c.v), st.Stores.Driver, st.Persister, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	return st.Serve(ctx,
		stack.Service{Name: "proxy", Run: p.Run, Shutdown: p.ShutdownWithContext},
		stack.Service{Name: "API server", Run: apiServer.Run, Shutdown: apiServer.ShutdownWithContext},
	)
}
