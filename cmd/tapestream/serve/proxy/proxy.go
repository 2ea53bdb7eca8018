// Package proxycmder provides the proxy server command.
package proxycmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/proxy"
)

type proxyCommander struct {
	debug   bool
	logFile string
	v       *viper.Viper
}

const proxyLongDesc string = `Run the proxy server.

The proxy accepts chat turns on POST /v1/chat, forwards them to the
configured upstream and streams the answer back as conversationId, chunk and
end events while persisting agent events in the background.

Supported providers: agent, openai, anthropic`

const proxyShortDesc string = "Run the tapestream proxy server"

func proxyFlags() []string {
	keys := []string{config.FlagProxyListenStandalone}
	keys = append(keys, stack.UpstreamFlags...)
	return append(keys, stack.RuntimeFlags()...)
}

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.v, err = stack.Bind(cmd, proxyFlags()...)
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

	stack.AddFlags(cmd, proxyFlags()...)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *proxyCommander) run(cmd *cobra.Command) error {
	logger, closeLog, err := stack.NewLogger(c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	settings, err := stack.SettingsFromViper(c.v)
	if err != nil {
		return err
	}

	st, err := stack.Open(cmd.Context(), settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing runtime", "error", err)
		}
	}()

	configDir, _ := cmd.Flags().GetString("config-dir")
	proxyConfig, err := stack.ProxyConfig(c.v, configDir)
	if err != nil {
		return err
	}

	p, err := proxy.New(proxyConfig, st.Persister, st.Stores.Driver, logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	return st.Serve(cmd.Context(), stack.Service{Name: "proxy", Run: p.Run, Shutdown: p.ShutdownWithContext})
}
