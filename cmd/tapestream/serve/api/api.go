// Package apicmder provides the API tapestream server cobra command.
package apicmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/api"
	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/config"
)

type apiCommander struct {
	debug   bool
	logFile string
	v       *viper.Viper
}

const apiLongDesc string = `Run the tapestream API server for inspecting persisted conversations,
reading and writing agent-scoped data and running maintenance.

Run standalone, the API owns its own persister: agent data and cleanup work
against the configured datastore, while stream stats only reflect this process.`

const apiShortDesc string = "Run the tapestream API server"

func apiFlags() []string {
	keys := []string{config.FlagAPIListenStandalone, config.FlagPprof}
	return append(keys, stack.RuntimeFlags()...)
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.v, err = stack.Bind(cmd, apiFlags()...)
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

	stack.AddFlags(cmd, apiFlags()...)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *apiCommander) run(cmd *cobra.Command) error {
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

	server, err := api.NewServer(stack.APIConfig(c.v), st.Stores.Driver, st.Persister, logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	return st.Serve(cmd.Context(), stack.Service{Name: "API server", Run: server.Run, Shutdown: server.ShutdownWithContext})
}
