// Package tapestreamcmder is the tapestream root command.
package tapestreamcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/tapestream/cmd/tapestream/auth"
	chatcmder "github.com/papercomputeco/tapestream/cmd/tapestream/chat"
	cleanupcmder "github.com/papercomputeco/tapestream/cmd/tapestream/cleanup"
	configcmder "github.com/papercomputeco/tapestream/cmd/tapestream/config"
	initcmder "github.com/papercomputeco/tapestream/cmd/tapestream/init"
	replaycmder "github.com/papercomputeco/tapestream/cmd/tapestream/replay"
	servecmder "github.com/papercomputeco/tapestream/cmd/tapestream/serve"
	statuscmder "github.com/papercomputeco/tapestream/cmd/tapestream/status"
	versioncmder "github.com/papercomputeco/tapestream/cmd/version"
)

const tapestreamLongDesc string = `Tapestream relays agent and LLM streams to thin clients and records every
conversation along the way.

Run services using:
  tapestream serve          Run the proxy and the API server together
  tapestream serve proxy    Run the streaming proxy
  tapestream serve api      Run the records API server

Talk to a running proxy using:
  tapestream chat`

const tapestreamShortDesc string = "Tapestream - agent stream relay and recorder"

func NewTapestreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tapestream",
		Short:        tapestreamShortDesc,
		Long:         tapestreamLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .tapestream/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(cleanupcmder.NewCleanupCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
