package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tapestream/pkg/cliui"
	"github.com/papercomputeco/tapestream/pkg/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTarget(out, cfger)
			for _, key := range config.ValidConfigKeys() {
				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s\n", cliui.KeyValue(key, value))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
