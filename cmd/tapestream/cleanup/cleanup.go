// Package cleanupcmder provides the cleanup command, a one-shot sweep of
// expired agent data.
package cleanupcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/cmd/tapestream/sqlitepath"
	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/cliui"
)

type cleanupCommander struct {
	debug bool
	v     *viper.Viper
	out   io.Writer
}

const cleanupLongDesc string = `Remove expired agent data.

Runs the same sweep the servers run every --cleanup-interval, once, against
the configured datastores. With no --postgres and no --sqlite the database
is looked up in ./tapestream.db, ./.tapestream/ and ~/.tapestream/.`

const cleanupShortDesc string = "Remove expired agent data"

func NewCleanupCmd() *cobra.Command {
	cmder := &cleanupCommander{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: cleanupShortDesc,
		Long:  cleanupLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.v, err = stack.Bind(cmd, stack.StorageFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	stack.AddFlags(cmd, stack.StorageFlags...)

	return cmd
}

func (c *cleanupCommander) run(ctx context.Context) error {
	logger, closeLog, err := stack.NewLogger(c.debug, "")
	if err != nil {
		return err
	}
	defer closeLog()

	settings, err := stack.SettingsFromViper(c.v)
	if err != nil {
		return err
	}

	if settings.Storage.PostgresDSN == "" {
		path, err := sqlitepath.ResolveSQLitePath(settings.Storage.SQLitePath)
		if err != nil {
			return err
		}
		settings.Storage.SQLitePath = path
	}

	st, err := stack.Open(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing runtime", "error", err)
		}
	}()

	var deleted int64
	err = cliui.Step(c.out, "Removing expired agent data", func() error {
		var err error
		deleted, err = st.Persister.CleanupExpiredData(ctx)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("deleted", fmt.Sprintf("%d", deleted)))
	return nil
}
