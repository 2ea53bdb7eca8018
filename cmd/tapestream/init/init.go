// Package initcmder provides the init command for creating a project-local
// .tapestream/ directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tapestream/cmd/tapestream/sqlitepath"
	"github.com/papercomputeco/tapestream/pkg/cliui"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/pkg/dotdir"
)

const initLongDesc string = `Initialize a .tapestream/ directory in the current working directory.

A local .tapestream/ directory takes precedence over ~/.tapestream/ for the
config file, the chat session and the default SQLite database.

With --preset, a config.toml is written for the named upstream (agent, openai
or anthropic) with records stored in .tapestream/tapestream.db. An existing
config.toml is left alone unless --force is given.

Examples:
  tapestream init
  tapestream init --preset anthropic`

const initShortDesc string = "Initialize a local .tapestream/ directory"

type initCommander struct {
	preset string
	force  bool
	out    io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Write a config.toml for an upstream preset: agent, openai or anthropic")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	_ = cmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *initCommander) run() error {
	var cfg *config.Config
	if c.preset != "" {
		var err error
		if cfg, err = config.PresetConfig(c.preset); err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dotdir.DirName)

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		fmt.Fprintf(c.out, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", dotdir.DirName, err)
		}
		fmt.Fprintf(c.out, "  %s Initialized %s\n", cliui.SuccessMark, dir)
	}

	if cfg == nil {
		return nil
	}
	return c.writeConfig(dir, cfg)
}

func (c *initCommander) writeConfig(dir string, cfg *config.Config) error {
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !c.force {
		fmt.Fprintf(c.out, "  %s Keeping existing %s (use --force to replace it)\n", cliui.DimStyle.Render("●"), target)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	dbPath, err := sqlitepath.DefaultPath(dir)
	if err != nil {
		return err
	}
	cfg.Storage.SQLitePath = dbPath

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Wrote %s preset to %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(c.preset), target)
	return nil
}
