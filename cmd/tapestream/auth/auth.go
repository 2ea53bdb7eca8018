// Package authcmder provides the auth command for storing upstream API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/tapestream/pkg/cliui"
	"github.com/papercomputeco/tapestream/pkg/credentials"
)

const authLongDesc string = `Store API keys for openai and anthropic upstreams.

Keys are kept in credentials.toml in the .tapestream/ directory. When the
proxy runs with --provider openai or anthropic it sends the stored key
upstream, unless the provider's environment variable is set or the client
request already carries credentials.

Examples:
  tapestream auth anthropic              Prompt for the Anthropic key
  echo $KEY | tapestream auth openai     Read the key from stdin
  tapestream auth --list                 List stored keys
  tapestream auth --remove openai        Remove the stored OpenAI key`

const authShortDesc string = "Store API keys for upstream providers"

type authCommander struct {
	list   bool
	remove string

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			store, err := credentials.NewStore(configDir)
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			switch {
			case cmder.list:
				return cmder.runList(store)
			case cmder.remove != "":
				return cmder.runRemove(store, cmder.remove)
			case len(args) == 0:
				return fmt.Errorf("provider argument required\n\nSupported providers: %s",
					strings.Join(credentials.Supported(), ", "))
			default:
				return cmder.runAuth(store, args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.Supported(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&cmder.list, "list", false, "List stored keys")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove the stored key for a provider")

	return cmd
}

func (c *authCommander) runAuth(store *credentials.Store, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !credentials.IsSupported(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.Supported(), ", "))
	}

	key, err := c.readKey(provider)
	if err != nil {
		return err
	}
	if err := store.SetKey(provider, key); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored %s key %s\n\n",
		cliui.SuccessMark,
		cliui.AgentStyle.Render(provider),
		cliui.DimStyle.Render("(overridden by "+credentials.EnvVar(provider)+")"),
	)
	return nil
}

func (c *authCommander) runList(store *credentials.Store) error {
	providers, err := store.Providers()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored keys.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintln(c.out)
	for _, p := range providers {
		fmt.Fprintf(c.out, "  %s %s %s\n",
			cliui.SuccessMark,
			cliui.AgentStyle.Render(p),
			cliui.DimStyle.Render(credentials.EnvVar(p)),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *authCommander) runRemove(store *credentials.Store, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := store.RemoveKey(provider); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\n  %s Removed %s key.\n\n", cliui.SuccessMark, cliui.AgentStyle.Render(provider))
	return nil
}

// readKey prompts with hidden input on a terminal and otherwise reads the
// first line of input.
func (c *authCommander) readKey(provider string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter API key for %s (%s): ", provider, credentials.EnvVar(provider))
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(key), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
