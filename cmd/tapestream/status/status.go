// Package statuscmder provides the status command, which shows the saved
// chat session and the recent history of its conversation.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tapestream/api"
	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/cliui"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/pkg/dotdir"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/pkg/utils"
)

const statusLongDesc string = `Show the saved chat session.

Prints the conversation "tapestream chat --resume" would continue. With
--history, the conversation's most recent messages are fetched from the API
server at --api-target.

Examples:
  tapestream status
  tapestream status --history 10
  tapestream status --clear`

const statusShortDesc string = "Show the saved chat session"

type statusCommander struct {
	apiTarget string
	configDir string
	history   int
	clear     bool

	out        io.Writer
	httpClient *http.Client
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := stack.Bind(cmd, config.FlagAPITarget)
			if err != nil {
				return err
			}
			cmder.apiTarget = strings.TrimRight(v.GetString("client.api_target"), "/")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	stack.AddFlags(cmd, config.FlagAPITarget)
	cmd.Flags().IntVar(&cmder.history, "history", 0, "Show this many of the conversation's latest messages")
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Forget the saved session")

	return cmd
}

func (c *statusCommander) run(ctx context.Context) error {
	sessions := dotdir.NewManager()

	if c.clear {
		if err := sessions.ClearSession(c.configDir); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %s Session cleared. Next chat will start a new conversation.\n", cliui.SuccessMark)
		return nil
	}

	state, err := sessions.LoadSession(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		fmt.Fprintf(c.out, "  %s No saved session. Next chat will start a new conversation.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n", cliui.KeyValue("conversation", state.ConversationID))
	fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("agent", state.Agent))
	if !state.UpdatedAt.IsZero() {
		fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("updated", state.UpdatedAt.Local().Format(time.DateTime)))
	}
	fmt.Fprintln(c.out)

	if c.history <= 0 {
		return nil
	}

	msgs, err := c.fetchMessages(ctx, state.ConversationID)
	if err != nil {
		return err
	}
	if len(msgs) > c.history {
		msgs = msgs[len(msgs)-c.history:]
	}

	for i, m := range msgs {
		role := m.Role
		if m.ToolName != "" {
			role += ":" + m.ToolName
		}
		fmt.Fprintf(c.out, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.AgentStyle.Render("["+role+"]"),
			cliui.ValueStyle.Render(utils.Truncate(strings.ReplaceAll(m.Content, "\n", " "), 72)),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *statusCommander) fetchMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	endpoint := c.apiTarget + "/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history from %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("API server returned status %d: %s", resp.StatusCode, e.Error)
	}

	var body api.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return body.Messages, nil
}
