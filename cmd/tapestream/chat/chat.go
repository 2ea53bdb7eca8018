// Package chatcmder provides the chat command for interactive chat with an
// agent through the tapestream proxy.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/cliui"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/pkg/dotdir"
	"github.com/papercomputeco/tapestream/pkg/stream/client"
	"github.com/papercomputeco/tapestream/proxy/header"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	proxyTarget string
	agent       string
	configDir   string
	resume      bool
	render      bool
	stream      bool
	debug       bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	conversationID string
	logger         *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session through the tapestream proxy.

Every message is sent to the proxy's chat endpoint, which forwards it to the
configured upstream and records the conversation. Replies are streamed as
they arrive unless --stream=false is given or --render is set, in which case
the full reply is printed once it is complete.

The conversation ID is saved to .tapestream/session.json after every turn.
Use --resume to continue that conversation. Inside the session:
  /new    start a new conversation
  /exit   quit (Ctrl+D works too)

Examples:
  tapestream chat
  tapestream chat --agent researcher --render
  tapestream chat --resume --proxy-target http://localhost:8080`

const chatShortDesc string = "Interactive chat through the tapestream proxy"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := stack.Bind(cmd, config.FlagProxyTarget)
			if err != nil {
				return err
			}
			cmder.proxyTarget = v.GetString("client.proxy_target")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	stack.AddFlags(cmd, config.FlagProxyTarget)
	cmd.Flags().StringVar(&cmder.agent, "agent", "", "Agent name sent with every message")
	cmd.Flags().BoolVarP(&cmder.resume, "resume", "r", false, "Continue the conversation saved in the session file")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render replies as markdown once complete")
	cmd.Flags().BoolVar(&cmder.stream, "stream", true, "Request a streamed reply")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var closeLog func() error
	var err error
	c.logger, closeLog, err = stack.NewLogger(c.debug, "")
	if err != nil {
		return err
	}
	defer closeLog()

	// the resumed session may supply the agent the consumer's header carries
	sessions := dotdir.NewManager()
	if err := c.loadSession(sessions); err != nil {
		return err
	}

	consumer, err := c.newConsumer()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Proxy:"), cliui.ValueStyle.Render(c.proxyTarget))
	if c.agent != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Agent:"), cliui.AgentStyle.Render(c.agent))
	}
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/new":
			c.conversationID = ""
			if err := sessions.ClearSession(c.configDir); err != nil {
				c.logger.Warn("clearing session", "error", err)
			}
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		if err := c.turn(ctx, consumer, input); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(c.errOut, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}

		if c.conversationID != "" {
			state := &dotdir.SessionState{
				ConversationID: c.conversationID,
				Agent:          c.agent,
				UpdatedAt:      time.Now().UTC(),
			}
			if err := sessions.SaveSession(state, c.configDir); err != nil {
				c.logger.Warn("saving session", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) newConsumer() (*client.Consumer, error) {
	h := http.Header{}
	if c.agent != "" {
		h.Set(header.AgentNameHeader, c.agent)
	}

	consumer, err := client.New(client.Config{
		BaseURL: c.proxyTarget,
		Logger:  c.logger,
		Header:  h,
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return consumer, nil
}

func (c *chatCommander) loadSession(sessions *dotdir.Manager) error {
	if !c.resume {
		fmt.Fprintf(c.out, "\n  %s New conversation\n", cliui.DimStyle.Render("●"))
		return nil
	}

	state, err := sessions.LoadSession(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		fmt.Fprintf(c.out, "\n  %s No saved session, starting a new conversation\n", cliui.DimStyle.Render("●"))
		return nil
	}

	c.conversationID = state.ConversationID
	if c.agent == "" {
		c.agent = state.Agent
	}
	fmt.Fprintf(c.out, "\n  %s Resuming %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(state.ConversationID))
	return nil
}

// turn sends one message and prints the reply.
func (c *chatCommander) turn(ctx context.Context, consumer *client.Consumer, message string) error {
	live := c.stream && !c.render

	fmt.Fprint(c.out, assistantPrompt)
	if !live {
		fmt.Fprintln(c.out)
	}

	result, err := consumer.Send(ctx, client.Request{
		Message:        message,
		ConversationID: c.conversationID,
		Stream:         c.stream,
	}, client.Callbacks{
		OnConversationID: func(id string) {
			c.logger.Debug("conversation assigned", "conversation_id", id)
		},
		OnChunk: func(increment string) {
			if live {
				fmt.Fprint(c.out, increment)
			}
		},
	})
	if err != nil {
		fmt.Fprintln(c.out)
		return err
	}

	if result.ConversationID != "" {
		c.conversationID = result.ConversationID
	}

	if !live {
		c.printReply(result.Content)
	}
	fmt.Fprint(c.out, "\n\n")
	return nil
}

func (c *chatCommander) printReply(content string) {
	if !c.render {
		fmt.Fprint(c.out, content)
		return
	}

	rendered, err := cliui.RenderMarkdown(content, c.width())
	if err != nil {
		c.logger.Debug("rendering markdown", "error", err)
	}
	fmt.Fprint(c.out, strings.TrimRight(rendered, "\n"))
}

// width is the terminal width when stdout is a terminal, zero otherwise.
func (c *chatCommander) width() int {
	f, ok := c.out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}
