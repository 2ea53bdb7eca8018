// Package replaycmder provides the replay command, which feeds a captured
// upstream stream through the relay and records it as if it had been
// proxied.
package replaycmder

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tapestream/cmd/tapestream/stack"
	"github.com/papercomputeco/tapestream/pkg/cliui"
	"github.com/papercomputeco/tapestream/pkg/config"
	"github.com/papercomputeco/tapestream/pkg/stream"
)

//go:embed demo.sse
var demoCapture []byte

const replayLongDesc string = `Replay a captured upstream stream.

The capture is the raw SSE body of an upstream response, in the dialect
given by --provider. It is translated, relayed and persisted exactly as the
proxy would, so the conversation shows up in the configured datastore.
Without a file argument a built-in agent demo capture is replayed; "-"
reads the capture from stdin.

Examples:
  tapestream replay --sqlite ./tapestream.db
  tapestream replay capture.sse --provider anthropic --print
  curl -sN http://localhost:9000/v1/agent/stream -d @req.json | tapestream replay -`

const replayShortDesc string = "Replay a captured upstream stream into the datastore"

func replayFlags() []string {
	keys := []string{config.FlagProvider, config.FlagAgent}
	return append(keys, stack.RuntimeFlags()...)
}

type replayCommander struct {
	conversationID string
	print          bool
	debug          bool

	v   *viper.Viper
	in  io.Reader
	out io.Writer
}

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay [capture]",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.v, err = stack.Bind(cmd, replayFlags()...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			capture, err := cmder.readCapture(args)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), capture)
		},
	}

	stack.AddFlags(cmd, replayFlags()...)
	cmd.Flags().StringVar(&cmder.conversationID, "conversation", "", "Conversation ID to record under (default: a new ID)")
	cmd.Flags().BoolVar(&cmder.print, "print", false, "Print the relayed wire frames")

	return cmd
}

func (c *replayCommander) readCapture(args []string) ([]byte, error) {
	switch {
	case len(args) == 0:
		return demoCapture, nil
	case args[0] == "-":
		data, err := io.ReadAll(c.in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading capture: %w", err)
		}
		return data, nil
	}
}

func (c *replayCommander) run(ctx context.Context, capture []byte) error {
	logger, closeLog, err := stack.NewLogger(c.debug, "")
	if err != nil {
		return err
	}
	defer closeLog()

	tr, err := stream.NewTranslator(c.v.GetString("proxy.provider"))
	if err != nil {
		return err
	}

	settings, err := stack.SettingsFromViper(c.v)
	if err != nil {
		return err
	}
	st, err := stack.Open(ctx, settings, logger)
	if err != nil {
		return err
	}

	convID := c.conversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	agentID := c.v.GetString("proxy.agent")

	var frames bytes.Buffer
	var summary *stream.Summary
	relayErr := cliui.Step(c.out, "Replaying capture", func() error {
		st.Persister.OpenStream(convID)
		var err error
		summary, err = stream.NewRelay(tr, st.Persister, logger).Run(ctx,
			bytes.NewReader(capture),
			stream.NewEncoder(&frames, logger),
			stream.StreamMeta{ConversationID: convID, AgentID: agentID, AgentName: agentID},
		)
		return err
	})

	// closing the stack flushes buffered content before the summary is shown
	if err := st.Close(); err != nil && relayErr == nil {
		relayErr = fmt.Errorf("closing runtime: %w", err)
	}
	if relayErr != nil {
		return relayErr
	}

	if c.print {
		fmt.Fprintf(c.out, "\n%s", frames.String())
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("conversation", convID))
	fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("agent", summary.AgentID))
	fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("chunks", strconv.Itoa(summary.Chunks)))
	fmt.Fprintf(c.out, "  %s\n", cliui.KeyValue("dropped", strconv.Itoa(summary.Dropped)))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.KeyValue("terminal", strconv.FormatBool(summary.TerminalObserved)))
	return nil
}
