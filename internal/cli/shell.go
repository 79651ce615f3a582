package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/engine"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
	"github.com/roach88/flame/internal/view"
)

// ShellPrompt is printed before each input line.
const ShellPrompt = "flame> "

const shellHelp = `Enter an op name and an optional JSON payload, e.g.

  GET_SPECIES {"formula": "H2O", "partial": true}
  LOGIN_USER {"email": "ada@example.com", "password": "secret"}
  SET_REACTION_MODE {"enabled": true}

Every state change is rendered as it lands. Other commands:

  ops            list every op
  state [slice]  render one slice, or all of them
  help           show this text
  quit           leave the shell
`

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Dispatch intents interactively",
		Long: `Start an interactive session. Unlike the other commands, the shell
keeps one session for its whole lifetime, so a login persists until quit.

` + shellHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				return runShell(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func runShell(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	unbind := view.Bind(s.state, func(changed state.Slice, snap state.Snapshot) {
		if changed == "" {
			return
		}
		fmt.Fprint(out, s.text.Slice(changed, snap))
	})
	defer unbind()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, ShellPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, rest, _ := strings.Cut(line, " ")
		switch strings.ToLower(word) {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(out, shellHelp)
		case "ops":
			for _, op := range ir.Ops() {
				fmt.Fprintln(out, op)
			}
		case "state":
			if err := shellState(s, out, strings.TrimSpace(rest)); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			if err := shellDispatch(ctx, s, out, word, rest); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func shellState(s *session, out io.Writer, name string) error {
	snap := s.state.Snapshot()
	if name == "" {
		for _, sl := range state.AllSlices() {
			fmt.Fprint(out, s.text.Slice(sl, snap))
		}
		return nil
	}
	sl, err := state.ParseSlice(name)
	if err != nil {
		return err
	}
	fmt.Fprint(out, s.text.Slice(sl, snap))
	return nil
}

func shellDispatch(ctx context.Context, s *session, out io.Writer, op, rest string) error {
	payload, err := parseShellPayload(rest)
	if err != nil {
		return err
	}
	in, err := ir.Encode(strings.ToUpper(op), payload)
	if err != nil {
		return err
	}

	before := s.alertCount()
	if err := s.run(ctx, in); err != nil {
		return err
	}
	if s.alertCount() > before {
		fmt.Fprintln(out, engine.AuthRequiredMessage)
	}
	return nil
}

// parseShellPayload decodes an optional JSON object, keeping numbers as
// json.Number so IDs survive intact.
func parseShellPayload(src string) (map[string]any, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(src)))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected input after payload")
	}
	return payload, nil
}

func (s *session) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}
