package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/pairmesh-go/internal/agent"
	"github.com/yndnr/pairmesh-go/internal/protocol"
)

// Chat commands.
const (
	CmdHelp   = "/help"
	CmdLeave  = "/leave"
	CmdQuit   = "/quit"
	CmdStatus = "/status"
)

// Session is the part of the agent the chat loop drives.
type Session interface {
	Send(body protocol.Body) error
	Leave() error
	Close() error
	Events() <-chan agent.Update
	State() agent.State
	Room() string
	Token() string
}

// REPL is the chat Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	session   Session
	completer *Completer
}

// New creates a chat loop over session.
func New(session Session, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		input:     in,
		output:    out,
		session:   session,
		completer: NewCompleter(CmdHelp, CmdLeave, CmdQuit, CmdStatus),
	}
}

// Run reads lines until /quit, /leave, end of input, ctx ending, or the
// session closing on its own.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r.input)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	events := r.session.Events()
	r.printf("* connecting, type %s for commands\n", CmdHelp)

	for {
		select {
		case <-ctx.Done():
			return r.finish(r.session.Close())

		case u, ok := <-events:
			if !ok {
				return nil
			}
			r.show(u)
			if u.Kind == agent.UpdateClosed {
				return r.finish(nil)
			}

		case err := <-readErr:
			r.finish(r.session.Close())
			return err

		case line := <-lines:
			done, err := r.execute(strings.TrimSpace(line))
			if err != nil {
				r.printf("! %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

// finish drains the remaining updates so nothing the peer sent is lost.
func (r *REPL) finish(err error) error {
	for u := range r.session.Events() {
		r.show(u)
	}
	return err
}

// execute handles one input line and reports whether the loop should
// end.
func (r *REPL) execute(line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.send(line)
	}

	cmd, ok := r.completer.Resolve(strings.Fields(line)[0])
	if !ok {
		return false, fmt.Errorf("unknown command %s, try %s", line, CmdHelp)
	}

	switch cmd {
	case CmdHelp:
		r.printf("%-8s show session state\n", CmdStatus)
		r.printf("%-8s end the session and exit\n", CmdLeave)
		r.printf("%-8s disconnect and exit; the server keeps the session briefly\n", CmdQuit)
		r.printf("%-8s this help\n", CmdHelp)
		return false, nil

	case CmdStatus:
		token := "none"
		if r.session.Token() != "" {
			token = "held"
		}
		room := r.session.Room()
		if room == "" {
			room = "-"
		}
		r.printf("state=%s room=%s token=%s\n", r.session.State(), room, token)
		return false, nil

	case CmdLeave:
		return true, r.finish(r.session.Leave())

	case CmdQuit:
		return true, r.finish(r.session.Close())
	}
	return false, nil
}

func (r *REPL) send(text string) error {
	err := r.session.Send(protocol.TextBody(text))
	switch {
	case errors.Is(err, agent.ErrNotPaired):
		return errors.New("no partner yet, message not sent")
	case errors.Is(err, agent.ErrNotConnected):
		return errors.New("not connected, message not sent")
	}
	return err
}

func (r *REPL) show(u agent.Update) {
	switch u.Kind {
	case agent.UpdateWelcome:
		r.printf("* connected, waiting for a partner\n")
	case agent.UpdatePaired:
		r.printf("* paired (room %s)\n", u.Room)
	case agent.UpdateMessage:
		r.printf("peer: %s\n", bodyText(u.Body))
	case agent.UpdateSignal:
		r.printf("* signal from peer: %s\n", bodyText(u.Body))
	case agent.UpdatePeerLeft:
		r.printf("* partner left, waiting for a new one\n")
	case agent.UpdateLost:
		r.printf("* connection lost, reconnecting\n")
	case agent.UpdateResumed:
		r.printf("* reconnected\n")
	case agent.UpdateReset:
		r.printf("* session expired, starting over\n")
	case agent.UpdateClosed:
		if u.Err != nil {
			r.printf("* disconnected: %v\n", u.Err)
		} else {
			r.printf("* disconnected\n")
		}
	}
}

// bodyText renders a body for display. A JSON string prints bare; other
// values print as JSON.
func bodyText(b protocol.Body) string {
	if b.IsEmpty() {
		return ""
	}
	jb, err := protocol.Transcode(b, protocol.FormatJSON)
	if err != nil {
		return fmt.Sprintf("<%d bytes>", len(b.Raw))
	}
	var s string
	if err := json.Unmarshal(jb.Raw, &s); err == nil {
		return s
	}
	return string(jb.Raw)
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}
