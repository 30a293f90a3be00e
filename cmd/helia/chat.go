package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/hub"
	"github.com/xiaot623/helia/internal/transport/ws"
)

const chatHelp = `Type a message and press Enter to send.
Commands: /new, /delete, /list, /select <n>, /quit`

func newChatCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running helia server over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = fmt.Sprintf("ws://localhost:%d/ws", a.cfg.HTTPPort)
			}
			client, err := ws.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			fmt.Fprintln(cmd.OutOrStdout(), chatHelp)
			return chat(client, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "websocket address (default ws://localhost:<http_port>/ws)")
	return cmd
}

// chatView renders server frames and remembers the last session list.
type chatView struct {
	mu       sync.Mutex
	out      io.Writer
	printer  *replyPrinter
	activeID string
	sessions []domain.SessionSummary

	// signals carries the type of every rendered frame to the input loop.
	signals chan string
}

func newChatView(out io.Writer) *chatView {
	return &chatView{
		out:     out,
		printer: &replyPrinter{w: out},
		signals: make(chan string, 64),
	}
}

func (v *chatView) render(f ws.Frame) {
	v.mu.Lock()
	switch f.Type {
	case hub.TypeSessions:
		v.activeID = f.ActiveID
		v.sessions = f.Sessions
	case hub.TypeDelta, hub.TypeDone:
		if f.SessionID == v.activeID {
			v.printer.Notify(domain.Notification{
				SessionID: f.SessionID,
				Text:      f.Text,
				Streaming: f.Type == hub.TypeDelta,
			})
		}
	case hub.TypeError:
		fmt.Fprintf(v.out, "error: %s\n", f.Message)
	}
	v.mu.Unlock()

	select {
	case v.signals <- f.Type:
	default:
	}
}

func (v *chatView) drain() {
	for {
		select {
		case <-v.signals:
		default:
			return
		}
	}
}

// wait blocks until a frame of one of the given types is rendered. It
// reports false once the connection is gone.
func (v *chatView) wait(closed <-chan struct{}, types ...string) bool {
	for {
		select {
		case t := <-v.signals:
			for _, want := range types {
				if t == want {
					return true
				}
			}
		case <-closed:
			return false
		}
	}
}

func (v *chatView) printSessions() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.sessions) == 0 {
		fmt.Fprintln(v.out, "no sessions, /new creates one")
		return
	}
	for i, s := range v.sessions {
		marker := " "
		if s.SessionID == v.activeID {
			marker = "*"
		}
		fmt.Fprintf(v.out, "%s %d. %s (%d messages)\n", marker, i+1, s.Name, s.MessageCount)
	}
}

func (v *chatView) sessionAt(n int) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n < 1 || n > len(v.sessions) {
		return "", false
	}
	return v.sessions[n-1].SessionID, true
}

// chat runs the input loop until /quit or end of input. Each command waits
// for the server's answer before the next line is read.
func chat(client *ws.Client, in io.Reader, out io.Writer) error {
	view := newChatView(out)
	closed := make(chan struct{})

	go func() {
		defer close(closed)
		for {
			f, err := client.Read()
			if err != nil {
				return
			}
			view.render(f)
		}
	}()

	// The server greets every connection with the session list.
	if !view.wait(closed, hub.TypeSessions) {
		return fmt.Errorf("connection closed before the session list arrived")
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		view.drain()
		var (
			cmd  ws.Command
			want = []string{hub.TypeSessions, hub.TypeError}
		)
		switch {
		case input == "/quit":
			return nil
		case input == "/new":
			cmd = ws.Command{Type: ws.TypeNewSession}
		case input == "/delete":
			cmd = ws.Command{Type: ws.TypeDeleteSession}
		case input == "/list":
			cmd = ws.Command{Type: ws.TypeListSessions}
		case strings.HasPrefix(input, "/select"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(input, "/select")))
			id, ok := view.sessionAt(n)
			if err != nil || !ok {
				fmt.Fprintln(out, "usage: /select <n>, see /list")
				continue
			}
			cmd = ws.Command{Type: ws.TypeSelectSession, SessionID: id}
		case strings.HasPrefix(input, "/"):
			fmt.Fprintln(out, chatHelp)
			continue
		default:
			cmd = ws.Command{Type: ws.TypeAsk, Text: input}
			want = []string{hub.TypeDone, hub.TypeError}
		}

		if err := client.Send(cmd); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if !view.wait(closed, want...) {
			return fmt.Errorf("connection closed")
		}
		if cmd.Type != ws.TypeAsk {
			view.printSessions()
		}
	}
	return scanner.Err()
}
