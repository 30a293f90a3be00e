package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/xiaot623/helia/internal/adapter/ollama"
	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/service"
	"github.com/xiaot623/helia/internal/session"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a one-off question and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			generator := ollama.NewGenerator(a.cfg, a.logger)
			return ask(cmd.Context(), generator, a.cfg.Model, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

// replyPrinter writes the part of each notification not yet printed.
type replyPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

func (p *replyPrinter) Notify(n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.HasPrefix(n.Text, p.printed) {
		fmt.Fprint(p.w, n.Text[len(p.printed):])
	} else {
		// A failure message replaces the partial reply.
		fmt.Fprint(p.w, "\n"+n.Text)
	}
	p.printed = n.Text
	if !n.Streaming {
		fmt.Fprintln(p.w)
		p.printed = ""
	}
}

// ask runs a single turn in a throwaway session. Nothing is persisted.
func ask(ctx context.Context, generator ollama.Generator, model, question string, w io.Writer) error {
	svc := service.New(session.NewStore(), generator, nil, &replyPrinter{w: w}, model, nil)
	defer svc.Close()

	if err := svc.Load(ctx); err != nil {
		return err
	}
	return svc.Submit(ctx, question)
}
