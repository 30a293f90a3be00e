package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/prompt"
)

// turn is the state of one submitted user message.
type turn struct {
	sessionID string
	prompt    string
	state     domain.RequestState
	reply     strings.Builder

	// reqCtx is the tracked request context, set once streaming starts.
	reqCtx context.Context
}

func (t *turn) transition(logger *zap.Logger, next domain.RequestState) {
	if t.state == next {
		return
	}
	logger.Debug("request state",
		zap.String("session_id", t.sessionID),
		zap.String("from", string(t.state)),
		zap.String("to", string(next)))
	t.state = next
}

// Submit sends text to the active session and blocks until the reply has
// been finalized.
func (s *Service) Submit(ctx context.Context, text string) error {
	id := s.sessions.ActiveID()
	if id == "" {
		return domain.ErrNoActiveSession
	}
	return s.SubmitTo(ctx, id, text)
}

// SubmitTo sends text to session id and blocks until the reply has been
// finalized. Backend failures are reported to the observer, not returned.
func (s *Service) SubmitTo(ctx context.Context, id, text string) error {
	t, err := s.begin(ctx, id, text)
	if err != nil {
		return err
	}
	s.run(ctx, t)
	return nil
}

// SubmitAsync appends text to the active session and streams the reply on a
// separate goroutine. Validation errors are returned immediately.
func (s *Service) SubmitAsync(text string) (string, error) {
	id := s.sessions.ActiveID()
	if id == "" {
		return "", domain.ErrNoActiveSession
	}

	// wg.Add happens under mu so it never races Close's Wait.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", domain.ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	t, err := s.begin(s.baseCtx, id, text)
	if err != nil {
		s.wg.Done()
		return "", err
	}

	go func() {
		defer s.wg.Done()
		s.run(s.baseCtx, t)
	}()
	return id, nil
}

// begin appends the user message and builds the prompt from the resulting
// history.
func (s *Service) begin(ctx context.Context, id, text string) (*turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}

	t := &turn{sessionID: id, state: domain.RequestStateIdle}
	history, err := s.sessions.Append(id, domain.UserMessage(text))
	if err != nil {
		return nil, err
	}
	t.prompt = prompt.Build(history)
	t.transition(s.logger, domain.RequestStateAwaitingFirstToken)
	s.save(ctx)
	return t, nil
}

// run drives the generator for t and handles its events in order.
func (s *Service) run(ctx context.Context, t *turn) {
	reqCtx, done := s.track(ctx, t.sessionID)
	defer done()
	t.reqCtx = reqCtx

	s.logger.Debug("streaming request",
		zap.String("session_id", t.sessionID),
		zap.String("model", s.model),
		zap.Int("prompt_bytes", len(t.prompt)))

	s.generator.Generate(reqCtx, s.model, t.prompt, func(ev domain.StreamEvent) {
		s.handleEvent(ctx, t, ev)
	})
}

func (s *Service) handleEvent(ctx context.Context, t *turn, ev domain.StreamEvent) {
	if t.state == domain.RequestStateFinalized {
		s.logger.Warn("event after terminal event dropped",
			zap.String("session_id", t.sessionID),
			zap.String("kind", string(ev.Kind)))
		return
	}

	switch ev.Kind {
	case domain.EventToken:
		t.transition(s.logger, domain.RequestStateStreaming)
		t.reply.WriteString(ev.Text)
		if s.sessions.IsActive(t.sessionID) {
			s.observer.Notify(domain.Notification{
				SessionID: t.sessionID,
				Text:      t.reply.String(),
				Streaming: true,
			})
		}

	case domain.EventComplete:
		t.transition(s.logger, domain.RequestStateFinalized)
		final := t.reply.String()
		s.commit(ctx, t.sessionID, final)
		s.observer.Notify(domain.Notification{
			SessionID: t.sessionID,
			Text:      final,
			Streaming: false,
		})

	case domain.EventFailed:
		t.transition(s.logger, domain.RequestStateFinalized)
		if _, err := s.sessions.Get(t.sessionID); err != nil && t.cancelled() {
			s.logger.Debug("cancelled request for deleted session not reported",
				zap.String("session_id", t.sessionID),
				zap.String("reason", ev.Text))
			return
		}
		s.logger.Warn("request failed",
			zap.String("session_id", t.sessionID),
			zap.String("reason", ev.Text))
		s.observer.Notify(domain.Notification{
			SessionID: t.sessionID,
			Text:      ev.Text,
			Streaming: false,
		})
	}
}

func (t *turn) cancelled() bool {
	return t.reqCtx != nil && t.reqCtx.Err() != nil
}

// commit appends a non-blank reply to the session history and saves.
func (s *Service) commit(ctx context.Context, id, reply string) {
	if strings.TrimSpace(reply) == "" {
		s.logger.Debug("empty reply not committed", zap.String("session_id", id))
		return
	}
	if _, err := s.sessions.Append(id, domain.AssistantMessage(reply)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("reply dropped, session no longer exists", zap.String("session_id", id))
			return
		}
		s.logger.Error("failed to commit reply", zap.String("session_id", id), zap.Error(err))
		return
	}
	s.save(ctx)
}
