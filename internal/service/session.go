package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/domain"
)

// Load seeds the session store from the persister. It is called once at
// startup; a missing snapshot leaves one default session.
func (s *Service) Load(ctx context.Context) error {
	var snap domain.Snapshot
	if s.persister != nil {
		loaded, err := s.persister.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}
		if loaded != nil {
			snap = *loaded
		}
	}
	s.sessions.Restore(snap)
	s.logger.Info("sessions loaded",
		zap.Int("count", s.sessions.Len()),
		zap.String("active_id", s.sessions.ActiveID()))
	s.save(ctx)
	return nil
}

// NewSession creates a session and makes it active.
func (s *Service) NewSession(ctx context.Context) domain.Session {
	sess := s.sessions.Create()
	s.logger.Info("session created", zap.String("session_id", sess.ID), zap.String("name", sess.Name))
	s.save(ctx)
	return sess
}

// SelectSession makes id the active session.
func (s *Service) SelectSession(ctx context.Context, id string) error {
	if err := s.sessions.SetActive(id); err != nil {
		return err
	}
	s.save(ctx)
	return nil
}

// DeleteActive removes the active session and cancels its in-flight requests.
// No replacement session is created; call NewSession for that.
func (s *Service) DeleteActive(ctx context.Context) (string, error) {
	id, err := s.sessions.DeleteActive()
	if err != nil {
		return "", err
	}
	cancelled := s.cancelSession(id)
	s.logger.Info("session deleted",
		zap.String("session_id", id),
		zap.Int("cancelled_requests", cancelled),
		zap.String("active_id", s.sessions.ActiveID()))
	s.save(ctx)
	return id, nil
}

// Sessions returns every session in creation order.
func (s *Service) Sessions() []domain.Session {
	return s.sessions.List()
}

// ActiveID returns the active session id.
func (s *Service) ActiveID() string {
	return s.sessions.ActiveID()
}

// Messages returns the history of session id.
func (s *Service) Messages(id string) ([]domain.Message, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// save hands the current snapshot to the persister. Failures are logged, not
// returned: the in-memory state stays authoritative.
func (s *Service) save(ctx context.Context) {
	if s.persister == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.persister.Save(context.WithoutCancel(ctx), s.sessions.Snapshot()); err != nil {
		s.logger.Error("failed to save sessions", zap.Error(err))
	}
}
