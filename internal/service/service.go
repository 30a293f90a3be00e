// Package service coordinates sessions, prompt building and streaming.
package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/adapter/ollama"
	"github.com/xiaot623/helia/internal/domain"
	store "github.com/xiaot623/helia/internal/repository"
	"github.com/xiaot623/helia/internal/session"
)

// Observer receives reply progress. Implementations must be safe for
// concurrent use; requests for different sessions notify in parallel.
type Observer interface {
	Notify(n domain.Notification)
}

type nopObserver struct{}

func (nopObserver) Notify(domain.Notification) {}

// Service is the session orchestrator. Construct one per process and pass it
// to whatever command layer needs it.
type Service struct {
	sessions  *session.Store
	generator ollama.Generator
	persister store.Persister
	observer  Observer
	model     string
	logger    *zap.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	// saveMu orders snapshot+save pairs so an older snapshot never lands last.
	saveMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	nextReq  uint64
	inflight map[string]map[uint64]context.CancelFunc
}

// New creates a Service. A nil persister disables saving; a nil observer
// drops notifications.
func New(sessions *session.Store, generator ollama.Generator, persister store.Persister, observer Observer, model string, logger *zap.Logger) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sessions:   sessions,
		generator:  generator,
		persister:  persister,
		observer:   observer,
		model:      model,
		logger:     logger.Named("service"),
		baseCtx:    ctx,
		cancelBase: cancel,
		inflight:   make(map[string]map[uint64]context.CancelFunc),
	}
}

// Model returns the model identifier sent with every request.
func (s *Service) Model() string {
	return s.model
}

// ListModels returns the models the backend advertises, or an empty list.
func (s *Service) ListModels(ctx context.Context) []string {
	return s.generator.ListModels(ctx)
}

// Wait blocks until every request started with SubmitAsync has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight asynchronous requests and waits for them. Later
// SubmitAsync calls fail with domain.ErrClosed.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancelBase()
	s.wg.Wait()
}

// track registers a cancellable context for a request on sessionID.
func (s *Service) track(ctx context.Context, sessionID string) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.nextReq++
	id := s.nextReq
	if s.inflight[sessionID] == nil {
		s.inflight[sessionID] = make(map[uint64]context.CancelFunc)
	}
	s.inflight[sessionID][id] = cancel
	s.mu.Unlock()

	return reqCtx, func() {
		s.mu.Lock()
		delete(s.inflight[sessionID], id)
		if len(s.inflight[sessionID]) == 0 {
			delete(s.inflight, sessionID)
		}
		s.mu.Unlock()
		cancel()
	}
}

// cancelSession cancels every in-flight request for sessionID.
func (s *Service) cancelSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, cancel := range s.inflight[sessionID] {
		cancel()
		n++
	}
	return n
}

// InFlight returns the number of requests currently streaming.
func (s *Service) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, reqs := range s.inflight {
		n += len(reqs)
	}
	return n
}
