package events

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

// Service is the in-process pub/sub bus that fans job and page lifecycle
// events out to webhook delivery and websocket broadcast.
type Service struct {
	mu          sync.RWMutex
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	logger      arbor.ILogger
}

var _ interfaces.EventService = (*Service)(nil)

// NewService creates an event service with no subscriptions.
func NewService(logger arbor.ILogger) interfaces.EventService {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return common.InvalidInputf("event handler cannot be nil")
	}

	s.mu.Lock()
	s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	count := len(s.subscribers[eventType])
	s.mu.Unlock()

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", count).
		Msg("Event handler subscribed")

	return nil
}

// handlersFor snapshots the subscriber list so publishers never hold the
// lock while handlers run.
func (s *Service) handlersFor(eventType interfaces.EventType) []interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	registered := s.subscribers[eventType]
	if len(registered) == 0 {
		return nil
	}
	snapshot := make([]interfaces.EventHandler, len(registered))
	copy(snapshot, registered)
	return snapshot
}

func (s *Service) dispatch(ctx context.Context, handler interfaces.EventHandler, event interfaces.Event) error {
	if err := handler(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Event handler failed")
		return err
	}
	return nil
}

// Publish fans the event out without waiting for handlers. Handler errors
// are logged, never returned; a slow webhook must not stall the worker.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	handlers := s.handlersFor(event.Type)
	if handlers == nil {
		return nil
	}

	s.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", len(handlers)).
		Msg("Publishing event")

	for _, handler := range handlers {
		go func(h interfaces.EventHandler) {
			_ = s.dispatch(ctx, h, event)
		}(handler)
	}

	return nil
}

// PublishSync runs every handler, waits for all of them, and returns the
// joined handler errors.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers := s.handlersFor(event.Type)
	if handlers == nil {
		return nil
	}

	var (
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []error
	)
	for _, handler := range handlers {
		wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer wg.Done()
			if err := s.dispatch(ctx, h, event); err != nil {
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
			}
		}(handler)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close drops all subscriptions; later publishes become no-ops.
func (s *Service) Close() error {
	s.mu.Lock()
	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.mu.Unlock()

	s.logger.Info().Msg("Event service closed")
	return nil
}
