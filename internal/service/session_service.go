package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/metrics"
	"github.com/makeasinger/moviegen/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// Publisher pushes session updates to connected clients.
type Publisher interface {
	BroadcastState(sessionID string, view model.StateView)
	BroadcastNotification(sessionID string, n model.Notification)
}

// Session is one user's generation controller plus its notification history.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	controller *GenerationController
	log        *NotificationLog

	mu         sync.Mutex
	lastActive time.Time
}

// View renders the current state tagged with the session id.
func (s *Session) View() model.StateView {
	v := s.controller.State().Render()
	v.SessionID = s.ID
	return v
}

// Notifications returns the recorded notifications, oldest first.
func (s *Session) Notifications() []model.Notification {
	return s.log.List()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SessionService keeps generation sessions in memory.
type SessionService struct {
	builder   *RequestBuilder
	completer Completer
	publisher Publisher
	logLimit  int
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionService(builder *RequestBuilder, completer Completer, publisher Publisher) *SessionService {
	return &SessionService{
		builder:   builder,
		completer: completer,
		publisher: publisher,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Create starts a new idle session owned by userID.
func (s *SessionService) Create(ctx context.Context, userID string) *Session {
	id := uuid.New().String()
	now := s.now()
	log := NewNotificationLog(s.logLimit)

	notifiers := MultiNotifier{log}
	if s.publisher != nil {
		notifiers = append(notifiers, NotifierFunc(func(n model.Notification) {
			s.publisher.BroadcastNotification(id, n)
		}))
	}

	sess := &Session{
		ID:         id,
		UserID:     userID,
		CreatedAt:  now,
		controller: NewGenerationController(s.builder, s.completer, notifiers),
		log:        log,
		lastActive: now,
	}
	if s.publisher != nil {
		sess.controller.OnStateChange(func(state model.GenerationState) {
			v := state.Render()
			v.SessionID = id
			s.publisher.BroadcastState(id, v)
		})
	}

	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	metrics.SetActiveSessions(count)

	logging.FromContext(ctx).V(logging.INFO).Info("session created", "sessionID", id, "userID", userID)
	return sess
}

// Get returns the session if it exists and belongs to userID.
func (s *SessionService) Get(userID, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Generate submits prompt to the session. With wait it blocks until the
// cycle settles, otherwise it returns the pending view.
func (s *SessionService) Generate(ctx context.Context, userID, id, prompt string, wait bool) (model.StateView, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return model.StateView{}, err
	}
	sess.touch(s.now())

	ctx = logging.WithValues(ctx, "sessionID", id)
	if wait {
		sess.controller.Generate(ctx, prompt)
	} else {
		sess.controller.Submit(ctx, prompt)
	}
	return sess.View(), nil
}

// Reset returns the session to its initial state.
func (s *SessionService) Reset(ctx context.Context, userID, id string) (model.StateView, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return model.StateView{}, err
	}
	sess.touch(s.now())
	sess.controller.Reset(logging.WithValues(ctx, "sessionID", id))
	return sess.View(), nil
}

// Delete removes the session and detaches any in-flight call.
func (s *SessionService) Delete(ctx context.Context, userID, id string) error {
	sess, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	s.remove(ctx, sess)
	return nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions untouched for longer than maxIdle.
func (s *SessionService) Sweep(ctx context.Context, maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.RLock()
	var stale []*Session
	for _, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range stale {
		s.remove(ctx, sess)
	}
	if len(stale) > 0 {
		logging.FromContext(ctx).V(logging.INFO).Info("swept idle sessions", "count", len(stale))
	}
	return len(stale)
}

// RunSweeper sweeps on every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx, maxIdle)
		}
	}
}

// Wait blocks until every in-flight generation across sessions has settled.
func (s *SessionService) Wait() {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	for _, sess := range sessions {
		sess.controller.Wait()
	}
}

func (s *SessionService) remove(ctx context.Context, sess *Session) {
	s.mu.Lock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sess.ID)
	count := len(s.sessions)
	s.mu.Unlock()

	sess.controller.Reset(ctx)
	metrics.SetActiveSessions(count)
	logging.FromContext(ctx).V(logging.INFO).Info("session removed", "sessionID", sess.ID)
}
