package authoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/config"
	"github.com/geonotify/backend/internal/metrics"
	"github.com/geonotify/backend/internal/models"
	"github.com/geonotify/backend/internal/notification"
)

// ErrSessionNotFound is returned for an unknown or expired draft ID.
var ErrSessionNotFound = errors.New("draft not found")

// Registry holds the open authoring sessions and tears down idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
	opts        []notification.Option
}

// NewRegistry creates an empty registry using the configured idle timeout.
func NewRegistry(cfg *config.Config, logger *zap.Logger, opts ...notification.Option) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		idleTimeout: cfg.DraftIdleTimeout,
		logger:      logger,
		now:         time.Now,
		opts:        opts,
	}
}

// Open starts a session for a new notification, or for editing n when it is not nil.
func (r *Registry) Open(n *models.Notification) (*Session, error) {
	origin := "new"
	controller := notification.New(r.logger, r.opts...)
	if n != nil {
		origin = "edit"
		controller = notification.FromNotification(n, r.logger, r.opts...)
	}

	s, err := newSession(uuid.NewString(), controller, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	s.lastUsed = r.now()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.DraftsOpenedTotal.WithLabelValues(origin).Inc()
	metrics.ActiveDrafts.Set(float64(count))
	r.logger.Info("Opened draft", zap.String("id", s.ID), zap.String("origin", origin))
	return s, nil
}

// Get returns the session with the given ID and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastUsed = r.now()
	return s, nil
}

// Discard removes a session and tears it down.
func (r *Registry) Discard(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	metrics.ActiveDrafts.Set(float64(count))
	r.logger.Info("Discarded draft", zap.String("id", id))
	return s.Close()
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep tears down sessions idle for longer than the idle timeout and
// returns how many were removed.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idleTimeout)
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil {
			r.logger.Warn("Failed to tear down expired draft", zap.String("id", s.ID), zap.Error(err))
		}
		metrics.DraftsExpiredTotal.Inc()
	}
	if len(expired) > 0 {
		metrics.ActiveDrafts.Set(float64(count))
		r.logger.Info("Expired idle drafts", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll tears down every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			r.logger.Warn("Failed to tear down draft", zap.String("id", s.ID), zap.Error(err))
		}
	}
	metrics.ActiveDrafts.Set(0)
	r.logger.Info("Closed all drafts", zap.Int("count", len(sessions)))
}
