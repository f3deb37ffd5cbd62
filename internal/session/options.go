package session

import (
	"time"

	"github.com/muhammadolammi/careercards/internal/metrics"
	"go.uber.org/zap"
)

type Option func(*Store)

// WithKey sets the record key. Legacy keys are unchanged; see WithLegacyKeys.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLegacyKeys(keys ...string) Option {
	return func(s *Store) { s.legacyKeys = keys }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(s *Store) { s.metrics = m }
}

// ForUser scopes the record key and the legacy keys to one user.
func ForUser(userID string) Option {
	return func(s *Store) {
		s.key = DefaultKey + ":" + userID
		legacy := make([]string, len(DefaultLegacyKeys))
		for i, k := range DefaultLegacyKeys {
			legacy[i] = k + ":" + userID
		}
		s.legacyKeys = legacy
	}
}
