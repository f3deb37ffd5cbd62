package pipeline

import (
	"github.com/muhammadolammi/careercards/internal/metrics"
	"go.uber.org/zap"
)

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}
