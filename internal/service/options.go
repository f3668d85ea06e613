package service

import (
	"fmt"

	"github.com/DotZohaib/ShopSphere/internal/metrics"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
)

type ConcurrencyMode string

const (
	// ModeOptimistic rejects writes made against a stale revision with ErrConflict.
	ModeOptimistic ConcurrencyMode = "optimistic"
	// ModeLastWriteWins replaces unconditionally. Concurrent mutations of one
	// cart can overwrite each other.
	ModeLastWriteWins ConcurrencyMode = "last-write-wins"
)

func ParseConcurrencyMode(v string) (ConcurrencyMode, error) {
	switch ConcurrencyMode(v) {
	case "", ModeOptimistic:
		return ModeOptimistic, nil
	case ModeLastWriteWins:
		return ModeLastWriteWins, nil
	}
	return "", fmt.Errorf("unknown concurrency mode %q", v)
}

type Option func(*CartService)

func WithConcurrencyMode(mode ConcurrencyMode) Option {
	return func(s *CartService) {
		s.mode = mode
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *CartService) {
		s.log = log
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(s *CartService) {
		s.metrics = m
	}
}
