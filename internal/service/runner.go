package service

import (
	"context"
	"fmt"
	"time"

	"github.com/srg/mbitmore/internal/groutine"
)

// Run calls Tick every interval until ctx is cancelled. It returns nil on
// cancellation.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.WithField("interval", interval).Debug("Periodic updater started")
	defer s.logger.Debug("Periodic updater stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Start runs the periodic updater in a named goroutine. The returned channel
// receives Run's result once the updater stops.
func (s *Service) Start(ctx context.Context, interval time.Duration) <-chan error {
	return groutine.Start(ctx, "mbitmore-updater", func(ctx context.Context) error {
		return s.Run(ctx, interval)
	})
}
