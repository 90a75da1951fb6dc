package cache

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Sweeper runs ResponseCache.SweepExpired on a schedule, keeping the on-disk
// entry count from growing unbounded between reads.
type Sweeper struct {
	cron *cron.Cron
}

// NewSweeper starts a background schedule (default "@every 1h") that sweeps
// expired entries from c. Call Stop to shut it down.
func NewSweeper(c *ResponseCache, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = "@every 1h"
	}
	cr := cron.New()
	_, err := cr.AddFunc(schedule, func() {
		n, err := c.SweepExpired()
		if err != nil {
			log.Printf("[Cache] sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[Cache] swept %d expired entries", n)
		}
	})
	if err != nil {
		return nil, err
	}
	cr.Start()
	return &Sweeper{cron: cr}, nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
