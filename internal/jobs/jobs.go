package jobs

import (
	"context"
	"time"
)

// Job names
const (
	HotspotRebuild = "hotspot-rebuild"
	StaleSweep     = "stale-sweep"
)

// HotspotRebuilder rebuilds the complaint geo index from storage
type HotspotRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// StaleSweeper moves complaints left untouched into review
type StaleSweeper interface {
	SweepStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// NewHotspotRebuildJob rebuilds the hotspot index on schedule
func NewHotspotRebuildJob(schedule string, svc HotspotRebuilder) Job {
	return Job{
		Name:     HotspotRebuild,
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			n, err := svc.Rebuild(ctx)
			return int64(n), err
		},
	}
}

// NewStaleSweepJob marks complaints still new after staleAfter as needing review
func NewStaleSweepJob(schedule string, staleAfter time.Duration, svc StaleSweeper) Job {
	return Job{
		Name:     StaleSweep,
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			return svc.SweepStale(ctx, staleAfter)
		},
	}
}
