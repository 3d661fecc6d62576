// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/holomush/auther/pkg/errutil"
)

// Sweep results reported to the Recorder.
const (
	SweepOK     = "ok"
	SweepFailed = "error"
)

// gcThrottle removes expired tokens at most once per interval.
//
// lastSweep holds the Unix nanoseconds of the last sweep start. It starts at
// zero, so the first call after construction always sweeps.
type gcThrottle struct {
	store    Store
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
	recorder Recorder

	lastSweep atomic.Int64
}

func newGCThrottle(store Store, clock Clock, interval time.Duration, logger *slog.Logger, recorder Recorder) *gcThrottle {
	return &gcThrottle{
		store:    store,
		clock:    clock,
		interval: interval,
		logger:   logger,
		recorder: recorder,
	}
}

// maybeSweep deletes expired tokens when the interval has elapsed since the
// last sweep. Only the caller that wins the compare-and-swap sweeps; the
// others return immediately. It reports whether this call swept.
//
// Sweep failures are logged and counted but never returned.
func (g *gcThrottle) maybeSweep(ctx context.Context) bool {
	now := g.clock.Now()
	last := g.lastSweep.Load()
	if now.UnixNano()-last < int64(g.interval) {
		return false
	}
	if !g.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return false
	}

	swept, err := g.store.DeleteExpiredTokens(ctx, now)
	if err != nil {
		g.recorder.ObserveSweep(SweepFailed, 0)
		errutil.LogErrorContext(ctx, g.logger, "expired token sweep failed", err)
		return true
	}

	g.recorder.ObserveSweep(SweepOK, swept)
	if swept > 0 {
		g.logger.DebugContext(ctx, "expired tokens swept", "count", swept)
	}
	return true
}
