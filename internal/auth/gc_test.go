// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGCThrottle_FirstCallSweeps(t *testing.T) {
	store := &mockStore{}
	clock := newFakeClock()
	store.On("DeleteExpiredTokens", mock.Anything, clock.Now()).Return(int64(3), nil).Once()

	rec := &recordingRecorder{}
	g := newGCThrottle(store, clock, 30*time.Minute, discardLogger(), rec)

	assert.True(t, g.maybeSweep(context.Background()))
	store.AssertExpectations(t)
	assert.Equal(t, []string{SweepOK}, rec.sweeps)
	assert.Equal(t, int64(3), rec.swept)
}

func TestGCThrottle_RespectsInterval(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("DeleteExpiredTokens", mock.Anything, mock.Anything).Return(int64(0), nil)

	clock := newFakeClock()
	g := newGCThrottle(store, clock, 30*time.Minute, discardLogger(), nopRecorder{})

	require.True(t, g.maybeSweep(ctx))

	clock.Advance(29 * time.Minute)
	assert.False(t, g.maybeSweep(ctx))

	clock.Advance(time.Minute)
	assert.True(t, g.maybeSweep(ctx), "sweep is due once the full interval has elapsed")

	assert.False(t, g.maybeSweep(ctx))
	store.AssertNumberOfCalls(t, "DeleteExpiredTokens", 2)
}

func TestGCThrottle_SweepsAtMostOnceUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &mockStore{}
	store.On("DeleteExpiredTokens", mock.Anything, mock.Anything).Return(int64(0), nil)
	g := newGCThrottle(store, newFakeClock(), 30*time.Minute, discardLogger(), nopRecorder{})

	var (
		wg     sync.WaitGroup
		sweeps atomic.Int32
		start  = make(chan struct{})
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.maybeSweep(context.Background()) {
				sweeps.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), sweeps.Load())
	store.AssertNumberOfCalls(t, "DeleteExpiredTokens", 1)
}

func TestGCThrottle_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	store := &mockStore{}
	store.On("DeleteExpiredTokens", mock.Anything, mock.Anything).
		Return(int64(0), errors.New("connection reset"))
	rec := &recordingRecorder{}
	g := newGCThrottle(store, newFakeClock(), time.Minute, logger, rec)

	assert.True(t, g.maybeSweep(context.Background()))
	assert.Contains(t, buf.String(), "expired token sweep failed")
	assert.Contains(t, buf.String(), "connection reset")
	assert.Equal(t, []string{SweepFailed}, rec.sweeps)
}

func TestAuthenticator_SweepFailureDoesNotFailOperation(t *testing.T) {
	store := &mockStore{}
	store.On("DeleteExpiredTokens", mock.Anything, mock.Anything).
		Return(int64(0), errors.New("disk full"))
	store.On("GetUser", mock.Anything, "a@x.com").Return(nil, ErrNotFound)

	a, err := NewAuthenticator(store, DefaultConfig(), WithLogger(discardLogger()), WithClock(newFakeClock()))
	require.NoError(t, err)

	exists, confirmed, err := a.IsUser(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, confirmed)
	store.AssertNumberOfCalls(t, "DeleteExpiredTokens", 1)
}

func TestAuthenticator_EveryOperationIsIntercepted(t *testing.T) {
	store := &mockStore{}
	store.On("DeleteExpiredTokens", mock.Anything, mock.Anything).Return(int64(0), nil)
	store.On("GetUser", mock.Anything, mock.Anything).Return(nil, ErrNotFound)

	clock := newFakeClock()
	a, err := NewAuthenticator(store, DefaultConfig(), WithLogger(discardLogger()), WithClock(clock))
	require.NoError(t, err)

	ctx := context.Background()
	_, _, err = a.IsUser(ctx, "a@x.com")
	require.NoError(t, err)

	clock.Advance(DefaultGCInterval)
	_, err = a.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)

	clock.Advance(DefaultGCInterval)
	_, err = a.ConfirmEmail(ctx, "secret", "a@x.com")
	assert.ErrorIs(t, err, ErrInvalidUser)

	store.AssertNumberOfCalls(t, "DeleteExpiredTokens", 3)
}
