// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUser(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockStore) CreateUser(ctx context.Context, user *User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockStore) SetUserPassword(ctx context.Context, email, passwordHash string) error {
	return m.Called(ctx, email, passwordHash).Error(0)
}

func (m *mockStore) SetUserConfirmed(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockStore) DeleteUser(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetToken(ctx context.Context, tokenHash string) (*Token, error) {
	args := m.Called(ctx, tokenHash)
	t, _ := args.Get(0).(*Token)
	return t, args.Error(1)
}

func (m *mockStore) CreateToken(ctx context.Context, token *Token) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockStore) InsertToken(ctx context.Context, token *Token) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockStore) DeleteExpiredTokens(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) DeleteUserTokens(ctx context.Context, email string) (int64, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// allowSweeps lets the GC interceptor run without asserting on it.
func (m *mockStore) allowSweeps() {
	m.On("DeleteExpiredTokens", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedOp struct {
	operation string
	result    string
}

type recordingRecorder struct {
	mu     sync.Mutex
	ops    []recordedOp
	sweeps []string
	swept  int64
}

func (r *recordingRecorder) ObserveOperation(operation, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{operation, result})
}

func (r *recordingRecorder) ObserveSweep(result string, swept int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps = append(r.sweeps, result)
	r.swept += swept
}

var _ Store = (*mockStore)(nil)
