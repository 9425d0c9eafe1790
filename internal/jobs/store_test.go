package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, ttl), mr
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateStarted, true},
		{StatePending, StateSuccess, true},
		{StatePending, StateRevoked, true},
		{StateStarted, StateSuccess, true},
		{StateStarted, StateFailure, true},
		{StateStarted, StateRevoked, true},
		{StateStarted, StatePending, false},
		{StateStarted, StateStarted, false},
		{StateSuccess, StateRevoked, false},
		{StateFailure, StateSuccess, false},
		{StateRevoked, StateStarted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}

	for _, s := range []State{StateSuccess, StateFailure, StateRevoked} {
		if !s.Ready() {
			t.Errorf("%s should be ready", s)
		}
	}
	for _, s := range []State{StatePending, StateStarted} {
		if s.Ready() {
			t.Errorf("%s should not be ready", s)
		}
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	created, err := store.Create(ctx, "job-1", "double:compute")
	require.NoError(t, err)
	assert.Equal(t, StatePending, created.State)

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "double:compute", got.TaskType)
	assert.Equal(t, StatePending, got.State)
	assert.Equal(t, time.Hour, mr.TTL(jobKey("job-1")))

	_, err = store.Create(ctx, "job-1", "double:compute")
	assert.Error(t, err)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreTransition(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "t")
	require.NoError(t, err)

	started, err := store.Transition(ctx, "job-1", StateStarted, nil)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, started.State)
	assert.False(t, started.StartedAt.IsZero())

	out, err := ValueOutput(map[string]int{"result": 4})
	require.NoError(t, err)
	done, err := store.Transition(ctx, "job-1", StateSuccess, func(r *Record) {
		r.Output = out
	})
	require.NoError(t, err)
	assert.False(t, done.FinishedAt.IsZero())

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, got.State)
	assert.JSONEq(t, `{"result":4}`, string(got.Output.Value))

	_, err = store.Transition(ctx, "job-1", StateFailure, nil)
	assert.True(t, errors.Is(err, ErrInvalidTransition), err)

	_, err = store.Transition(ctx, "missing", StateStarted, nil)
	assert.True(t, errors.Is(err, ErrNotFound), err)
}

func TestStoreRevoke(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "t")
	require.NoError(t, err)

	revoked, err := store.Revoke(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateRevoked, revoked.State)

	_, err = store.Revoke(ctx, "job-1")
	assert.True(t, errors.Is(err, ErrInvalidTransition), err)

	// 未知の ID には墓標を作る
	tomb, err := store.Revoke(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, StateRevoked, tomb.State)
	assert.Positive(t, mr.TTL(jobKey("ghost")))

	_, err = store.Transition(ctx, "ghost", StateStarted, nil)
	assert.True(t, errors.Is(err, ErrInvalidTransition), err)
}

func TestStoreRecordsExpire(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()
	_, err := store.Create(ctx, "job-1", "t")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreRequiresJobID(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "")
	assert.Error(t, err)
	_, err = store.Create(ctx, "", "t")
	assert.Error(t, err)
	_, err = store.Transition(ctx, "", StateStarted, nil)
	assert.Error(t, err)
}
