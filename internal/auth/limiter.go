package auth

import (
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// attemptLimiter はクライアント IP ごとのログイン失敗回数を数え、上限に達したら一定時間ロックします。
type attemptLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptState
	window   time.Duration
	lockFor  time.Duration
	max      int
	now      func() time.Time
}

func newAttemptLimiter(maxAttempts int, window, lockFor time.Duration) *attemptLimiter {
	return &attemptLimiter{
		attempts: make(map[string]*attemptState),
		window:   window,
		lockFor:  lockFor,
		max:      maxAttempts,
		now:      time.Now,
	}
}

// locked はロック中なら残り時間を返します。
func (l *attemptLimiter) locked(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0
	}
	now := l.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// fail は失敗を記録し、ロックまでの残り回数を返します。
func (l *attemptLimiter) fail(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > l.window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.max {
		state.lockedUntil = now.Add(l.lockFor)
		state.count = l.max
	}
	return max(l.max-state.count, 0)
}

func (l *attemptLimiter) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}
