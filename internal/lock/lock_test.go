package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ConsorcioSync/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	release, err := l.Acquire(ctx, "gmac", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "gmac", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "itau", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "gmac", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestNewWithoutRedisIsLocal(t *testing.T) {
	assert.IsType(t, &LocalLocker{}, New(config.LockConfig{}, logrus.New()))
	assert.IsType(t, &RedisLocker{}, New(config.LockConfig{RedisAddr: "localhost:6379"}, logrus.New()))
}

func TestKeepAliveRenewsUntilStopped(t *testing.T) {
	var renewals atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, 5*time.Millisecond, func(context.Context) (bool, error) {
			renewals.Add(1)
			return true, nil
		}, func(err error) { t.Errorf("unexpected lock loss: %v", err) })
	}()

	require.Eventually(t, func() bool { return renewals.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
	stopped := renewals.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, renewals.Load(), "no renewals after release")
}

func TestKeepAliveStopsWhenLockIsLost(t *testing.T) {
	calls := 0
	var lost []error
	keepAlive(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("i/o timeout")
		}
		return false, nil
	}, func(err error) { lost = append(lost, err) })

	assert.Equal(t, 2, calls, "transient errors are retried")
	require.Len(t, lost, 2)
	assert.EqualError(t, lost[0], "i/o timeout")
	assert.Nil(t, lost[1])
}

func TestKeepAliveWithoutTTL(t *testing.T) {
	keepAlive(context.Background(), 0, func(context.Context) (bool, error) {
		t.Fatal("renew must not be called")
		return false, nil
	}, func(error) {})
}
