package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	err    error
}

func (m *memoryLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	ctx := context.Background()
	first, err := NewRedisLock(store, "vr:lock:cron-worker", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "vr:lock:cron-worker", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "vr:lock:cron-worker", "non-owner release removed the lock")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "expected acquire after release")
}

func TestRedisLockExpiredLeaseIsNotStolen(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	ctx := context.Background()
	stale, err := NewRedisLock(store, "vr:lock:cron-worker", time.Minute)
	require.NoError(t, err)

	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// lease expires and another replica takes it
	store.values["vr:lock:cron-worker"] = "other-replica"
	require.NoError(t, stale.Release(ctx))
	assert.Equal(t, "other-replica", store.values["vr:lock:cron-worker"])
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	lock, err := NewRedisLock(&memoryLockStore{values: map[string]string{}, err: errors.New("redis down")}, "k", 0)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.ErrorContains(t, err, "redis down")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "", 0)
	assert.Error(t, err)
}
