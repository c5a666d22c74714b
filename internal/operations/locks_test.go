package operations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SameKeyBlocks(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	unlock, err := k.Lock(ctx, "/data/session_1")
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		u, err := k.Lock(ctx, "/data/session_1")
		if err == nil {
			acquired <- u
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	// other keys are independent
	other, err := k.Lock(ctx, "/data/session_2")
	require.NoError(t, err)
	other()

	unlock()
	unlock() // second call is a no-op

	select {
	case u := <-acquired:
		u()
	case <-time.After(waitTimeout):
		t.Fatal("waiter never acquired the lock")
	}
	assert.Equal(t, 0, k.Len())
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "/data/scan")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "/data/scan")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, k.Len())
}
