package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestManager_ReverseOrder(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), time.Second)

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}
	m.RegisterNoErr("database", record("database"))
	m.RegisterNoErr("sweeper", record("sweeper"))
	m.RegisterNoErr("http", record("http"))

	require.NoError(t, m.Shutdown())
	assert.Equal(t, []string{"http", "sweeper", "database"}, order)

	require.NoError(t, m.Shutdown())
	assert.Len(t, order, 3, "second call is a no-op")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestManager_CollectsErrors(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), time.Second)
	boom := errors.New("boom")

	var later bool
	m.RegisterNoErr("first", func() { later = true })
	m.RegisterCloser("redis", closerFunc(func() error { return boom }))

	err := m.Shutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "redis")
	assert.True(t, later, "a failure does not stop the remaining components")
}

func TestManager_WaitOnContextCancel(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), time.Second)
	var stopped atomic.Bool
	m.RegisterNoErr("worker", func() { stopped.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Wait(ctx))
	assert.True(t, stopped.Load())
}

func TestTracker(t *testing.T) {
	tr := NewTracker("notifications", zaptest.NewLogger(t))

	release := make(chan struct{})
	var ran atomic.Int32
	assert.True(t, tr.Go(func() {
		<-release
		ran.Add(1)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Shutdown(ctx), context.DeadlineExceeded)

	assert.False(t, tr.Go(func() { ran.Add(1) }), "closed tracker refuses work")

	close(release)
	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Equal(t, int32(1), ran.Load())
}

func TestPeriodicWorker(t *testing.T) {
	pw := NewPeriodicWorker("sweep", 5*time.Millisecond, zaptest.NewLogger(t))
	assert.NoError(t, pw.Shutdown(context.Background()), "not started")

	runs := make(chan struct{}, 16)
	pw.Start(func(ctx context.Context) {
		select {
		case runs <- struct{}{}:
		default:
		}
	})

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(time.Second):
			t.Fatal("worker did not run")
		}
	}

	require.NoError(t, pw.Shutdown(context.Background()))
}
