package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueExecutesInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int

	q := New(func(i int) {
		mu.Lock()
		got = append(got, i)
		mu.Unlock()
	})

	for i := 0; i < 500; i++ {
		q.Enqueue(i)
	}
	q.Wait()

	require.Len(t, got, 500)
	for i, v := range got {
		require.Equal(t, i, v)
	}
	require.Equal(t, 0, q.Len())
}

func TestQueueIsSingleFlight(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	q := New(func(int) {
		n := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if n <= prev || maxInFlight.CompareAndSwap(prev, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	})

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				q.Enqueue(p*10 + i)
			}
		}()
	}
	wg.Wait()
	q.Wait()

	require.Equal(t, int32(1), maxInFlight.Load())
}

func TestQueueEnqueueDoesNotExecuteSynchronously(t *testing.T) {
	release := make(chan struct{})
	var ran atomic.Bool

	q := New(func(int) {
		<-release
		ran.Store(true)
	})

	q.Enqueue(1)
	q.Enqueue(2)
	require.False(t, ran.Load())

	close(release)
	q.Wait()
	require.True(t, ran.Load())
}

func TestQueueRestartsAfterIdle(t *testing.T) {
	var count atomic.Int32
	q := New(func(int) { count.Add(1) })

	q.Enqueue(1)
	q.Wait()
	q.Enqueue(2)
	q.Wait()

	require.Equal(t, int32(2), count.Load())
}
