package omp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeGate(t *testing.T) {
	g := newExchangeGate()
	require.NoError(t, g.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.acquire(ctx), context.DeadlineExceeded)
	assert.Zero(t, g.queued())

	acquired := make(chan error, 1)
	go func() { acquired <- g.acquire(context.Background()) }()
	assert.Eventually(t, func() bool { return g.queued() == 1 }, time.Second, time.Millisecond)

	g.release()
	require.NoError(t, <-acquired)
	assert.Zero(t, g.queued())

	g.release()
	g.release()
	require.NoError(t, g.acquire(context.Background()), "extra release is harmless")
}

func TestClient_ConcurrentCallersAreSerialized(t *testing.T) {
	const callers = 8
	responses := make([]string, callers)
	for i := range responses {
		responses[i] = `<start_task_response status="202" status_text="OK, request submitted"/>`
	}
	c, conn, _ := newTestClient(t, responses...)
	conn.WithChunkSize(3)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.StartTask(context.Background(), "t1")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, conn.Requests(), callers)
	assert.Zero(t, conn.Remaining())
}
