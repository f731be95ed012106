package main

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"busygate/gateway/interceptor"
)

// requestTracker counts in-flight API requests for graceful shutdown and
// reports each one to the busy coordinator as a route transition.
type requestTracker struct {
	routes *interceptor.RouteHook
	wg     sync.WaitGroup
	active atomic.Int64
}

func newRequestTracker(routes *interceptor.RouteHook) *requestTracker {
	return &requestTracker{routes: routes}
}

// TrackInFlightRequests tracks active HTTP requests.
func (t *requestTracker) TrackInFlightRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		t.wg.Add(1)
		t.active.Add(1)
		leave := t.routes.Enter()

		defer func() {
			leave()
			t.active.Add(-1)
			t.wg.Done()
		}()

		c.Next()
	}
}

// Wait blocks until all active requests finish or ctx is done.
func (t *requestTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRequests returns the current number of active requests.
func (t *requestTracker) ActiveRequests() int64 {
	return t.active.Load()
}
