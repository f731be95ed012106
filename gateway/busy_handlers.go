package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"busygate/gateway/busy"
	"busygate/gateway/interceptor"
)

func handleHealth(tracker *requestTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"service":         "gateway",
			"active_requests": tracker.ActiveRequests(),
		})
	}
}

func handleBusyState(coord *busy.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Snapshot())
	}
}

// handleBusyReset is the manual recovery switch.
func handleBusyReset(coord *busy.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		coord.Reset()
		c.Status(http.StatusNoContent)
	}
}

// handleNavigate lets the client router report a route change.
func handleNavigate(routes *interceptor.RouteHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		routes.Changed()
		c.Status(http.StatusAccepted)
	}
}

// handleBusyEvents streams the indicator signal as Server-Sent Events. The
// first event carries the current value and every later event differs from
// the one before it. A slow client only ever sees the latest value. The
// stream ends when the client goes away or closing is closed.
func handleBusyEvents(coord *busy.Coordinator, closing <-chan struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		feed := newVisibilityFeed()
		cancel := coord.Observe(feed.push)
		defer cancel()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")

		// A transition racing this read is dropped by feed.changed.
		visible := coord.Visible()
		feed.changed(visible)
		c.SSEvent("busy", gin.H{"visible": visible})
		c.Writer.Flush()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case visible := <-feed.updates:
				if feed.changed(visible) {
					c.SSEvent("busy", gin.H{"visible": visible})
				}
				return true
			case <-ctx.Done():
				return false
			case <-closing:
				return false
			}
		})
	}
}

// visibilityFeed hands signal values from observer callbacks to one stream.
type visibilityFeed struct {
	updates chan bool

	// last is only touched by the stream goroutine.
	last    bool
	started bool
}

func newVisibilityFeed() *visibilityFeed {
	return &visibilityFeed{updates: make(chan bool, 1)}
}

// push never blocks; an unread value is replaced by the newer one.
func (f *visibilityFeed) push(visible bool) {
	select {
	case f.updates <- visible:
		return
	default:
	}
	select {
	case <-f.updates:
	default:
	}
	select {
	case f.updates <- visible:
	default:
	}
}

// changed records visible as sent and reports whether it differs from the
// previous value.
func (f *visibilityFeed) changed(visible bool) bool {
	if f.started && f.last == visible {
		return false
	}
	f.started = true
	f.last = visible
	return true
}
