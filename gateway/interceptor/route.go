package interceptor

import (
	"sync"

	"busygate/gateway/busy"
)

// RouteHook reports route transitions.
type RouteHook struct {
	tracker busy.Tracker
}

// NewRouteHook returns a hook reporting to tracker.
func NewRouteHook(tracker busy.Tracker) *RouteHook {
	return &RouteHook{tracker: tracker}
}

// Enter marks the start of a route transition. Call the returned leave
// function when it completes; extra calls are ignored.
func (h *RouteHook) Enter() (leave func()) {
	h.tracker.Begin()
	return sync.OnceFunc(h.tracker.End)
}

// Changed reports a transition that completed immediately.
func (h *RouteHook) Changed() {
	h.Enter()()
}
