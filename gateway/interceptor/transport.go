// Package interceptor holds the callers of the busy coordinator: an HTTP
// client transport and route enter/leave hooks. Each reports exactly one
// Begin and one End per logical operation.
package interceptor

import (
	"io"
	"net/http"
	"sync"

	"busygate/gateway/busy"
)

// Transport reports every outgoing request to Tracker.
//
// Begin runs before the request is sent. End runs when the round trip fails,
// or once the response body has been read to the end or closed. A protocol
// upgrade ends as soon as the 101 arrives.
type Transport struct {
	// Base defaults to http.DefaultTransport.
	Base    http.RoundTripper
	Tracker busy.Tracker
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	t.Tracker.Begin()

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Tracker.End()
		return nil, err
	}

	// An upgraded connection is not a request in flight any more, and its
	// body must stay an io.ReadWriteCloser for the caller.
	if resp.Body == nil || resp.Body == http.NoBody || resp.StatusCode == http.StatusSwitchingProtocols {
		t.Tracker.End()
		return resp, nil
	}

	resp.Body = &trackedBody{ReadCloser: resp.Body, done: sync.OnceFunc(t.Tracker.End)}
	return resp, nil
}

// trackedBody ends the operation on the first read error (io.EOF included)
// or on Close.
type trackedBody struct {
	io.ReadCloser
	done func()
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil {
		b.done()
	}
	return n, err
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.done()
	return err
}
