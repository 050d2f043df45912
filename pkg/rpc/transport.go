package rpc

import (
	"net/http"
	"sync/atomic"
)

// failureTransport remembers the last transport error seen on the channel.
// jhttp folds transport failures into JSON-RPC error responses, so Call
// consults it to tell an unreachable node from a node answering with an
// error.
type failureTransport struct {
	base http.RoundTripper
	last atomic.Pointer[error]
}

func (t *failureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.last.Store(&err)
	}
	return resp, err
}

// take returns and clears the recorded transport error.
func (t *failureTransport) take() error {
	if p := t.last.Swap(nil); p != nil {
		return *p
	}
	return nil
}

// recordingClient returns a copy of client whose transport records failures.
func recordingClient(client *http.Client) (*http.Client, *failureTransport) {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	t := &failureTransport{base: base}

	cp := *client
	cp.Transport = t
	return &cp, t
}
