package model

import "context"

// Provider turns a Request into a streamed Response. Implementations must
// tolerate concurrent SendRequest calls from independent clients; the
// serialization of requests belonging to one agent happens above this
// interface.
//
// A provider that holds resources should additionally implement io.Closer;
// owners check for it on shutdown.
type Provider interface {
	SendRequest(ctx context.Context, req Request) (Response, error)
}
