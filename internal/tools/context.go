// ABOUTME: Context helpers carrying the name of the transport that received a call.
// ABOUTME: Used for logging and the invocation audit log.

package tools

import "context"

type transportKey struct{}

// Transport names.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportCLI   = "cli"
)

// WithTransport records which transport a call arrived on.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

// TransportFrom returns the transport recorded by WithTransport, or "".
func TransportFrom(ctx context.Context) string {
	t, _ := ctx.Value(transportKey{}).(string)
	return t
}
