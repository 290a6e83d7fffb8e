package guest

import "errors"

// Transport carries a serialized wire.Request to the host and returns the
// serialized wire.Result.
type Transport interface {
	RoundTrip(request []byte) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(request []byte) ([]byte, error)

// RoundTrip calls f.
func (f TransportFunc) RoundTrip(request []byte) ([]byte, error) {
	return f(request)
}

// ErrNoTransport is returned by fetch when no host transport is available.
var ErrNoTransport = errors.New("no fetch transport configured")

// Convention selects how the guest hands fetch payloads to the host.
type Convention string

const (
	// ConventionPacked passes pointer and length explicitly.
	ConventionPacked Convention = "packed"
	// ConventionLengthStack passes a pointer and carries the length on the
	// length stack.
	ConventionLengthStack Convention = "length-stack"
)

// ConventionEnv names the environment variable the host sets to select the
// calling convention. It is not exposed through process.env.
const ConventionEnv = "EDGE_GUEST_CONVENTION"
