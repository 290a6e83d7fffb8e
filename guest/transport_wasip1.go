//go:build wasip1

package guest

import "github.com/wippyai/edge-runtime/abi"

//go:wasmimport env send_request
func sendRequest(ptr uint32) uint32

//go:wasmimport env send_request_packed
func sendRequestPacked(ptr, length uint32) uint64

// HostTransport crosses into the host through the env imports.
type HostTransport struct {
	Convention Convention
	Channel    *abi.Channel
}

// DefaultTransport returns the host import transport using the packed
// convention.
func DefaultTransport() Transport {
	return HostTransport{Convention: ConventionPacked, Channel: abi.Default}
}

// RoundTrip implements Transport.
func (t HostTransport) RoundTrip(request []byte) ([]byte, error) {
	ch := t.Channel
	if ch == nil {
		ch = abi.Default
	}
	n := uint32(len(request))

	if t.Convention == ConventionLengthStack {
		ptr := ch.Send(request)
		reply := sendRequest(ptr)
		ch.Alloc.Release(ptr, n)
		return ch.Receive(reply), nil
	}

	ptr := ch.Place(request)
	packed := sendRequestPacked(ptr, n)
	ch.Alloc.Release(ptr, n)
	rp, rl := abi.Unpack(packed)
	return ch.Take(rp, rl), nil
}

func transportFor(c Convention) Transport {
	if c == ConventionLengthStack {
		return HostTransport{Convention: ConventionLengthStack, Channel: abi.Default}
	}
	return DefaultTransport()
}
