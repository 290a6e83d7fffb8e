//go:build !wasip1

package guest

// DefaultTransport fails every fetch; native builds inject a Transport.
func DefaultTransport() Transport {
	return TransportFunc(func([]byte) ([]byte, error) {
		return nil, ErrNoTransport
	})
}

func transportFor(Convention) Transport {
	return DefaultTransport()
}
