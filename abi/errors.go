package abi

import "fmt"

// ProtocolError reports a broken caller of the marshaling protocol.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("abi protocol violation in %s: %s", e.Op, e.Detail)
}
