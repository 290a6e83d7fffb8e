package runtime

import (
	stderrors "errors"

	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/guest"
)

// ExitReason describes why an invocation failed. Guest exits are named by
// their exit code; other errors by their kind.
func ExitReason(err error) string {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return "unknown"
	}
	if e.Kind != errors.KindGuestExit {
		return string(e.Kind)
	}
	code, _ := e.Value.(uint32)
	switch code {
	case guest.ExitScript:
		return "script error"
	case guest.ExitPanic:
		return "guest panic (protocol violation)"
	case guest.ExitContract:
		return "handler contract violation"
	case guest.ExitUsage:
		return "bad guest invocation"
	default:
		return "guest exit"
	}
}
