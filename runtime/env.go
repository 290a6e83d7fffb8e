package runtime

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/guest"
)

// PassEnv selects the variables of environ whose names match one of
// patterns. A nil environ reads os.Environ(). The guest convention variable
// is never passed through.
func PassEnv(environ, patterns []string) (map[string]string, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("env", "pass").
				Value(p).
				Detail("invalid pattern %q", p).
				Build()
		}
	}
	out := make(map[string]string)
	if len(patterns) == 0 {
		return out, nil
	}
	if environ == nil {
		environ = os.Environ()
	}
	for name, value := range guest.ParseEnviron(environ) {
		if name == guest.ConventionEnv {
			continue
		}
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				out[name] = value
				break
			}
		}
	}
	return out, nil
}
