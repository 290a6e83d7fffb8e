package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/wire"
)

// Rejection is the output of a handler that threw or rejected with an
// Error. Kind, Status and URL are set for fetch failures.
type Rejection struct {
	Error  string `json:"error"`
	Name   string `json:"name"`
	Kind   string `json:"kind,omitempty"`
	Status int    `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Output is a decoded handler output. At most one field is set; neither is
// set for a plain JSON value.
type Output struct {
	Response  *wire.Response
	Rejection *Rejection
}

// DecodeOutput classifies guest stdout. An object with string error and name
// fields is a rejection, an object with a numeric status is a response, and
// any other JSON value is passed through.
func DecodeOutput(out []byte) (Output, error) {
	if !json.Valid(out) {
		return Output{}, errors.InvalidData(errors.PhaseServe, nil, fmt.Sprintf("output is not JSON: %.32q", out))
	}
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Output{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Output{}, err
	}
	if isString(fields["error"]) && isString(fields["name"]) {
		var rej Rejection
		if err := json.Unmarshal(trimmed, &rej); err == nil {
			return Output{Rejection: &rej}, nil
		}
	}
	if raw, ok := fields["status"]; ok && isNumber(raw) {
		var resp wire.Response
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return Output{}, errors.InvalidData(errors.PhaseServe, []string{"response"}, err.Error())
		}
		return Output{Response: &resp}, nil
	}
	return Output{}, nil
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
