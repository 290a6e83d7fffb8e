package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Headers maps header names to a single textual value. Multi-valued headers
// are joined with ", " before they reach this form.
type Headers map[string]string

// UnmarshalJSON accepts an object or a JSON string that itself encodes an
// object.
func (h *Headers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var embedded string
		if err := json.Unmarshal(data, &embedded); err != nil {
			return err
		}
		if embedded == "" {
			*h = Headers{}
			return nil
		}
		data = []byte(embedded)
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	*h = m
	return nil
}

// Request is an HTTP request crossing the boundary. It is both the process
// input handed to the handler and the payload of a fetch call.
type Request struct {
	Method  string  `json:"method"`
	URL     string  `json:"url"`
	Headers Headers `json:"headers"`
	Body    Body    `json:"body,omitempty"`

	// Fetch options passed through to the guest Request object. Redirect also
	// selects the host redirect policy ("follow", "manual" or "error").
	Redirect       string `json:"redirect,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Credentials    string `json:"credentials,omitempty"`
	Cache          string `json:"cache,omitempty"`
	Integrity      string `json:"integrity,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	ReferrerPolicy string `json:"referrerPolicy,omitempty"`
}

// Response is an HTTP response returned by the host to a fetch call.
type Response struct {
	Status  int       `json:"status"`
	Headers Headers   `json:"headers"`
	Body    ByteArray `json:"body,omitempty"`
}

// Result is the reply envelope of a fetch call: exactly one of Ok and Err is set.
type Result struct {
	Ok  *Response
	Err *RequestError
}

// MarshalJSON encodes {"Ok":...} or {"Err":...}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Err *RequestError `json:"Err"`
		}{r.Err})
	}
	if r.Ok == nil {
		return nil, fmt.Errorf("result has neither Ok nor Err")
	}
	return json.Marshal(struct {
		Ok *Response `json:"Ok"`
	}{r.Ok})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	var env struct {
		Ok  *Response     `json:"Ok"`
		Err *RequestError `json:"Err"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if (env.Ok == nil) == (env.Err == nil) {
		return fmt.Errorf("result must carry exactly one of Ok and Err")
	}
	r.Ok, r.Err = env.Ok, env.Err
	return nil
}

// Success wraps a response into a Result.
func Success(resp *Response) Result {
	return Result{Ok: resp}
}

// Failure wraps an error into a Result.
func Failure(err *RequestError) Result {
	return Result{Err: err}
}
