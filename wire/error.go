package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Error kind names.
const (
	KindSerial   = "Serial"
	KindRequest  = "Request"
	KindRedirect = "Redirect"
	KindStatus   = "Status"
	KindBody     = "Body"
	KindTimeout  = "Timeout"
	KindUnknown  = "Unknown"
)

// ErrorKind classifies a fetch failure. Code is only meaningful for Status.
type ErrorKind struct {
	Name string
	Code int
}

var (
	SerialKind   = ErrorKind{Name: KindSerial}
	RequestKind  = ErrorKind{Name: KindRequest}
	RedirectKind = ErrorKind{Name: KindRedirect}
	BodyKind     = ErrorKind{Name: KindBody}
	TimeoutKind  = ErrorKind{Name: KindTimeout}
	UnknownKind  = ErrorKind{Name: KindUnknown}
)

// StatusKind returns the kind for a non-success HTTP status.
func StatusKind(code int) ErrorKind {
	return ErrorKind{Name: KindStatus, Code: code}
}

func (k ErrorKind) String() string {
	if k.Name == KindStatus {
		return fmt.Sprintf("Status(%d)", k.Code)
	}
	return k.Name
}

// MarshalJSON encodes unit kinds as a bare string and Status as {"Status":code}.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	if k.Name == KindStatus {
		return json.Marshal(map[string]int{KindStatus: k.Code})
	}
	if k.Name == "" {
		return json.Marshal(KindUnknown)
	}
	return json.Marshal(k.Name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *ErrorKind) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var m map[string]int
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("error kind: %w", err)
		}
		code, ok := m[KindStatus]
		if !ok || len(m) != 1 {
			return fmt.Errorf("error kind: unknown tagged kind %s", data)
		}
		*k = StatusKind(code)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("error kind: %w", err)
	}
	switch name {
	case KindSerial, KindRequest, KindRedirect, KindBody, KindTimeout, KindUnknown:
		*k = ErrorKind{Name: name}
	default:
		return fmt.Errorf("error kind: unknown kind %q", name)
	}
	return nil
}

// RequestError is a failed fetch as reported by the host.
type RequestError struct {
	Kind    ErrorKind `json:"kind"`
	URL     *string   `json:"url,omitempty"`
	Message string    `json:"message"`
}

// NewRequestError builds a RequestError; an empty url is omitted.
func NewRequestError(kind ErrorKind, url, message string) *RequestError {
	e := &RequestError{Kind: kind, Message: message}
	if url != "" {
		e.URL = &url
	}
	return e
}

func (e *RequestError) Error() string {
	if e.URL != nil {
		return fmt.Sprintf("%s error for %s: %s", e.Kind, *e.URL, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}
