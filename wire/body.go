package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Body is a request body. It decodes from a JSON string, an array of byte
// values or null, and encodes as a string when the bytes are valid UTF-8.
type Body []byte

// MarshalJSON implements json.Marshaler.
func (b Body) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	if utf8.Valid(b) {
		return json.Marshal(string(b))
	}
	return ByteArray(b).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Body) UnmarshalJSON(data []byte) error {
	raw, err := decodeBytes(data)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// ByteArray is a body that always encodes as an array of byte values.
type ByteArray []byte

// MarshalJSON implements json.Marshaler.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(c)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	raw, err := decodeBytes(data)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

func decodeBytes(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil, nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil
	case data[0] == '[':
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("body byte array: %w", err)
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("body byte %d out of range: %d", i, v)
			}
			out[i] = byte(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("body must be a string, byte array or null, got %.16s", data)
	}
}

// ParseByteList decodes the comma separated decimal byte list form
// ("72,105") used by older bridge scripts for binary bodies.
func ParseByteList(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]byte, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("byte list entry %d: %w", i, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}
