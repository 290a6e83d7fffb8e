package guest

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dop251/goja"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrInvalidUTF8 is returned by DecodeUTF8 in fatal mode.
var ErrInvalidUTF8 = errors.New("the encoded data was not valid for encoding utf-8")

// DecodeUTF8 decodes data. A leading BOM is stripped unless ignoreBOM is set.
// Invalid sequences fail in fatal mode and become U+FFFD otherwise.
func DecodeUTF8(data []byte, fatal, ignoreBOM bool) (string, error) {
	if !ignoreBOM {
		data = bytes.TrimPrefix(data, utf8BOM)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	if fatal {
		return "", ErrInvalidUTF8
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// bufferBytes returns the bytes behind an ArrayBuffer or an ArrayBuffer view.
func (r *Runtime) bufferBytes(v goja.Value) ([]byte, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	if ab, ok := v.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes(), true
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	buf := obj.Get("buffer")
	if buf == nil {
		return nil, false
	}
	ab, ok := buf.Export().(goja.ArrayBuffer)
	if !ok {
		return nil, false
	}
	data := ab.Bytes()
	off := obj.Get("byteOffset").ToInteger()
	n := obj.Get("byteLength").ToInteger()
	if off < 0 || n < 0 || off+n > int64(len(data)) {
		return nil, false
	}
	return data[off : off+n], true
}

func (r *Runtime) installCodec() error {
	decode := func(call goja.FunctionCall) goja.Value {
		r.checkArity("___decodeUtf8BufferToString", call, 5)
		data, ok := r.bufferBytes(call.Argument(0))
		if !ok {
			panic(r.vm.NewTypeError("___decodeUtf8BufferToString: first argument must be an ArrayBuffer"))
		}
		off := call.Argument(1).ToInteger()
		n := call.Argument(2).ToInteger()
		if off < 0 || n < 0 || off+n > int64(len(data)) {
			panic(r.vm.NewTypeError(fmt.Sprintf(
				"___decodeUtf8BufferToString: range [%d, %d) outside buffer of %d bytes", off, off+n, len(data))))
		}
		s, err := DecodeUTF8(data[off:off+n], call.Argument(3).ToBoolean(), call.Argument(4).ToBoolean())
		if err != nil {
			panic(r.vm.NewTypeError(err.Error()))
		}
		return r.vm.ToValue(s)
	}

	encode := func(call goja.FunctionCall) goja.Value {
		r.checkArity("___encodeStringToUtf8Buffer", call, 1)
		return r.vm.ToValue(r.vm.NewArrayBuffer([]byte(call.Argument(0).String())))
	}

	if err := r.vm.Set("___decodeUtf8BufferToString", decode); err != nil {
		return err
	}
	return r.vm.Set("___encodeStringToUtf8Buffer", encode)
}
