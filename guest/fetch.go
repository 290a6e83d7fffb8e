package guest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/wippyai/edge-runtime/wire"
)

func (r *Runtime) installFetcher() error {
	return r.vm.Set("___fetcher", func(call goja.FunctionCall) goja.Value {
		r.checkArity("___fetcher", call, 1)
		req, err := r.coerceRequest(call.Argument(0))
		if err != nil {
			panic(r.vm.NewTypeError("___fetcher: " + err.Error()))
		}
		result := r.Fetch(req)
		if result.Err != nil {
			panic(r.requestErrorValue(result.Err))
		}
		return r.responseValue(result.Ok)
	})
}

// Fetch sends req through the transport. Transport and decoding failures are
// reported as Serial or Unknown request errors, never dropped.
func (r *Runtime) Fetch(req wire.Request) wire.Result {
	payload, err := json.Marshal(req)
	if err != nil {
		return wire.Failure(wire.NewRequestError(wire.SerialKind, req.URL, err.Error()))
	}
	reply, err := r.opts.Transport.RoundTrip(payload)
	if err != nil {
		return wire.Failure(wire.NewRequestError(wire.UnknownKind, req.URL, err.Error()))
	}
	var result wire.Result
	if err := json.Unmarshal(reply, &result); err != nil {
		return wire.Failure(wire.NewRequestError(wire.SerialKind, req.URL, "decode reply: "+err.Error()))
	}
	return result
}

// coerceRequest reads the fetch argument object into a wire.Request.
func (r *Runtime) coerceRequest(v goja.Value) (wire.Request, error) {
	var req wire.Request
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return req, fmt.Errorf("request must be an object")
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return req, fmt.Errorf("request must be an object")
	}

	req.Method = "GET"
	if m := obj.Get("method"); present(m) {
		req.Method = strings.ToUpper(m.String())
	}
	u := obj.Get("url")
	if !present(u) {
		return req, fmt.Errorf("url is required")
	}
	req.URL = u.String()

	headers, err := r.coerceHeaders(obj.Get("headers"))
	if err != nil {
		return req, err
	}
	req.Headers = headers

	body, err := r.coerceBody(obj.Get("body"), obj.Get("bodyEncoding"))
	if err != nil {
		return req, err
	}
	req.Body = body

	for _, opt := range []struct {
		name string
		dst  *string
	}{
		{"redirect", &req.Redirect},
		{"mode", &req.Mode},
		{"credentials", &req.Credentials},
		{"cache", &req.Cache},
		{"integrity", &req.Integrity},
		{"referrer", &req.Referrer},
		{"referrerPolicy", &req.ReferrerPolicy},
	} {
		if val := obj.Get(opt.name); present(val) {
			*opt.dst = val.String()
		}
	}
	return req, nil
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func (r *Runtime) coerceHeaders(v goja.Value) (wire.Headers, error) {
	headers := wire.Headers{}
	if !present(v) {
		return headers, nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		s := v.String()
		if s == "" {
			return headers, nil
		}
		if err := json.Unmarshal([]byte(s), &headers); err != nil {
			return nil, fmt.Errorf("headers: %w", err)
		}
		return headers, nil
	}
	for _, k := range obj.Keys() {
		val := obj.Get(k)
		if !present(val) {
			continue
		}
		headers[k] = val.String()
	}
	return headers, nil
}

// coerceBody accepts a string, an ArrayBuffer or view, an array of byte
// values, or a decimal byte list string when encoding is "bytes".
func (r *Runtime) coerceBody(v, encoding goja.Value) (wire.Body, error) {
	if !present(v) {
		return nil, nil
	}
	if data, ok := r.bufferBytes(v); ok {
		return append(wire.Body{}, data...), nil
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == "Array" {
		var values []int
		if err := r.vm.ExportTo(v, &values); err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		out := make(wire.Body, len(values))
		for i, b := range values {
			if b < 0 || b > 255 {
				return nil, fmt.Errorf("body byte %d out of range: %d", i, b)
			}
			out[i] = byte(b)
		}
		return out, nil
	}
	s := v.String()
	if present(encoding) && encoding.String() == "bytes" {
		data, err := wire.ParseByteList(s)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		return data, nil
	}
	return wire.Body(s), nil
}

// responseValue converts a fetch reply into {status, headers, body}.
func (r *Runtime) responseValue(resp *wire.Response) goja.Value {
	obj := r.vm.NewObject()
	_ = obj.Set("status", resp.Status)
	headers := r.vm.NewObject()
	for _, k := range sortedKeys(resp.Headers) {
		_ = headers.Set(k, resp.Headers[k])
	}
	_ = obj.Set("headers", headers)
	body := resp.Body
	if body == nil {
		body = wire.ByteArray{}
	}
	_ = obj.Set("body", r.vm.NewArrayBuffer([]byte(body)))
	return obj
}

// requestErrorValue builds the Error thrown for a failed fetch. The
// polyfill's RequestError class is used when the script environment has one.
func (r *Runtime) requestErrorValue(e *wire.RequestError) *goja.Object {
	ctor, ok := goja.AssertConstructor(r.vm.Get("RequestError"))
	if !ok {
		ctor, ok = goja.AssertConstructor(r.vm.Get("Error"))
	}
	if !ok {
		return r.vm.NewGoError(e)
	}
	obj, err := ctor(nil, r.vm.ToValue(e.Message), r.vm.ToValue(e.Kind.Name))
	if err != nil {
		return r.vm.NewGoError(e)
	}
	_ = obj.Set("name", "RequestError")
	_ = obj.Set("kind", e.Kind.Name)
	if e.Kind.Name == wire.KindStatus {
		_ = obj.Set("status", e.Kind.Code)
	}
	if e.URL != nil {
		_ = obj.Set("url", *e.URL)
	}
	return obj
}
