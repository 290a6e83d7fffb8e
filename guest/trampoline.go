package guest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/wippyai/edge-runtime/wire"
)

// Global names the trampoline looks up after the script has evaluated.
const (
	HandlerName        = "handleRequest"
	WrapperHandlerName = "___handleResponse"
)

var (
	// ErrHandlerMissing means the script defines no callable handleRequest.
	ErrHandlerMissing = errors.New(`expected "handleRequest" function`)
	// ErrNotSettled means the job queue drained without the handler's
	// promise settling.
	ErrNotSettled = errors.New("handler promise did not settle")
)

// HandlerError is a rejection or exception raised by the handler.
type HandlerError struct {
	Name    string
	Message string
	Value   goja.Value
}

func (e *HandlerError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

// settlement is a one-shot holder for an invocation's outcome.
type settlement struct {
	mu    sync.Mutex
	done  bool
	value goja.Value
	err   *HandlerError
}

func (s *settlement) resolve(v goja.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done, s.value = true, v
}

func (s *settlement) reject(err *HandlerError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done, s.err = true, err
}

// take returns the outcome and clears the holder.
func (s *settlement) take() (goja.Value, *HandlerError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err, ok := s.value, s.err, s.done
	s.done, s.value, s.err = false, nil, nil
	return v, err, ok
}

// Outcome reports how an invocation finished.
type Outcome struct {
	// Output is the JSON written to the process output.
	Output []byte
	// Thenable is set when the handler returned a promise-like value.
	Thenable bool
	// Rejected carries the handler's rejection, already rendered in Output.
	Rejected *HandlerError
}

// Invoke calls the handler with req and serializes its settled result.
// ErrHandlerMissing and ErrNotSettled are fatal. A rejection becomes the
// output: an Error as {"error": message, "name": name} plus its own
// enumerable properties, any other value as its JSON.
func (r *Runtime) Invoke(req wire.Request) (*Outcome, error) {
	handler, err := r.lookupHandler()
	if err != nil {
		return nil, err
	}

	reqValue, err := r.requestValue(req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ret, err := handler(goja.Undefined(), reqValue)
	if err != nil {
		return r.rejected(r.handlerError(err))
	}

	then, thenable := r.thenOf(ret)
	if !thenable {
		out, err := r.stringify(ret)
		if err != nil {
			return nil, err
		}
		return &Outcome{Output: out}, nil
	}

	s := &settlement{}
	onResolve := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		s.resolve(call.Argument(0))
		return goja.Undefined()
	})
	onReject := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		s.reject(r.rejectionError(call.Argument(0)))
		return goja.Undefined()
	})
	if _, err := then(ret, onResolve, onReject); err != nil {
		return r.rejected(r.handlerError(err))
	}
	if err := r.drain(); err != nil {
		return nil, fmt.Errorf("drain job queue: %w", err)
	}

	value, rejection, ok := s.take()
	if !ok {
		return nil, ErrNotSettled
	}
	if rejection != nil {
		out, err := r.rejected(rejection)
		if out != nil {
			out.Thenable = true
		}
		return out, err
	}
	out, err := r.stringify(value)
	if err != nil {
		return nil, err
	}
	return &Outcome{Output: out, Thenable: true}, nil
}

func (r *Runtime) lookupHandler() (goja.Callable, error) {
	if _, ok := goja.AssertFunction(r.vm.Get(HandlerName)); !ok {
		return nil, ErrHandlerMissing
	}
	if wrapper, ok := goja.AssertFunction(r.vm.Get(WrapperHandlerName)); ok {
		return wrapper, nil
	}
	handler, _ := goja.AssertFunction(r.vm.Get(HandlerName))
	return handler, nil
}

func (r *Runtime) thenOf(v goja.Value) (goja.Callable, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	return goja.AssertFunction(obj.Get("then"))
}

// requestValue builds the handler argument: a polyfill Request when the
// constructor exists, otherwise a plain object with the wire fields.
func (r *Runtime) requestValue(req wire.Request) (goja.Value, error) {
	init := r.vm.NewObject()
	method := req.Method
	if method == "" {
		method = "GET"
	}
	_ = init.Set("method", method)
	headers := r.vm.NewObject()
	for _, k := range sortedKeys(req.Headers) {
		_ = headers.Set(k, req.Headers[k])
	}
	_ = init.Set("headers", headers)
	if req.Body != nil {
		_ = init.Set("body", r.vm.NewArrayBuffer(append([]byte(nil), req.Body...)))
	}
	for name, val := range map[string]string{
		"redirect":       req.Redirect,
		"mode":           req.Mode,
		"credentials":    req.Credentials,
		"cache":          req.Cache,
		"integrity":      req.Integrity,
		"referrer":       req.Referrer,
		"referrerPolicy": req.ReferrerPolicy,
	} {
		if val != "" {
			_ = init.Set(name, val)
		}
	}

	var value goja.Value
	if ctor, ok := goja.AssertConstructor(r.vm.Get("Request")); ok {
		obj, err := ctor(nil, r.vm.ToValue(req.URL), init)
		if err != nil {
			return nil, err
		}
		value = obj
	} else {
		_ = init.Set("url", req.URL)
		value = init
	}
	if err := r.vm.Set("___request", value); err != nil {
		return nil, err
	}
	return value, nil
}

func (r *Runtime) handlerError(err error) *HandlerError {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return r.rejectionError(ex.Value())
	}
	return &HandlerError{Name: "Error", Message: err.Error()}
}

// rejectionError converts a thrown or rejected value.
func (r *Runtime) rejectionError(v goja.Value) *HandlerError {
	he := &HandlerError{Value: v}
	if r.isError(v) {
		obj := v.(*goja.Object)
		if name := obj.Get("name"); present(name) {
			he.Name = name.String()
		}
		if msg := obj.Get("message"); present(msg) {
			he.Message = msg.String()
		}
		return he
	}
	if !present(v) {
		return he
	}
	if _, ok := v.(*goja.Object); ok {
		if out, err := r.stringify(v); err == nil {
			he.Message = string(out)
			return he
		}
	}
	he.Message = v.String()
	return he
}

func (r *Runtime) isError(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	ctor, ok := r.vm.Get("Error").(*goja.Object)
	return ok && r.vm.InstanceOf(obj, ctor)
}

func (r *Runtime) rejected(he *HandlerError) (*Outcome, error) {
	if he.Value != nil && !r.isError(he.Value) {
		out, err := r.stringify(he.Value)
		if err != nil {
			return nil, err
		}
		return &Outcome{Output: out, Rejected: he}, nil
	}

	body := r.vm.NewObject()
	_ = body.Set("error", he.Message)
	_ = body.Set("name", he.Name)
	if obj, ok := he.Value.(*goja.Object); ok {
		for _, key := range obj.Keys() {
			switch key {
			case "error", "name", "message", "stack":
				continue
			}
			_ = body.Set(key, obj.Get(key))
		}
	}
	out, err := r.stringify(body)
	if err != nil {
		return nil, err
	}
	return &Outcome{Output: out, Rejected: he}, nil
}

// stringify applies JSON.stringify with ArrayBuffers and views rendered as
// byte arrays.
func (r *Runtime) stringify(v goja.Value) ([]byte, error) {
	jsonObj := r.vm.Get("JSON").ToObject(r.vm)
	fn, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return nil, errors.New("JSON.stringify is not callable")
	}
	replacer := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		val := call.Argument(1)
		data, ok := r.bufferBytes(val)
		if !ok {
			return val
		}
		items := make([]any, len(data))
		for i, b := range data {
			items[i] = int64(b)
		}
		return r.vm.NewArray(items...)
	})
	out, err := fn(jsonObj, v, replacer)
	if err != nil {
		return nil, fmt.Errorf("serialize response: %w", err)
	}
	if goja.IsUndefined(out) {
		return []byte("null"), nil
	}
	return []byte(out.String()), nil
}
