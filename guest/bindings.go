package guest

import (
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
)

// checkArity throws a TypeError unless call carries exactly want arguments.
func (r *Runtime) checkArity(name string, call goja.FunctionCall, want int) {
	if got := len(call.Arguments); got != want {
		panic(r.vm.NewTypeError(arityMessage(name, want, got)))
	}
}

func arityMessage(name string, want, got int) string {
	plural := "s"
	if want == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s: expecting %d argument%s, received %d", name, want, plural, got)
}

func (r *Runtime) installConsole() error {
	console := r.vm.NewObject()
	out := r.printer(r.opts.Stdout)
	errOut := r.printer(r.opts.Stderr)
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"log":   out,
		"info":  out,
		"debug": out,
		"error": errOut,
		"warn":  errOut,
	} {
		if err := console.Set(name, fn); err != nil {
			return err
		}
	}
	return r.vm.Set("console", console)
}

// printer writes its arguments string-coerced, space separated and newline
// terminated.
func (r *Runtime) printer(w io.Writer) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (r *Runtime) installLogger() error {
	return r.vm.Set("___logger", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintf(r.opts.Log, "___logger(%s)\n", strings.Join(parts, ", "))
		return goja.Undefined()
	})
}

func (r *Runtime) installProcess() error {
	env := r.vm.NewObject()
	for _, k := range sortedKeys(r.opts.Env) {
		if err := env.Set(k, r.opts.Env[k]); err != nil {
			return err
		}
	}
	if err := r.freeze(env); err != nil {
		return err
	}

	process := r.vm.NewObject()
	if err := process.Set("env", env); err != nil {
		return err
	}
	return r.vm.Set("process", process)
}

func (r *Runtime) freeze(obj *goja.Object) error {
	object := r.vm.Get("Object").ToObject(r.vm)
	freeze, ok := goja.AssertFunction(object.Get("freeze"))
	if !ok {
		return fmt.Errorf("Object.freeze is not callable")
	}
	_, err := freeze(object, obj)
	return err
}
