package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/time/rate"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/ports"
)

// capabilities is the read-only Android object. Its methods are bound to the
// shared backend and the context of the current execution.
type capabilities struct {
	vm      *goja.Runtime
	methods map[string]goja.Value
}

// installBridge defines Android and localStorage on vm's global object.
func installBridge(ctx context.Context, vm *goja.Runtime, backend ports.HostAPI, sink ports.DiagnosticsSink, maxFetch int) error {
	// A zero rate never refills, so the burst is the whole per-execution budget.
	budget := rate.NewLimiter(0, maxFetch)

	fail := func(err error) {
		panic(vm.NewGoError(err))
	}

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"log": func(call goja.FunctionCall) goja.Value {
			level := argString(call, 0)
			message := argString(call, 1)
			backend.Log(level, message)
			record(sink, normalizeLevel(level), message)
			return goja.Undefined()
		},
		"storageGet": func(call goja.FunctionCall) goja.Value {
			value, ok, err := backend.StorageGet(ctx, argString(call, 0))
			if err != nil {
				fail(err)
			}
			if !ok {
				return goja.Null()
			}
			return vm.ToValue(value)
		},
		"storageSet": func(call goja.FunctionCall) goja.Value {
			if err := backend.StorageSet(ctx, argString(call, 0), argString(call, 1)); err != nil {
				fail(err)
			}
			return goja.Undefined()
		},
		"storageRemove": func(call goja.FunctionCall) goja.Value {
			if err := backend.StorageRemove(ctx, argString(call, 0)); err != nil {
				fail(err)
			}
			return goja.Undefined()
		},
		"storageKeys": func(goja.FunctionCall) goja.Value {
			keys, err := backend.StorageKeys(ctx)
			if err != nil {
				fail(err)
			}
			items := make([]interface{}, len(keys))
			for i, k := range keys {
				items[i] = k
			}
			return vm.NewArray(items...)
		},
		"httpRequest": func(call goja.FunctionCall) goja.Value {
			opts, err := requestOptions(vm, call.Argument(0))
			if err != nil {
				panic(vm.NewTypeError("%s", err.Error()))
			}
			// Refused URLs never reach the network, so they cost no budget.
			if err := domain.RequireHTTPS(opts.URL); err != nil {
				fail(err)
			}
			if !budget.Allow() {
				fail(fmt.Errorf("httpRequest limit of %d calls per execution exceeded", maxFetch))
			}
			record(sink, "debug", fmt.Sprintf("httpRequest %s %s", opts.Method, opts.URL))
			body, err := backend.HTTPRequest(ctx, opts)
			if err != nil {
				fail(err)
			}
			return vm.ToValue(body)
		},
		"getCurrentTime": func(goja.FunctionCall) goja.Value {
			return vm.ToValue(backend.CurrentTime())
		},
		"getAppName": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(backend.AppName(argString(call, 0)))
		},
	}

	android := &capabilities{vm: vm, methods: make(map[string]goja.Value, len(methods))}
	for name, fn := range methods {
		android.methods[name] = vm.ToValue(fn)
	}
	if err := vm.Set("Android", vm.NewDynamicObject(android)); err != nil {
		return err
	}

	local := newLocalStorage(ctx, vm, backend)
	return vm.Set("localStorage", vm.NewDynamicObject(local))
}

func (c *capabilities) Get(key string) goja.Value {
	if fn, ok := c.methods[key]; ok {
		return fn
	}
	return nil
}

func (c *capabilities) Set(key string, _ goja.Value) bool {
	panic(c.vm.NewTypeError("Cannot assign to read only property '%s' of Android", key))
}

func (c *capabilities) Has(key string) bool {
	_, ok := c.methods[key]
	return ok
}

func (c *capabilities) Delete(key string) bool {
	panic(c.vm.NewTypeError("Cannot delete property '%s' of Android", key))
}

func (c *capabilities) Keys() []string {
	keys := make([]string, 0, len(c.methods))
	for k := range c.methods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func requestOptions(vm *goja.Runtime, arg goja.Value) (domain.HTTPRequestOptions, error) {
	var opts domain.HTTPRequestOptions
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		return opts, fmt.Errorf("httpRequest requires an options object")
	}
	obj, ok := arg.(*goja.Object)
	if !ok {
		opts.URL = arg.String()
		opts.Method = "GET"
		return opts, nil
	}
	opts.URL = propString(obj, "url")
	opts.Method = strings.ToUpper(propString(obj, "method"))
	if opts.Method == "" {
		opts.Method = "GET"
	}
	opts.Body = propString(obj, "body")
	if headers := obj.Get("headers"); headers != nil && !goja.IsUndefined(headers) && !goja.IsNull(headers) {
		hobj := headers.ToObject(vm)
		opts.Headers = make(map[string]string)
		for _, k := range hobj.Keys() {
			opts.Headers[k] = hobj.Get(k).String()
		}
	}
	if opts.URL == "" {
		return opts, fmt.Errorf("httpRequest requires a url")
	}
	return opts, nil
}

func propString(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func argString(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func normalizeLevel(level string) string {
	switch l := strings.ToLower(level); l {
	case "error", "warn", "info":
		return l
	default:
		return "debug"
	}
}
