package engine

import (
	"context"

	"github.com/dop251/goja"

	"github.com/doeshing/replybot/internal/ports"
)

// localStorage mirrors the Web Storage API over the bot storage namespace.
// Method properties are read-only; other properties read and write items.
type localStorage struct {
	ctx     context.Context
	vm      *goja.Runtime
	backend ports.HostAPI
	methods map[string]goja.Value
}

func newLocalStorage(ctx context.Context, vm *goja.Runtime, backend ports.HostAPI) *localStorage {
	ls := &localStorage{ctx: ctx, vm: vm, backend: backend}
	ls.methods = map[string]goja.Value{
		"getItem": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return ls.item(argString(call, 0))
		}),
		"setItem": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			ls.must(backend.StorageSet(ctx, argString(call, 0), argString(call, 1)))
			return goja.Undefined()
		}),
		"removeItem": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			ls.must(backend.StorageRemove(ctx, argString(call, 0)))
			return goja.Undefined()
		}),
		"clear": vm.ToValue(func(goja.FunctionCall) goja.Value {
			ls.must(backend.StorageClear(ctx))
			return goja.Undefined()
		}),
		"key": vm.ToValue(func(call goja.FunctionCall) goja.Value {
			keys := ls.keys()
			i := call.Argument(0).ToInteger()
			if i < 0 || i >= int64(len(keys)) {
				return goja.Null()
			}
			return vm.ToValue(keys[i])
		}),
	}
	return ls
}

func (l *localStorage) Get(key string) goja.Value {
	if fn, ok := l.methods[key]; ok {
		return fn
	}
	if key == "length" {
		return l.vm.ToValue(len(l.keys()))
	}
	v := l.item(key)
	if goja.IsNull(v) {
		return nil
	}
	return v
}

func (l *localStorage) Set(key string, val goja.Value) bool {
	if _, ok := l.methods[key]; ok || key == "length" {
		panic(l.vm.NewTypeError("Cannot assign to read only property '%s' of localStorage", key))
	}
	l.must(l.backend.StorageSet(l.ctx, key, val.String()))
	return true
}

func (l *localStorage) Has(key string) bool {
	if _, ok := l.methods[key]; ok || key == "length" {
		return true
	}
	_, found, err := l.backend.StorageGet(l.ctx, key)
	l.must(err)
	return found
}

func (l *localStorage) Delete(key string) bool {
	if _, ok := l.methods[key]; ok || key == "length" {
		panic(l.vm.NewTypeError("Cannot delete property '%s' of localStorage", key))
	}
	l.must(l.backend.StorageRemove(l.ctx, key))
	return true
}

// Keys enumerates stored items only, like Object.keys(localStorage) in browsers.
func (l *localStorage) Keys() []string {
	return l.keys()
}

func (l *localStorage) item(key string) goja.Value {
	value, ok, err := l.backend.StorageGet(l.ctx, key)
	l.must(err)
	if !ok {
		return goja.Null()
	}
	return l.vm.ToValue(value)
}

func (l *localStorage) keys() []string {
	keys, err := l.backend.StorageKeys(l.ctx)
	l.must(err)
	return keys
}

func (l *localStorage) must(err error) {
	if err != nil {
		panic(l.vm.NewGoError(err))
	}
}
