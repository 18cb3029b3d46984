// Package engine runs bot scripts in an embedded JavaScript interpreter.
//
// Each ExecuteBot call builds a fresh goja runtime, installs the host
// capabilities, evaluates the script, calls processNotification once and
// discards the runtime. Nothing the script defines survives the call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/infrastructure/timeout"
	"github.com/doeshing/replybot/internal/ports"
)

// State is the engine lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateExecuting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const scriptName = "bot.js"

// Options bounds each execution.
type Options struct {
	Timeout          time.Duration
	MaxFetchRequests int
}

// Engine implements ports.BotEngine.
type Engine struct {
	backend ports.HostAPI
	logger  ports.Logger
	opts    Options

	mu       sync.Mutex
	state    State
	inflight int
}

// New creates an uninitialized engine bound to the shared host backend.
func New(backend ports.HostAPI, logger ports.Logger, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = domain.DefaultExecutionTimeout
	}
	if opts.MaxFetchRequests <= 0 {
		opts.MaxFetchRequests = domain.DefaultMaxFetchRequests
	}
	return &Engine{backend: backend, logger: logger, opts: opts}
}

// Initialize moves the engine to Ready.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateClosed:
		return &domain.BotError{Code: domain.EEngineState, Message: "engine is closed"}
	case StateUninitialized:
		if e.backend == nil {
			return &domain.BotError{Code: domain.EEngineState, Message: "engine has no host backend"}
		}
		e.state = StateReady
	}
	return nil
}

// Close tears the engine down. Executions already running finish normally.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.state = StateClosed
	e.mu.Unlock()
	return nil
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateReady && e.inflight > 0 {
		return StateExecuting
	}
	return e.state
}

// ExecuteBot evaluates source and returns processNotification's result as JSON.
// The whole call, including host HTTP requests, is bounded by Options.Timeout.
func (e *Engine) ExecuteBot(ctx context.Context, source string, notification domain.NotificationSnapshot, sink ports.DiagnosticsSink) (string, error) {
	if err := e.enter(); err != nil {
		return "", err
	}
	defer e.leave()

	started := time.Now()
	result, err := timeout.ExecuteWithTimeout(ctx, e.opts.Timeout, func(taskCtx context.Context) (string, error) {
		return e.run(taskCtx, source, notification, sink)
	})
	elapsed := time.Since(started)

	if err != nil {
		record(sink, "error", errorDetail(err))
		if e.logger != nil {
			e.logger.Warn("bot execution failed", map[string]interface{}{
				"code":        string(domain.CodeOf(err)),
				"duration_ms": elapsed.Milliseconds(),
			})
		}
		return "", err
	}
	record(sink, "debug", fmt.Sprintf("bot finished in %dms: %s", elapsed.Milliseconds(), result))
	return result, nil
}

func (e *Engine) enter() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateReady {
		return &domain.BotError{
			Code:    domain.EEngineState,
			Message: fmt.Sprintf("engine is %s, not ready", e.state),
		}
	}
	e.inflight++
	return nil
}

func (e *Engine) leave() {
	e.mu.Lock()
	e.inflight--
	e.mu.Unlock()
}

// run owns one runtime for exactly one call.
func (e *Engine) run(ctx context.Context, source string, notification domain.NotificationSnapshot, sink ports.DiagnosticsSink) (string, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt("execution deadline exceeded")
	})
	defer stop()

	if err := installBridge(ctx, vm, e.backend, sink, e.opts.MaxFetchRequests); err != nil {
		return "", fmt.Errorf("install host api: %w", err)
	}

	if _, err := vm.RunScript(scriptName, source); err != nil {
		return "", e.guestFailure("bot script failed to evaluate", err)
	}

	entry, ok := goja.AssertFunction(vm.Get(domain.EntryPoint))
	if !ok {
		return "", domain.NewExecutionFailed(
			fmt.Sprintf("bot does not define a callable %s function", domain.EntryPoint), "", "")
	}

	payload, err := notification.GuestJSON()
	if err != nil {
		return "", domain.NewExecutionFailed("serialize notification", err.Error(), "")
	}
	arg, err := jsonParse(vm, payload)
	if err != nil {
		return "", e.guestFailure("parse notification inside runtime", err)
	}

	record(sink, "debug", "calling "+domain.EntryPoint)
	value, err := entry(goja.Undefined(), arg)
	if err != nil {
		return "", e.guestFailure(domain.EntryPoint+" threw", err)
	}

	value, err = settle(value)
	if err != nil {
		return "", e.guestFailure(domain.EntryPoint+" rejected", err)
	}
	return serialize(vm, value)
}

// settle unwraps a promise returned by an async entry point. The job queue
// has already been drained when the call returned.
func settle(value goja.Value) (goja.Value, error) {
	if value == nil {
		return value, nil
	}
	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		return value, nil
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		return nil, &rejection{reason: promise.Result()}
	default:
		return nil, errors.New("promise returned by entry point never settled")
	}
}

// serialize turns the entry point's return value into JSON text.
func serialize(vm *goja.Runtime, value goja.Value) (string, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", domain.NewExecutionFailed(domain.EntryPoint+" returned no result", "", "")
	}
	if _, isObject := value.(*goja.Object); !isObject {
		return value.String(), nil
	}
	out, err := jsonStringify(vm, value)
	if err != nil {
		var botErr *domain.BotError
		if errors.As(err, &botErr) {
			return "", err
		}
		return "", domain.NewExecutionFailed("serialize bot result", err.Error(), "")
	}
	return out, nil
}

func jsonParse(vm *goja.Runtime, text string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	return parse(goja.Undefined(), vm.ToValue(text))
}

func jsonStringify(vm *goja.Runtime, value goja.Value) (string, error) {
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return "", errors.New("JSON.stringify unavailable")
	}
	out, err := stringify(goja.Undefined(), value)
	if err != nil {
		return "", err
	}
	if out == nil || goja.IsUndefined(out) {
		return "", domain.NewExecutionFailed("bot result is not serializable", "", "")
	}
	return out.String(), nil
}

type rejection struct {
	reason goja.Value
}

func (r *rejection) Error() string {
	if r.reason == nil {
		return "undefined"
	}
	return r.reason.String()
}

// guestFailure converts interpreter errors into BotErrors, keeping the
// guest's message and stack for diagnostics.
func (e *Engine) guestFailure(msg string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return domain.NewExecutionTimeout(e.opts.Timeout)
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		guestErr, stack := describe(exception.Value())
		if stack == "" {
			stack = exception.String()
		}
		return domain.NewExecutionFailed(msg, guestErr, stack)
	}

	var rejected *rejection
	if errors.As(err, &rejected) {
		guestErr, stack := describe(rejected.reason)
		return domain.NewExecutionFailed(msg, guestErr, stack)
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return domain.NewExecutionFailed(msg, syntax.Error(), "")
	}

	var botErr *domain.BotError
	if errors.As(err, &botErr) {
		return botErr
	}
	return domain.NewExecutionFailed(msg, err.Error(), "")
}

// describe extracts the message and stack from a thrown guest value.
func describe(value goja.Value) (string, string) {
	if value == nil {
		return "", ""
	}
	obj, ok := value.(*goja.Object)
	if !ok {
		return value.String(), ""
	}
	message := value.String()
	var stack string
	if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) && !goja.IsNull(s) {
		stack = s.String()
	}
	return message, stack
}

func errorDetail(err error) string {
	var botErr *domain.BotError
	if errors.As(err, &botErr) {
		return botErr.DetailedMessage()
	}
	return err.Error()
}

func record(sink ports.DiagnosticsSink, level, message string) {
	if sink != nil {
		sink.Record(level, message)
	}
}

var _ ports.BotEngine = (*Engine)(nil)
