package eventjs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNoRegister = errors.New("eventjs: script did not call register()")
var ErrHookTimeout = errors.New("eventjs: js hook timeout")

// Module is one user script loaded into its own goja runtime. Scripts call
//
//	register({ name, filter(event, ctx), transform(event, ctx), init, shutdown, onError })
//
// filter returns a truthy value to keep the event; transform returns the
// (possibly modified) event, a string used as the new message, or null to drop
// it. Only message, level and details can be rewritten.
type Module struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	opts   options
	config *goja.Object

	scriptPath string
	name       string

	filterFn    goja.Callable
	transformFn goja.Callable
	initFn      goja.Callable
	shutdownFn  goja.Callable
	onErrorFn   goja.Callable

	state *goja.Object
	stats Stats
}

var _ monitor.Filter = (*Module)(nil)

type options struct {
	hookTimeout time.Duration
}

func ParseOptions(opts Options) (options, error) {
	var out options
	if opts.HookTimeout != "" {
		d, err := time.ParseDuration(opts.HookTimeout)
		if err != nil {
			return options{}, errors.Wrap(err, "parse --js-timeout")
		}
		out.hookTimeout = d
	}
	return out, nil
}

func LoadFromFile(ctx context.Context, scriptPath string, opts Options) (*Module, error) {
	b, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, errors.Wrap(err, "read script")
	}
	return Load(ctx, scriptPath, string(b), opts)
}

// Load compiles and runs src; name is only used in error positions.
func Load(ctx context.Context, name string, src string, opts Options) (*Module, error) {
	_ = ctx

	parsedOpts, err := ParseOptions(opts)
	if err != nil {
		return nil, err
	}

	m := &Module{
		vm:         goja.New(),
		opts:       parsedOpts,
		scriptPath: name,
	}
	m.state = m.vm.NewObject()

	if err := m.vm.Set("register", func(config goja.Value) error {
		if m.config != nil {
			return errors.New("register() called more than once")
		}
		if isNullish(config) {
			return errors.New("register(config) requires a config object")
		}
		m.config = config.ToObject(m.vm)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "set register")
	}

	enableConsole(m.vm, name)

	if _, err := m.vm.RunScript("eventjs:helpers", helpersJS); err != nil {
		return nil, errors.Wrap(err, "load helpers")
	}
	if err := injectGoHelpers(m); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, errors.Wrap(err, "compile script")
	}
	if _, err := m.vm.RunProgram(prog); err != nil {
		return nil, errors.Wrap(err, "run script")
	}
	if m.config == nil {
		return nil, ErrNoRegister
	}

	nameVal := m.config.Get("name")
	if isNullish(nameVal) || strings.TrimSpace(nameVal.String()) == "" {
		return nil, errors.New("register({ name: string, ... }): name is required")
	}
	m.name = nameVal.String()

	if fn, ok := goja.AssertFunction(m.config.Get("filter")); ok {
		m.filterFn = fn
	}
	if fn, ok := goja.AssertFunction(m.config.Get("transform")); ok {
		m.transformFn = fn
	}
	if m.filterFn == nil && m.transformFn == nil {
		return nil, errors.New("register({ ... }): filter or transform is required")
	}
	if fn, ok := goja.AssertFunction(m.config.Get("init")); ok {
		m.initFn = fn
	}
	if fn, ok := goja.AssertFunction(m.config.Get("shutdown")); ok {
		m.shutdownFn = fn
	}
	if fn, ok := goja.AssertFunction(m.config.Get("onError")); ok {
		m.onErrorFn = fn
	}

	if m.initFn != nil {
		ctxObj := m.buildContext("init", "")
		if _, err := m.callHook(m.initFn, ctxObj); err != nil {
			m.stats.HookErrors++
			m.callOnError("init", err, goja.Undefined(), ctxObj)
		}
	}

	return m, nil
}

func (m *Module) Name() string { return m.name }

func (m *Module) ScriptPath() string { return m.scriptPath }

func (m *Module) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Module) Info() ModuleInfo {
	return ModuleInfo{
		Name:         m.name,
		HasFilter:    m.filterFn != nil,
		HasTransform: m.transformFn != nil,
		HasInit:      m.initFn != nil,
		HasShutdown:  m.shutdownFn != nil,
		HasOnError:   m.onErrorFn != nil,
	}
}

func (m *Module) Close(ctx context.Context) error {
	_ = ctx
	if m.shutdownFn == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ctxObj := m.buildContext("shutdown", "")
	if _, err := m.callHook(m.shutdownFn, ctxObj); err != nil {
		m.stats.HookErrors++
		m.callOnError("shutdown", err, goja.Undefined(), ctxObj)
	}
	return nil
}

// Apply runs filter then transform on ev. The returned bool is false when the
// script dropped the event. Hook errors are returned and leave ev untouched.
func (m *Module) Apply(ctx context.Context, ev events.Event) (events.Event, bool, error) {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.EventsSeen++
	evObj := m.eventObject(ev)

	if m.filterFn != nil {
		ctxObj := m.buildContext("filter", ev.Origin.PipelineID)
		keep, err := m.callHook(m.filterFn, evObj, ctxObj)
		if err != nil {
			m.stats.HookErrors++
			m.callOnError("filter", err, evObj, ctxObj)
			return ev, true, errors.Wrapf(err, "%s: filter", m.name)
		}
		if !keep.ToBoolean() {
			m.stats.EventsDropped++
			return ev, false, nil
		}
	}

	if m.transformFn == nil {
		return ev, true, nil
	}

	ctxObj := m.buildContext("transform", ev.Origin.PipelineID)
	out, err := m.callHook(m.transformFn, evObj, ctxObj)
	if err != nil {
		m.stats.HookErrors++
		m.callOnError("transform", err, evObj, ctxObj)
		return ev, true, errors.Wrapf(err, "%s: transform", m.name)
	}
	next, keep, err := m.applyResult(ev, out)
	if err != nil {
		m.stats.HookErrors++
		m.callOnError("transform", err, out, ctxObj)
		return ev, true, errors.Wrapf(err, "%s: transform", m.name)
	}
	if !keep {
		m.stats.EventsDropped++
		return ev, false, nil
	}
	if next.Message != ev.Message || next.Level != ev.Level || string(next.Details) != string(ev.Details) {
		m.stats.EventsChanged++
	}
	return next, true, nil
}

func (m *Module) eventObject(ev events.Event) goja.Value {
	obj := map[string]any{
		"id":             ev.ID,
		"timestamp":      ev.RawTimestamp,
		"level":          string(ev.Level),
		"event_type":     ev.TypeName(),
		"message":        ev.Message,
		"maturity_level": ev.MaturityLevel,
		"origin":         decodeRaw(ev.RawOrigin),
		"details":        decodeRaw(ev.Details),
		"error":          decodeRaw(ev.Error),
		"hasError":       ev.HasError(),
	}
	return m.vm.ToValue(obj)
}

func decodeRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func (m *Module) applyResult(ev events.Event, v goja.Value) (events.Event, bool, error) {
	if isNullish(v) {
		return ev, false, nil
	}
	if s, ok := v.Export().(string); ok {
		ev.Message = s
		return ev, true, nil
	}
	if _, ok := v.(*goja.Object); !ok {
		return ev, false, errors.Errorf("transform must return an object, a string or null, got %T", v.Export())
	}
	exported, ok := v.Export().(map[string]any)
	if !ok {
		return ev, false, errors.Errorf("transform must return an object, got %T", v.Export())
	}

	if msg, ok := exported["message"]; ok && msg != nil {
		ev.Message = fmt.Sprint(msg)
	}
	if lvl, ok := exported["level"]; ok && lvl != nil {
		ev.RawLevel = fmt.Sprint(lvl)
		ev.Level = events.ParseLevel(ev.RawLevel)
	}
	if details, ok := exported["details"]; ok && !reflect.DeepEqual(details, decodeRaw(ev.Details)) {
		b, err := json.Marshal(details)
		if err != nil {
			return ev, false, errors.Wrap(err, "encode details")
		}
		ev.Details = b
	}
	return ev, true, nil
}

func (m *Module) buildContext(hook string, pipelineID string) *goja.Object {
	obj := m.vm.NewObject()
	_ = obj.Set("hook", hook)
	_ = obj.Set("pipelineId", pipelineID)
	_ = obj.Set("state", m.state)
	_ = obj.Set("now", m.newDate(time.Now().UTC()))
	return obj
}

func (m *Module) newDate(t time.Time) goja.Value {
	ctor := m.vm.Get("Date")
	o, err := m.vm.New(ctor, m.vm.ToValue(t.UnixMilli()))
	if err != nil {
		return goja.Undefined()
	}
	return o
}

func (m *Module) callHook(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	if fn == nil {
		return goja.Undefined(), nil
	}

	if timeout := m.opts.hookTimeout; timeout > 0 {
		defer m.vm.ClearInterrupt()
		timer := time.AfterFunc(timeout, func() {
			m.vm.Interrupt(ErrHookTimeout)
		})
		defer timer.Stop()
	}

	v, err := fn(goja.Undefined(), args...)
	if err != nil {
		if isInterruptedByTimeout(err) {
			m.stats.HookTimeouts++
		}
		return nil, err
	}
	return v, nil
}

func (m *Module) callOnError(hook string, err error, payload goja.Value, ctxObj *goja.Object) {
	if m.onErrorFn == nil {
		return
	}
	_ = ctxObj.Set("hook", hook)
	_, _ = m.onErrorFn(goja.Undefined(), m.vm.ToValue(err.Error()), payload, ctxObj)
}

// console output goes to the diagnostic log; stdout belongs to event lines.
func enableConsole(vm *goja.Runtime, script string) {
	obj := vm.NewObject()
	logf := func(level string) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "warn":
				log.Warn().Str("script", script).Msg(msg)
			case "error":
				log.Error().Str("script", script).Msg(msg)
			default:
				log.Info().Str("script", script).Msg(msg)
			}
			return goja.Undefined()
		}
	}
	_ = obj.Set("log", logf("info"))
	_ = obj.Set("warn", logf("warn"))
	_ = obj.Set("error", logf("error"))
	_ = vm.Set("console", obj)
}

func isNullish(v goja.Value) bool {
	if v == nil {
		return true
	}
	return goja.IsUndefined(v) || goja.IsNull(v)
}

func isInterruptedByTimeout(err error) bool {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok && errors.Is(v, ErrHookTimeout) {
			return true
		}
	}
	return errors.Is(err, ErrHookTimeout)
}

func injectGoHelpers(m *Module) error {
	dltVal := m.vm.Get("dlt")
	if isNullish(dltVal) {
		return errors.New("eventjs: helpers did not define globalThis.dlt")
	}
	dltObj := dltVal.ToObject(m.vm)

	// dlt.parseTimestamp(value) returns a Date or null. Accepts the feed's
	// RFC 3339 form and whatever dateparse understands.
	if err := dltObj.Set("parseTimestamp", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || isNullish(call.Arguments[0]) {
			return goja.Null()
		}
		t := events.ParseTimestamp(call.Arguments[0].String())
		if t.IsZero() {
			return goja.Null()
		}
		return m.newDate(t)
	}); err != nil {
		return errors.Wrap(err, "set dlt.parseTimestamp")
	}
	return nil
}
