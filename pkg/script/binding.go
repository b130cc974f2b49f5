package script

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/dshills/apiflow/pkg/env"
	"github.com/dshills/apiflow/pkg/snapshot"
)

// Binding is the capability surface exposed to sandboxed scripts: variable
// get/set/unset, request or response access, console logging and test
// registration. Every method writes into the run-local accumulator; nothing
// reaches shared state. Two concurrent runs over the same logical environment
// each hold their own binding and cannot observe each other's writes.
type Binding struct {
	vm  *goja.Runtime
	now func() time.Time

	envSnapshot env.Snapshot
	diff        *env.Diff
	vars        map[string]string

	logs  []LogEntry
	tests []TestResult

	// request is the mutable clone exposed to pre-scripts; nil for post runs.
	request *snapshot.RequestSnapshot
	// requestView is the read-only request exposed to post-scripts.
	requestView *snapshot.RequestSnapshot
	// response is the read-only view exposed to post-scripts; nil for pre runs.
	response *snapshot.ResponseSnapshot

	// interrupted flags a timeout interrupt observed inside a test callback,
	// so the sandbox classifies the run as timed out even if the script body
	// manages to finish.
	interrupted bool
}

// NewPreBinding builds the capability surface for a pre-request run. The
// request must already be a clone owned by the run.
func NewPreBinding(snap env.Snapshot, request *snapshot.RequestSnapshot) *Binding {
	b := newBinding(snap)
	b.request = request
	return b
}

// NewPostBinding builds the capability surface for a post-response run. The
// request is exposed read-only so scripts can correlate what was sent with
// what came back.
func NewPostBinding(snap env.Snapshot, request *snapshot.RequestSnapshot, response *snapshot.ResponseSnapshot) *Binding {
	b := newBinding(snap)
	b.requestView = request
	b.response = response
	return b
}

func newBinding(snap env.Snapshot) *Binding {
	return &Binding{
		now:         time.Now,
		envSnapshot: snap,
		diff:        env.NewDiff(),
		vars:        make(map[string]string),
	}
}

// install wires the binding into a fresh VM. Only the names set here (plus
// goja's ECMAScript built-ins such as JSON and Math) are visible to the
// script; there is no module loader, process, filesystem, network or timer
// surface to reach for.
func (b *Binding) install(vm *goja.Runtime) error {
	b.vm = vm

	if err := b.installConsole(vm); err != nil {
		return err
	}
	if err := b.installEnvironment(vm); err != nil {
		return err
	}
	if err := b.installVars(vm); err != nil {
		return err
	}
	if err := vm.Set("test", b.testFunc); err != nil {
		return err
	}
	if b.request != nil {
		if err := b.installRequest(vm); err != nil {
			return err
		}
	}
	if b.requestView != nil {
		if err := b.installRequestView(vm); err != nil {
			return err
		}
	}
	if b.response != nil {
		if err := b.installResponse(vm); err != nil {
			return err
		}
	}
	return nil
}

func (b *Binding) installConsole(vm *goja.Runtime) error {
	console := vm.NewObject()
	logFn := func(level LogLevel) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			b.appendLog(level, call.Arguments)
			return goja.Undefined()
		}
	}
	if err := console.Set("log", logFn(LevelLog)); err != nil {
		return err
	}
	if err := console.Set("info", logFn(LevelLog)); err != nil {
		return err
	}
	if err := console.Set("warn", logFn(LevelWarn)); err != nil {
		return err
	}
	if err := console.Set("error", logFn(LevelError)); err != nil {
		return err
	}
	return vm.Set("console", console)
}

func (b *Binding) appendLog(level LogLevel, args []goja.Value) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	b.logs = append(b.logs, LogEntry{
		Level:     level,
		Message:   strings.Join(parts, " "),
		Timestamp: b.now(),
	})
}

func (b *Binding) installEnvironment(vm *goja.Runtime) error {
	environment := vm.NewObject()

	if err := environment.Set("get", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		key := call.Arguments[0].String()
		if v, ok := b.diff.Resolve(b.envSnapshot, key); ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := environment.Set("has", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(false)
		}
		_, ok := b.diff.Resolve(b.envSnapshot, call.Arguments[0].String())
		return vm.ToValue(ok)
	}); err != nil {
		return err
	}

	if err := environment.Set("set", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		b.diff.RecordSet(call.Arguments[0].String(), valueToString(call.Arguments[1]))
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := environment.Set("unset", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		b.diff.RecordUnset(call.Arguments[0].String())
		return goja.Undefined()
	}); err != nil {
		return err
	}

	return vm.Set("environment", environment)
}

// installVars exposes the request-scoped variable layer. Unlike environment
// writes these never produce a diff for the environment owner; they surface
// only as VariableChanges on the result.
func (b *Binding) installVars(vm *goja.Runtime) error {
	vars := vm.NewObject()

	if err := vars.Set("get", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		if v, ok := b.vars[call.Arguments[0].String()]; ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := vars.Set("has", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(false)
		}
		_, ok := b.vars[call.Arguments[0].String()]
		return vm.ToValue(ok)
	}); err != nil {
		return err
	}

	if err := vars.Set("set", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		b.vars[call.Arguments[0].String()] = valueToString(call.Arguments[1])
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := vars.Set("unset", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		delete(b.vars, call.Arguments[0].String())
		return goja.Undefined()
	}); err != nil {
		return err
	}

	return vm.Set("vars", vars)
}

// testFunc implements test(name, fn). The callback runs immediately; a throw
// inside it marks the test failed and is swallowed at this boundary, never
// unwinding into the script body.
func (b *Binding) testFunc(call goja.FunctionCall) goja.Value {
	name := "unnamed test"
	if len(call.Arguments) > 0 {
		name = call.Arguments[0].String()
	}
	if len(call.Arguments) < 2 {
		b.tests = append(b.tests, TestResult{Name: name, Passed: false, Error: "test requires a callback function"})
		return goja.Undefined()
	}
	fn, ok := goja.AssertFunction(call.Arguments[1])
	if !ok {
		b.tests = append(b.tests, TestResult{Name: name, Passed: false, Error: "test requires a callback function"})
		return goja.Undefined()
	}

	_, err := fn(goja.Undefined())
	if err == nil {
		b.tests = append(b.tests, TestResult{Name: name, Passed: true})
		return goja.Undefined()
	}

	if _, isInterrupt := err.(*goja.InterruptedError); isInterrupt {
		// The time budget expired inside the callback. That is a run-level
		// timeout, not a test verdict.
		b.interrupted = true
		return goja.Undefined()
	}

	b.tests = append(b.tests, TestResult{Name: name, Passed: false, Error: exceptionMessage(err)})
	return goja.Undefined()
}

func (b *Binding) installRequest(vm *goja.Runtime) error {
	request := vm.NewObject()

	fields := []struct {
		name string
		get  func() string
		set  func(string)
	}{
		{"method", func() string { return b.request.Method }, func(v string) { b.request.Method = v }},
		{"url", func() string { return b.request.URL }, func(v string) { b.request.URL = v }},
		{"body", func() string { return b.request.Body }, func(v string) { b.request.Body = v }},
		{"bodyType", func() string { return b.request.BodyType }, func(v string) { b.request.BodyType = v }},
	}
	for _, f := range fields {
		get := f.get
		set := f.set
		getter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(get())
		})
		setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				set(valueToString(call.Arguments[0]))
			}
			return goja.Undefined()
		})
		if err := request.DefineAccessorProperty(f.name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return err
		}
	}

	if err := request.Set("getHeader", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		if v, ok := b.request.HeaderValue(call.Arguments[0].String()); ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := request.Set("setHeader", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		b.request.SetHeader(call.Arguments[0].String(), valueToString(call.Arguments[1]))
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := request.Set("removeHeader", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		b.request.RemoveHeader(call.Arguments[0].String())
		return goja.Undefined()
	}); err != nil {
		return err
	}

	return vm.Set("request", request)
}

// installRequestView exposes the sent request to post-scripts as plain data.
// Assignments land on the script-local object only; the snapshot is not
// writable from a post run.
func (b *Binding) installRequestView(vm *goja.Runtime) error {
	request := vm.NewObject()

	if err := request.Set("method", b.requestView.Method); err != nil {
		return err
	}
	if err := request.Set("url", b.requestView.URL); err != nil {
		return err
	}
	if err := request.Set("body", b.requestView.Body); err != nil {
		return err
	}
	if err := request.Set("bodyType", b.requestView.BodyType); err != nil {
		return err
	}
	if err := request.Set("getHeader", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		if v, ok := b.requestView.HeaderValue(call.Arguments[0].String()); ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	return vm.Set("request", request)
}

// installResponse exposes the response as plain data plus a json() helper.
// Scripts may assign to the JS object's properties; those writes land on the
// script-local object and are silently discarded — the underlying snapshot is
// never touched.
func (b *Binding) installResponse(vm *goja.Runtime) error {
	response := vm.NewObject()

	if err := response.Set("status", b.response.Status); err != nil {
		return err
	}
	if err := response.Set("statusText", b.response.StatusText); err != nil {
		return err
	}
	if err := response.Set("body", b.response.Body); err != nil {
		return err
	}
	if err := response.Set("time", b.response.TimeMS); err != nil {
		return err
	}
	if err := response.Set("size", b.response.SizeBytes); err != nil {
		return err
	}

	headers := vm.NewObject()
	for k, v := range b.response.Headers {
		if err := headers.Set(k, v); err != nil {
			return err
		}
	}
	if err := response.Set("headers", headers); err != nil {
		return err
	}

	if err := response.Set("getHeader", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		if v, ok := b.response.HeaderValue(call.Arguments[0].String()); ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	body := b.response.Body
	if err := response.Set("json", func(call goja.FunctionCall) goja.Value {
		var parsed interface{}
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			panic(vm.NewGoError(fmt.Errorf("response body is not valid JSON: %v", err)))
		}
		return vm.ToValue(parsed)
	}); err != nil {
		return err
	}

	return vm.Set("response", response)
}

// valueToString renders a script value the way environment storage expects:
// strings verbatim, objects and arrays as JSON, everything else via its
// default string form.
func valueToString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	exported := v.Export()
	switch ev := exported.(type) {
	case string:
		return ev
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(ev)
		if err != nil {
			return v.String()
		}
		return string(data)
	default:
		return v.String()
	}
}

// formatValue renders a console argument for the log message.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return valueToString(v)
}

// exceptionMessage extracts a human-readable message from a goja error.
func exceptionMessage(err error) string {
	if ex, ok := err.(*goja.Exception); ok {
		if val := ex.Value(); val != nil && !goja.IsUndefined(val) {
			return val.String()
		}
		return ex.Error()
	}
	return err.Error()
}
