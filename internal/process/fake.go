package process

import (
	"context"
	"strings"
	"sync"
)

// Call is a single invocation recorded by FakeRunner.
type Call struct {
	Name string
	Args []string
	Dir  string
}

// String renders the call as a command line.
func (c Call) String() string {
	return CommandLine(c.Name, c.Args)
}

// fakeRule scripts the FakeRunner's reaction to commands whose command
// line starts with prefix.
type fakeRule struct {
	prefix string
	result Result
	err    error
	effect func(Call)
}

// FakeRunner is a scripted Runner for tests. By default every command
// succeeds with empty output. Rules registered with Fail, Error and On are
// matched against the rendered command line by prefix, first match wins.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Call
	rules []fakeRule
}

// NewFakeRunner returns a FakeRunner on which every command succeeds.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Fail makes commands starting with prefix exit with code and stderr.
func (f *FakeRunner) Fail(prefix string, code int, stderr string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{prefix: prefix, result: Result{ExitCode: code, Stderr: stderr}})
	return f
}

// Error makes commands starting with prefix fail to start with err.
func (f *FakeRunner) Error(prefix string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{prefix: prefix, err: err})
	return f
}

// On runs effect for commands starting with prefix and then reports
// success with stdout. Effects simulate the filesystem side effects of the
// real tool (e.g. cargo writing Cargo.toml).
func (f *FakeRunner) On(prefix, stdout string, effect func(Call)) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{prefix: prefix, result: Result{Stdout: stdout}, effect: effect})
	return f
}

// Run records the call and applies the first matching rule.
func (f *FakeRunner) Run(_ context.Context, name string, args []string, opts RunOpts) (Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Dir: opts.Dir}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var matched *fakeRule
	line := call.String()
	for i := range f.rules {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			matched = &f.rules[i]
			break
		}
	}
	f.mu.Unlock()

	if matched == nil {
		return Result{}, nil
	}
	if matched.effect != nil {
		matched.effect(call)
	}
	return matched.result, matched.err
}

// Calls returns a copy of the recorded calls in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns the recorded calls rendered as command lines.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}
