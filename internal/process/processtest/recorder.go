// Package processtest provides a scripted VcsProcessRunner for tests.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	kurterrors "kurt.dev/kurt/internal/errors"
	"kurt.dev/kurt/internal/process"
)

// Call is one recorded invocation
type Call struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the call as a command line, e.g. "dolt merge --no-commit feature"
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Log collects calls from one or more recorders in invocation order
type Log struct {
	mu    sync.Mutex
	calls []Call
}

// NewLog creates an empty call log
func NewLog() *Log {
	return &Log{}
}

func (l *Log) add(c Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

// Calls returns a copy of the recorded calls
func (l *Log) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Lines returns every call rendered with Call.String
func (l *Log) Lines() []string {
	calls := l.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Response is a scripted result
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err, when set, is returned as-is instead of a CommandError
	Err error
}

type rule struct {
	prefix    []string
	resp      func(process.Command) Response
	remaining int // 0 means unlimited
}

// Recorder is a VcsProcessRunner that answers from scripted rules and records
// every call. Unmatched calls succeed with empty output.
type Recorder struct {
	name  string
	log   *Log
	mu    sync.Mutex
	rules []*rule
}

// NewRecorder creates a recorder for the named binary writing to log
func NewRecorder(name string, log *Log) *Recorder {
	if log == nil {
		log = NewLog()
	}
	return &Recorder{name: name, log: log}
}

// Log returns the call log the recorder writes to
func (r *Recorder) Log() *Log {
	return r.log
}

// On answers every call whose args start with prefix
func (r *Recorder) On(resp Response, prefix ...string) *Recorder {
	return r.add(prefix, 0, func(process.Command) Response { return resp })
}

// Once answers only the next call whose args start with prefix
func (r *Recorder) Once(resp Response, prefix ...string) *Recorder {
	return r.add(prefix, 1, func(process.Command) Response { return resp })
}

// OnFunc answers matching calls with fn
func (r *Recorder) OnFunc(fn func(process.Command) Response, prefix ...string) *Recorder {
	return r.add(prefix, 0, fn)
}

func (r *Recorder) add(prefix []string, times int, fn func(process.Command) Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &rule{prefix: prefix, resp: fn, remaining: times})
	return r
}

// Name returns the binary name
func (r *Recorder) Name() string {
	return r.name
}

// Run records the call and returns the first matching scripted response
func (r *Recorder) Run(_ context.Context, c process.Command) (*process.Result, error) {
	r.log.add(Call{Name: r.name, Args: append([]string(nil), c.Args...), Dir: c.Dir, Env: c.Env})

	resp := r.match(c)
	if resp.Err != nil {
		return &process.Result{ExitCode: -1}, resp.Err
	}
	res := &process.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, kurterrors.NewCommandError(r.name, c.Args, resp.Stdout, resp.Stderr, resp.ExitCode,
			fmt.Errorf("exit status %d", resp.ExitCode))
	}
	return res, nil
}

func (r *Recorder) match(c process.Command) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ru := range r.rules {
		if ru.remaining < 0 || !hasPrefix(c.Args, ru.prefix) {
			continue
		}
		if ru.remaining > 0 {
			ru.remaining--
			if ru.remaining == 0 {
				ru.remaining = -1
			}
		}
		return ru.resp(c)
	}
	return Response{}
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}
