// Package script provides the Lisp console of the viewer. It wraps
// zygomys in a sandboxed environment and exposes the session operations
// as builtins, so a recorded analysis can be replayed as a script.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// Target is the surface a script drives. The application implements it
// over the live session; tests substitute a recorder.
type Target interface {
	SetMarker(name string) error
	AddRegion(name string) error
	RemoveRegion(name string) error
	SetRegionColor(name, hex string) error
	AddRoi(name, path string) error
	RemoveRoi(name string) error
	SetRoiColor(name, hex string) error
	SetRoiVisible(name string, visible bool) error
	SetCursor(x, y, z int) error
	CursorPosition() [3]int
	Regions() []string
	Markers() ([]string, error)
	CameraPreset(name string) error
}

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter for console evaluation. It is
// safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	target  Target
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an engine driving the given target.
func NewEngine(target Target) *Engine {
	return &Engine{target: target, timeout: EvalTimeout}
}

// SetTimeout overrides the evaluation time limit. Non-positive values
// are ignored.
func (e *Engine) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	e.timeout = d
}

// Evaluate runs one console input and returns the printed form of its
// final value.
//
// Return semantics:
//   - On success: returns the result + nil errors + nil error
//   - On parse/eval failure: returns "" + eval errors + nil error
//   - On fatal failure (timeout, panic): returns "" + nil + error
func (e *Engine) Evaluate(source string) (string, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		out, evalErrs, err := e.evaluate(source)
		ch <- evalResult{output: out, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, e.timeout, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (string, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil, nil
	}

	// Sandbox mode prevents user code from touching the filesystem or
	// syscalls; the only side effects go through the registered builtins.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, e.target)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return "", parseZygomysError(err), nil
	}

	result, err := env.Run()
	if err != nil {
		return "", parseZygomysError(err), nil
	}
	if result == nil || result == zygo.SexpNull {
		return "", nil, nil
	}
	return result.SexpString(nil), nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError
// values, extracting line numbers where the message carries them.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
