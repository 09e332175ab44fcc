package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder implements Target and logs every call for assertions.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	pos    [3]int
	loaded []string
	fail   map[string]error
}

func newRecorder() *recorder {
	return &recorder{fail: make(map[string]error)}
}

func (r *recorder) record(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) SetMarker(name string) error {
	if err := r.fail["set-marker"]; err != nil {
		return err
	}
	r.record("set-marker %s", name)
	return nil
}

func (r *recorder) AddRegion(name string) error {
	if err := r.fail["add-region"]; err != nil {
		return err
	}
	r.record("add-region %s", name)
	r.mu.Lock()
	r.loaded = append(r.loaded, name)
	r.mu.Unlock()
	return nil
}

func (r *recorder) RemoveRegion(name string) error {
	r.record("remove-region %s", name)
	return nil
}

func (r *recorder) SetRegionColor(name, hex string) error {
	r.record("set-region-color %s %s", name, hex)
	return nil
}

func (r *recorder) AddRoi(name, path string) error {
	r.record("add-roi %s %s", name, path)
	return nil
}

func (r *recorder) RemoveRoi(name string) error {
	r.record("remove-roi %s", name)
	return nil
}

func (r *recorder) SetRoiColor(name, hex string) error {
	r.record("set-roi-color %s %s", name, hex)
	return nil
}

func (r *recorder) SetRoiVisible(name string, visible bool) error {
	r.record("roi-visible %s %v", name, visible)
	return nil
}

func (r *recorder) SetCursor(x, y, z int) error {
	r.record("set-cursor %d %d %d", x, y, z)
	r.mu.Lock()
	r.pos = [3]int{x, y, z}
	r.mu.Unlock()
	return nil
}

func (r *recorder) CursorPosition() [3]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

func (r *recorder) Regions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loaded...)
}

func (r *recorder) Markers() ([]string, error) {
	return []string{"Elavl3-H2B-GCaMP", "Gad1b"}, nil
}

func (r *recorder) CameraPreset(name string) error {
	r.record("camera %s", name)
	return nil
}

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine(newRecorder())

	out, evalErrs, err := eng.Evaluate("   \n\t ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}

func TestEvaluatePlainExpression(t *testing.T) {
	eng := NewEngine(newRecorder())

	out, evalErrs, err := eng.Evaluate("(+ 1 2)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if out != "3" {
		t.Errorf("output = %q, want 3", out)
	}
}

func TestEvaluateParseError(t *testing.T) {
	eng := NewEngine(newRecorder())

	_, evalErrs, err := eng.Evaluate("(set-marker \"x\"")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors for unbalanced parens")
	}
}

// TestBuiltinsDriveTarget runs each builtin once and checks the target
// sees the call with its arguments intact.
func TestBuiltinsDriveTarget(t *testing.T) {
	rec := newRecorder()
	eng := NewEngine(rec)

	source := `
(set-marker "Gad1b")
(add-region "cerebellum")
(set-region-color "cerebellum" "#ff8800")
(add-roi "cells" :file "cells.csv")
(set-roi-color "cells" "#00ff88")
(roi-visible "cells" false)
(set-cursor 150 350 100)
(camera "xy")
(remove-roi "cells")
(remove-region "cerebellum")
`
	_, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}

	want := []string{
		"set-marker Gad1b",
		"add-region cerebellum",
		"set-region-color cerebellum #ff8800",
		"add-roi cells cells.csv",
		"set-roi-color cells #00ff88",
		"roi-visible cells false",
		"set-cursor 150 350 100",
		"camera xy",
		"remove-roi cells",
		"remove-region cerebellum",
	}
	got := rec.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestQueryBuiltins checks cursor, regions and markers return values the
// console can print.
func TestQueryBuiltins(t *testing.T) {
	rec := newRecorder()
	eng := NewEngine(rec)

	out, evalErrs, err := eng.Evaluate(`(set-cursor 1 2 3) (cursor)`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("eval failed: %v %v", err, evalErrs)
	}
	if !strings.Contains(out, "1") || !strings.Contains(out, "3") {
		t.Errorf("cursor output = %q", out)
	}

	out, evalErrs, err = eng.Evaluate(`(markers)`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("eval failed: %v %v", err, evalErrs)
	}
	if !strings.Contains(out, "Gad1b") {
		t.Errorf("markers output = %q", out)
	}
}

// TestTargetErrorSurfacesAsEvalError checks a failing session operation
// comes back as a console error, not a crash.
func TestTargetErrorSurfacesAsEvalError(t *testing.T) {
	rec := newRecorder()
	rec.fail["add-region"] = fmt.Errorf("region \"nope\" unavailable")
	eng := NewEngine(rec)

	_, evalErrs, err := eng.Evaluate(`(add-region "nope")`)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors from failing target")
	}
	if !strings.Contains(evalErrs[0].Message, "unavailable") {
		t.Errorf("error message = %q", evalErrs[0].Message)
	}
}

// TestExampleSessionScript replays the shipped example script against a
// recorder.
func TestExampleSessionScript(t *testing.T) {
	source, err := os.ReadFile(filepath.Join("..", "..", "examples", "session.zy"))
	if err != nil {
		t.Fatalf("reading example script: %v", err)
	}

	rec := newRecorder()
	eng := NewEngine(rec)

	out, evalErrs, err := eng.Evaluate(string(source))
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}

	calls := rec.Calls()
	if len(calls) == 0 || calls[0] != "set-marker Elavl3-H2B-GCaMP" {
		t.Fatalf("calls = %v", calls)
	}
	// The script's final expression lists the loaded regions.
	if !strings.Contains(out, "cerebellum") || !strings.Contains(out, "tectum") {
		t.Errorf("final output = %q", out)
	}
}

func TestPreprocessSource(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`(set-marker "a-b")`, `(set_marker "a-b")`},
		{`(add-roi "cells" :file "p.csv")`, `(add_roi "cells" "__kw_file" "p.csv")`},
		{"; comment\n(cursor)", "// comment\n(cursor)"},
		{`(- 3 1)`, `(- 3 1)`},
		{`(x := 5)`, `(x := 5)`},
	}
	for _, c := range cases {
		if got := preprocessSource(c.in); got != c.want {
			t.Errorf("preprocessSource(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// slowTarget delays one builtin to provoke an evaluation timeout.
type slowTarget struct {
	*recorder
	delay time.Duration
}

func (s *slowTarget) SetMarker(name string) error {
	time.Sleep(s.delay)
	return s.recorder.SetMarker(name)
}

// TestEvaluateTimeout ensures a stuck evaluation is cut off at the
// configured limit instead of hanging the console.
func TestEvaluateTimeout(t *testing.T) {
	slow := &slowTarget{recorder: newRecorder(), delay: 500 * time.Millisecond}
	e := NewEngine(slow)
	e.SetTimeout(20 * time.Millisecond)

	_, _, err := e.Evaluate(`(set-marker "Gad1b")`)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
}
