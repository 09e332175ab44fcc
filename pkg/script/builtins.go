package script

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
)

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string. Returns the
// keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument
// list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a bool from a Sexp.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

// nameArg extracts the single string argument expected by most builtins.
func nameArg(fn string, args []zygo.Sexp) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s requires exactly one name argument", fn)
	}
	name, err := toString(args[0])
	if err != nil {
		return "", fmt.Errorf("%s: %w", fn, err)
	}
	return name, nil
}

// stringList converts Go strings into a zygomys array.
func stringList(names []string) zygo.Sexp {
	elems := make([]zygo.Sexp, len(names))
	for i, n := range names {
		elems[i] = &zygo.SexpStr{S: n}
	}
	return &zygo.SexpArray{Val: elems}
}

// registerBuiltins installs the viewer builtins into a zygomys
// environment. Source code must be preprocessed with preprocessSource()
// first so that :keyword tokens and kebab-case names are recognized.
func registerBuiltins(env *zygo.Zlisp, t Target) {

	// (set-marker "Gad1b")
	env.AddFunction("set_marker", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		name, err := nameArg("set-marker", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := t.SetMarker(name); err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpStr{S: name}, nil
	})

	// (add-region "cerebellum")
	env.AddFunction("add_region", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		name, err := nameArg("add-region", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := t.AddRegion(name); err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpStr{S: name}, nil
	})

	// (remove-region "cerebellum")
	env.AddFunction("remove_region", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		name, err := nameArg("remove-region", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := t.RemoveRegion(name); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// (set-region-color "cerebellum" "#ff8800")
	env.AddFunction("set_region_color", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("set-region-color requires a name and a hex color")
		}
		name, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-region-color: %w", err)
		}
		hex, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-region-color: %w", err)
		}
		if err := t.SetRegionColor(name, hex); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// (add-roi "cells" :file "/data/cells.csv")
	env.AddFunction("add_roi", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("add-roi requires a name argument")
		}
		name, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("add-roi: %w", err)
		}
		fileSexp, ok := pa.kw["file"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("add-roi requires a :file argument")
		}
		path, err := toString(fileSexp)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("add-roi: file: %w", err)
		}
		if err := t.AddRoi(name, path); err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpStr{S: name}, nil
	})

	// (remove-roi "cells")
	env.AddFunction("remove_roi", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		name, err := nameArg("remove-roi", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := t.RemoveRoi(name); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// (set-roi-color "cells" "#00ff88")
	env.AddFunction("set_roi_color", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("set-roi-color requires a name and a hex color")
		}
		name, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-roi-color: %w", err)
		}
		hex, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-roi-color: %w", err)
		}
		if err := t.SetRoiColor(name, hex); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// (roi-visible "cells" false)
	env.AddFunction("roi_visible", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("roi-visible requires a name and a bool")
		}
		name, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("roi-visible: %w", err)
		}
		visible, err := toBool(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("roi-visible: %w", err)
		}
		if err := t.SetRoiVisible(name, visible); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// (set-cursor 150 350 100)
	env.AddFunction("set_cursor", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("set-cursor requires x, y and z")
		}
		var coords [3]int
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("set-cursor: %w", err)
			}
			coords[i] = int(math.Round(f))
		}
		if err := t.SetCursor(coords[0], coords[1], coords[2]); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// (cursor) -> [x y z]
	env.AddFunction("cursor", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		pos := t.CursorPosition()
		return &zygo.SexpArray{Val: []zygo.Sexp{
			&zygo.SexpInt{Val: int64(pos[0])},
			&zygo.SexpInt{Val: int64(pos[1])},
			&zygo.SexpInt{Val: int64(pos[2])},
		}}, nil
	})

	// (regions) -> names of loaded regions
	env.AddFunction("regions", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		return stringList(t.Regions()), nil
	})

	// (markers) -> names of available marker lines
	env.AddFunction("markers", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		names, err := t.Markers()
		if err != nil {
			return zygo.SexpNull, err
		}
		return stringList(names), nil
	})

	// (camera "xy")
	env.AddFunction("camera", func(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
		name, err := nameArg("camera", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := t.CameraPreset(name); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})
}
