package anatomy

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// ParseHierarchy reads a tab-indented region list, one region per line,
// where each level of indentation nests the region under the previous
// shallower line. Blank lines and lines starting with '#' are skipped.
func ParseHierarchy(data []byte) ([]*Node, error) {
	var roots []*Node
	var stack []*Node

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		depth := 0
		for depth < len(line) && line[depth] == '\t' {
			depth++
		}
		name := strings.TrimSpace(line[depth:])
		if name == "" {
			continue
		}
		if depth > len(stack) {
			return nil, fmt.Errorf("anatomy: line %d: indent jumps %d levels", lineNo, depth-len(stack)+1)
		}

		n := &Node{Name: name}
		if depth == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, n)
		}
		stack = append(stack[:depth], n)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("anatomy: reading hierarchy: %w", err)
	}
	return roots, nil
}
