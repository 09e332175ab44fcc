// Package anatomy provides the anatomical region hierarchy of the atlas
// and the marker line catalog. The hierarchy is a name-indexed tree used
// by the region picker; the catalog maps marker line names to their
// downloadable stacks.
package anatomy

import (
	"fmt"
	"strings"
)

// Node is one anatomical region in the hierarchy. Leaf nodes name
// concrete regions with downloadable masks; inner nodes group them.
type Node struct {
	Name     string  `json:"name"`
	Children []*Node `json:"children,omitempty"`
}

// Tree is an immutable region hierarchy with a flat name index.
type Tree struct {
	roots  []*Node
	byName map[string]*Node
}

// NewTree indexes a forest of region nodes. Duplicate names are
// rejected; every region is addressed by its unique name.
func NewTree(roots []*Node) (*Tree, error) {
	t := &Tree{roots: roots, byName: make(map[string]*Node)}
	var index func(n *Node) error
	index = func(n *Node) error {
		if _, dup := t.byName[n.Name]; dup {
			return fmt.Errorf("anatomy: duplicate region name %q", n.Name)
		}
		t.byName[n.Name] = n
		for _, c := range n.Children {
			if err := index(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := index(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Roots returns the top-level regions in catalog order.
func (t *Tree) Roots() []*Node {
	return t.roots
}

// Lookup returns the region with the given name, or nil.
func (t *Tree) Lookup(name string) *Node {
	return t.byName[name]
}

// Count returns the total number of regions in the tree.
func (t *Tree) Count() int {
	return len(t.byName)
}

// Walk visits every region depth-first in catalog order, passing its
// nesting depth. Returning false from fn prunes the subtree.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.roots {
		visit(r, 0)
	}
}

// Names returns all region names depth-first in catalog order.
func (t *Tree) Names() []string {
	out := make([]string, 0, len(t.byName))
	t.Walk(func(n *Node, _ int) bool {
		out = append(out, n.Name)
		return true
	})
	return out
}

// FileName converts a display name into the underscored form used in
// asset file names and download URLs.
func FileName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// FallbackName derives the alternative asset name tried when a region
// download fails: everything before the first parenthetical, with
// trailing separators trimmed. Names without a parenthetical have no
// fallback and yield "".
func FallbackName(fileName string) string {
	i := strings.Index(fileName, "(")
	if i < 0 {
		return ""
	}
	return strings.Trim(fileName[:i], "_ ")
}
