package view

import (
	"fmt"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
)

// CursorController owns the single logical 3D cursor position and fans
// every axis change out to all views in a fixed order: the view walking
// the changed axis gets its slice index, the other two views get their
// tracking lines repositioned, the affected view recomputes its
// overlays, and finally the 3D cutting plane moves. Programmatic line
// repositioning never re-emits a move, so a drag settles in one pass.
type CursorController struct {
	space atlas.Space
	pos   [3]int

	// centered flips on the first marker load; before that the cursor
	// has no valid position and moves are ignored.
	centered bool

	slices []*SliceView
	volume *VolumeView

	// dispatching guards against re-entrant moves: anything arriving
	// while a fan-out is in flight is queued and applied afterwards, so
	// two overlapping gestures never interleave their view updates.
	dispatching bool
	queue       []pendingMove
}

type pendingMove struct {
	axis  atlas.Axis
	index int
}

// NewCursorController wires the controller to its views. Each section
// view routes its drag gestures through the returned controller.
func NewCursorController(volume *VolumeView, slices ...*SliceView) *CursorController {
	c := &CursorController{slices: slices, volume: volume}
	for _, v := range slices {
		v.ctrl = c
	}
	return c
}

// Position returns the cursor's current voxel coordinate.
func (c *CursorController) Position() [3]int {
	return c.pos
}

// Centered reports whether the cursor has been placed, which happens on
// the first marker load.
func (c *CursorController) Centered() bool {
	return c.centered
}

// Move updates one cursor axis and propagates the change. Out-of-range
// indices are clamped to the volume. A move that lands on the current
// position is dropped before any view is touched.
func (c *CursorController) Move(axis atlas.Axis, index int) {
	if c.space.IsZero() || !c.centered {
		return
	}
	index = c.space.Clamp(axis, index)
	if index == c.pos[axis] {
		return
	}
	if c.dispatching {
		c.queue = append(c.queue, pendingMove{axis: axis, index: index})
		return
	}
	c.dispatching = true
	c.dispatch(axis, index)
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		if next.index != c.pos[next.axis] {
			c.dispatch(next.axis, next.index)
		}
	}
	c.dispatching = false
}

// OnMarkerUpdated adopts the new volume space and re-centers the cursor,
// forcing a full fan-out on all three axes so every view renders its
// center slice with correctly placed lines.
func (c *CursorController) OnMarkerUpdated(space atlas.Space) {
	c.space = space
	c.centered = true
	center := space.Center()
	for _, a := range atlas.Axes {
		c.pos[a] = center[a]
		c.dispatch(a, center[a])
	}
}

// dispatch applies one axis change in the fixed fan-out order.
func (c *CursorController) dispatch(axis atlas.Axis, index int) {
	if index < 0 || index >= c.space.Extent(axis) {
		panic(fmt.Sprintf("view: cursor index %d out of range on axis %s", index, axis))
	}
	c.pos[axis] = index

	var target *SliceView
	for _, v := range c.slices {
		if v.mapping.Slice == axis {
			target = v
		}
	}

	var changed bool
	if target != nil {
		changed = target.setIndex(index)
	}
	for _, v := range c.slices {
		if v == target {
			continue
		}
		switch axis {
		case v.mapping.Col:
			v.SetVLine(index)
		case v.mapping.Row:
			v.SetHLine(index)
		}
	}
	if changed {
		target.refreshOverlays()
	}
	if c.volume != nil {
		c.volume.SetPlanePosition(axis, index)
	}
}
