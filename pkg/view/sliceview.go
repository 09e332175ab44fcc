// Package view implements the synchronized views of a session: three
// orthogonal 2D section views, the 3D volume view, and the cursor
// controller that keeps all four consistent with a single logical
// cursor position.
package view

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/palette"
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// Overlay is the stable render handle for one region's mask in a section
// view. Handles are created lazily on first appearance of a region name
// and hidden, never destroyed, when the region disappears, so the
// drawable identity stays stable for the view's lifetime.
type Overlay struct {
	Name    string        `json:"name"`
	Color   palette.Color `json:"color"`
	Visible bool          `json:"visible"`
	Image   *atlas.Slice  `json:"image"`
}

// Scatter is the render handle for one ROI set's projected points in a
// section view. Color changes re-tint the existing handle; the handle is
// destroyed only when the ROI set itself is removed.
type Scatter struct {
	Name      string              `json:"name"`
	Color     palette.Color       `json:"color"`
	Visible   bool                `json:"visible"`
	Projected []atlas.ScreenPoint `json:"projected"`

	points []r3.Vec // source coordinates, owned by the session
}

// Frame is the serializable render state of a section view, consumed by
// the frontend renderer.
type Frame struct {
	View     string       `json:"view"`
	Index    int          `json:"index"`
	Marker   *atlas.Slice `json:"marker"`
	Overlays []*Overlay   `json:"overlays"`
	Scatters []*Scatter   `json:"scatters"`
	VLinePos float64      `json:"vlinePos"`
	HLinePos float64      `json:"hlinePos"`
	Seq      uint64       `json:"seq"`
}

// SliceView renders one orthogonal section of the session: the marker
// slice, region mask overlays, ROI scatter overlays and two perpendicular
// cursor lines. All three section orientations share this one type,
// parameterized by their axis mapping.
type SliceView struct {
	orientation atlas.Orientation
	mapping     atlas.Mapping
	sess        *session.Session
	ctrl        *CursorController

	// lastIdx suppresses duplicate renders: continuous dragging delivers
	// fractional and repeated index events, and only a changed integer
	// index triggers a full re-render.
	lastIdx int

	markerSlice *atlas.Slice

	overlays     map[string]*Overlay
	overlayOrder []string

	scatters     map[string]*Scatter
	scatterOrder []string

	vlinePos float64
	hlinePos float64

	// seq counts visible render updates, for change detection.
	seq uint64
}

// NewSliceView creates a section view over sess. The view tolerates
// being constructed before any marker is loaded; updates are no-ops
// until then.
func NewSliceView(o atlas.Orientation, sess *session.Session) *SliceView {
	return &SliceView{
		orientation: o,
		mapping:     atlas.MappingFor(o),
		sess:        sess,
		lastIdx:     -1,
		overlays:    make(map[string]*Overlay),
		scatters:    make(map[string]*Scatter),
	}
}

// Orientation returns the view's section orientation.
func (v *SliceView) Orientation() atlas.Orientation {
	return v.orientation
}

// SliceIndex returns the last applied slice index, or -1 before the
// first render.
func (v *SliceView) SliceIndex() int {
	return v.lastIdx
}

// Seq returns the visible-render counter. It advances exactly once per
// visible change, so equal values mean nothing was re-rendered.
func (v *SliceView) Seq() uint64 {
	return v.seq
}

// SetSliceIndex applies a slice index directly: marker slice and all
// overlays are recomputed. Idempotent — a repeated index is suppressed
// and triggers no downstream work.
func (v *SliceView) SetSliceIndex(i int) {
	if v.setIndex(i) {
		v.refreshOverlays()
	}
}

// setIndex records a new slice index and re-extracts the marker slice.
// It returns false when the index is a duplicate of the last applied one
// or no marker is loaded.
func (v *SliceView) setIndex(i int) bool {
	marker := v.sess.Marker()
	if marker == nil {
		return false
	}
	i = marker.Space().Clamp(v.mapping.Slice, i)
	if i == v.lastIdx {
		return false
	}
	v.lastIdx = i
	v.markerSlice = atlas.SliceOf(marker, v.orientation, i)
	v.seq++
	return true
}

// refreshOverlays recomputes region and scatter overlays for the current
// slice index.
func (v *SliceView) refreshOverlays() {
	v.updateRegions()
	v.updateScatters()
}

// updateRegions synchronizes overlay handles with the region store:
// every handle is hidden first, then each stored region gets its handle
// (created lazily on first appearance) re-sliced, re-tinted and shown.
// Regions without a mask volume, or whose mask no longer matches the
// marker space, stay hidden.
func (v *SliceView) updateRegions() {
	if v.sess.Marker() == nil || v.lastIdx < 0 {
		return
	}
	for _, ov := range v.overlays {
		ov.Visible = false
	}
	space := v.sess.Space()
	for _, r := range v.sess.Regions() {
		if r.Volume == nil || r.Volume.Space() != space {
			continue
		}
		ov := v.overlays[r.Name]
		if ov == nil {
			ov = &Overlay{Name: r.Name}
			v.overlays[r.Name] = ov
			v.overlayOrder = append(v.overlayOrder, r.Name)
		}
		ov.Color = r.Color
		ov.Image = atlas.SliceOf(r.Volume, v.orientation, v.lastIdx)
		ov.Visible = true
	}
}

// updateScatters reprojects every scatter handle onto the current slice.
func (v *SliceView) updateScatters() {
	if v.sess.Marker() == nil || v.lastIdx < 0 {
		return
	}
	space := v.sess.Space()
	for _, sc := range v.scatters {
		sc.Projected = atlas.ProjectPoints(v.orientation, space, sc.points, v.lastIdx)
	}
}

// AddScatter creates the scatter handle for a newly stored ROI set and
// projects it onto the current slice. Re-adding an existing name only
// refreshes style and projection.
func (v *SliceView) AddScatter(name string) {
	roi := v.sess.RoiSet(name)
	if roi == nil {
		return
	}
	sc := v.scatters[name]
	if sc == nil {
		sc = &Scatter{Name: name, points: roi.Points}
		v.scatters[name] = sc
		v.scatterOrder = append(v.scatterOrder, name)
	}
	sc.Color = roi.Color
	sc.Visible = roi.Visible
	if v.sess.Marker() != nil && v.lastIdx >= 0 {
		sc.Projected = atlas.ProjectPoints(v.orientation, v.sess.Space(), sc.points, v.lastIdx)
	}
	v.seq++
}

// RemoveScatter drops the scatter handle for a removed ROI set.
func (v *SliceView) RemoveScatter(name string) {
	if _, ok := v.scatters[name]; !ok {
		return
	}
	delete(v.scatters, name)
	v.scatterOrder = removeName(v.scatterOrder, name)
	v.seq++
}

// RestyleScatter re-tints an existing scatter handle in place without
// recreating it.
func (v *SliceView) RestyleScatter(name string) {
	roi := v.sess.RoiSet(name)
	sc := v.scatters[name]
	if roi == nil || sc == nil {
		return
	}
	sc.Color = roi.Color
	sc.Visible = roi.Visible
	v.seq++
}

// OnMarkerUpdated resets the view for a freshly loaded marker volume.
// The new slice index arrives separately via the cursor controller's
// re-centering fan-out.
func (v *SliceView) OnMarkerUpdated() {
	v.lastIdx = -1
	v.markerSlice = nil
	v.seq++
}

// OnRegionsChanged re-renders the region overlay stack.
func (v *SliceView) OnRegionsChanged() {
	v.updateRegions()
	v.seq++
}

// DragVLine handles a user drag of the vertical cursor line, which
// tracks the view's column axis. The raw position is converted to a
// logical index and routed through the cursor controller.
func (v *SliceView) DragVLine(raw float64) {
	if v.sess.Marker() == nil || v.ctrl == nil {
		return
	}
	v.ctrl.Move(v.mapping.Col, atlas.VLineIndex(raw))
}

// DragHLine handles a user drag of the horizontal cursor line, which
// tracks the view's row axis. Screen-vertical is flipped relative to
// physical-up, so the conversion measures down from YMax; it is the
// exact inverse of SetHLine's placement.
func (v *SliceView) DragHLine(raw float64) {
	if v.sess.Marker() == nil || v.ctrl == nil {
		return
	}
	v.ctrl.Move(v.mapping.Row, atlas.HLineIndex(v.orientation, v.sess.Space(), raw))
}

// DragTimeline handles a user drag of the view's own slice position
// marker, which walks the slice axis.
func (v *SliceView) DragTimeline(raw float64) {
	if v.sess.Marker() == nil || v.ctrl == nil {
		return
	}
	v.ctrl.Move(v.mapping.Slice, atlas.VLineIndex(raw))
}

// SetVLine repositions the vertical line programmatically. Unlike a
// drag, this never re-emits a cursor move, which is what breaks the
// propagation cycle in the controller fan-out.
func (v *SliceView) SetVLine(index int) {
	pos := atlas.VLinePos(index)
	if pos == v.vlinePos {
		return
	}
	v.vlinePos = pos
	v.seq++
}

// SetHLine repositions the horizontal line programmatically, converting
// the physical-up index into the screen-down position. Never re-emits.
func (v *SliceView) SetHLine(index int) {
	if v.sess.Marker() == nil {
		return
	}
	pos := atlas.HLinePos(v.orientation, v.sess.Space(), index)
	if pos == v.hlinePos {
		return
	}
	v.hlinePos = pos
	v.seq++
}

// VLinePos returns the current raw vertical line position.
func (v *SliceView) VLinePos() float64 { return v.vlinePos }

// HLinePos returns the current raw horizontal line position.
func (v *SliceView) HLinePos() float64 { return v.hlinePos }

// Frame renders the view's current serializable state in stable handle
// order.
func (v *SliceView) Frame() *Frame {
	f := &Frame{
		View:     v.orientation.String(),
		Index:    v.lastIdx,
		Marker:   v.markerSlice,
		VLinePos: v.vlinePos,
		HLinePos: v.hlinePos,
		Seq:      v.seq,
	}
	for _, name := range v.overlayOrder {
		f.Overlays = append(f.Overlays, v.overlays[name])
	}
	for _, name := range v.scatterOrder {
		f.Scatters = append(f.Scatters, v.scatters[name])
	}
	return f
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
