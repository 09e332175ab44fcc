// Package session owns the shared mutable state of one viewer instance:
// the current marker volume, the region store and the ROI store. All
// mutation goes through Session methods; each mutation completes
// atomically and is followed by exactly one typed event broadcast, so a
// view redraw never observes a store mid-update.
//
// A Session is confined to the UI event goroutine and is deliberately
// unsynchronized; views treat it as read-only.
package session

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/palette"
)

// Region is a named anatomical structure held by the region store. At
// least one of Volume (a mask over the marker space) and Mesh (a surface)
// must be present; a region with neither is meaningless and is rejected.
type Region struct {
	Name   string
	Volume *atlas.Volume
	Mesh   []atlas.Triangle
	Color  palette.Color
}

// RoiSet is a named point cloud with a display color and visibility flag.
// Points are in the same physical units as marker voxel indices.
type RoiSet struct {
	Name    string
	Points  []r3.Vec
	Color   palette.Color
	Visible bool
}

// Event is a store-change notification delivered to subscribers.
type Event interface {
	event()
}

// MarkerUpdated is broadcast after the marker volume is replaced.
type MarkerUpdated struct{}

// RegionsChanged is broadcast after any region add, remove or recolor.
type RegionsChanged struct{}

// RoiAdded is broadcast after a new ROI set is stored.
type RoiAdded struct{ Name string }

// RoiRemoved is broadcast after an ROI set is removed.
type RoiRemoved struct{ Name string }

// RoiStyleChanged is broadcast after an ROI set's color or visibility
// changes.
type RoiStyleChanged struct{ Name string }

func (MarkerUpdated) event()   {}
func (RegionsChanged) event()  {}
func (RoiAdded) event()        {}
func (RoiRemoved) event()      {}
func (RoiStyleChanged) event() {}

// Session is the explicitly owned state container passed by reference to
// the views, replacing ambient globals so tests can construct isolated
// sessions.
type Session struct {
	marker *atlas.Volume

	regions     map[string]*Region
	regionOrder []string

	rois     map[string]*RoiSet
	roiOrder []string

	listeners []func(Event)

	// selections counts region/ROI additions for palette assignment.
	selections int
}

// New creates an empty session with no marker loaded.
func New() *Session {
	return &Session{
		regions: make(map[string]*Region),
		rois:    make(map[string]*RoiSet),
	}
}

// Subscribe registers a listener for store events. Listeners are invoked
// synchronously, in subscription order, after each completed mutation.
func (s *Session) Subscribe(fn func(Event)) {
	s.listeners = append(s.listeners, fn)
}

func (s *Session) broadcast(ev Event) {
	for _, fn := range s.listeners {
		fn(ev)
	}
}

// Marker returns the current marker volume, or nil before the first load.
func (s *Session) Marker() *atlas.Volume {
	return s.marker
}

// Space returns the marker's volume space, or the zero Space when no
// marker is loaded.
func (s *Session) Space() atlas.Space {
	if s.marker == nil {
		return atlas.Space{}
	}
	return s.marker.Space()
}

// SetMarker replaces the marker volume wholesale and broadcasts
// MarkerUpdated. Regions loaded against a previous marker space stay in
// the store; views decide per redraw whether their shape still matches.
func (s *Session) SetMarker(vol *atlas.Volume) error {
	if vol == nil {
		return fmt.Errorf("session: nil marker volume")
	}
	s.marker = vol
	s.broadcast(MarkerUpdated{})
	return nil
}

// AddRegion validates and stores a region, then broadcasts
// RegionsChanged. A region with neither volume nor mesh, or with a volume
// whose shape disagrees with the marker space, is rejected and the store
// is left unchanged. A zero color is replaced from the palette.
func (s *Session) AddRegion(r *Region) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("session: region must have a name")
	}
	if r.Volume == nil && len(r.Mesh) == 0 {
		return fmt.Errorf("session: region %q has neither volume nor mesh", r.Name)
	}
	if r.Volume != nil && s.marker != nil && r.Volume.Space() != s.marker.Space() {
		return &ShapeMismatchError{Region: r.Name, Want: s.marker.Space(), Got: r.Volume.Space()}
	}
	if r.Color == (palette.Color{}) {
		r.Color = palette.Assign(s.selections)
	}
	if _, exists := s.regions[r.Name]; !exists {
		s.regionOrder = append(s.regionOrder, r.Name)
	}
	s.regions[r.Name] = r
	s.selections++
	s.broadcast(RegionsChanged{})
	return nil
}

// RemoveRegion drops a region by name. Removing an absent name is a
// no-op without a broadcast.
func (s *Session) RemoveRegion(name string) {
	if _, ok := s.regions[name]; !ok {
		return
	}
	delete(s.regions, name)
	s.regionOrder = removeName(s.regionOrder, name)
	s.broadcast(RegionsChanged{})
}

// SetRegionColor recolors a stored region and broadcasts RegionsChanged.
func (s *Session) SetRegionColor(name string, c palette.Color) error {
	r, ok := s.regions[name]
	if !ok {
		return fmt.Errorf("session: no region named %q", name)
	}
	r.Color = c
	s.broadcast(RegionsChanged{})
	return nil
}

// Region returns a stored region by name, or nil.
func (s *Session) Region(name string) *Region {
	return s.regions[name]
}

// Regions returns the stored regions in insertion order.
func (s *Session) Regions() []*Region {
	out := make([]*Region, 0, len(s.regionOrder))
	for _, name := range s.regionOrder {
		out = append(out, s.regions[name])
	}
	return out
}

// AddRoiSet stores a point cloud under name and broadcasts RoiAdded. An
// empty point set is rejected: the loader is required to filter
// non-finite rows, and filtering everything away is malformed input.
func (s *Session) AddRoiSet(name string, points []r3.Vec, c palette.Color) error {
	if name == "" {
		return fmt.Errorf("session: ROI set must have a name")
	}
	if len(points) == 0 {
		return &MalformedPointDataError{Source: name, Reason: "no points after filtering"}
	}
	if c == (palette.Color{}) {
		c = palette.Assign(s.selections)
	}
	if _, exists := s.rois[name]; !exists {
		s.roiOrder = append(s.roiOrder, name)
	}
	s.rois[name] = &RoiSet{Name: name, Points: points, Color: c, Visible: true}
	s.selections++
	s.broadcast(RoiAdded{Name: name})
	return nil
}

// RemoveRoiSet drops an ROI set by name and broadcasts RoiRemoved.
func (s *Session) RemoveRoiSet(name string) {
	if _, ok := s.rois[name]; !ok {
		return
	}
	delete(s.rois, name)
	s.roiOrder = removeName(s.roiOrder, name)
	s.broadcast(RoiRemoved{Name: name})
}

// SetRoiColor recolors an ROI set and broadcasts RoiStyleChanged.
func (s *Session) SetRoiColor(name string, c palette.Color) error {
	roi, ok := s.rois[name]
	if !ok {
		return fmt.Errorf("session: no ROI set named %q", name)
	}
	roi.Color = c
	s.broadcast(RoiStyleChanged{Name: name})
	return nil
}

// SetRoiVisibility toggles an ROI set and broadcasts RoiStyleChanged.
func (s *Session) SetRoiVisibility(name string, visible bool) error {
	roi, ok := s.rois[name]
	if !ok {
		return fmt.Errorf("session: no ROI set named %q", name)
	}
	roi.Visible = visible
	s.broadcast(RoiStyleChanged{Name: name})
	return nil
}

// RoiSet returns a stored ROI set by name, or nil.
func (s *Session) RoiSet(name string) *RoiSet {
	return s.rois[name]
}

// RoiSets returns the stored ROI sets in insertion order.
func (s *Session) RoiSets() []*RoiSet {
	out := make([]*RoiSet, 0, len(s.roiOrder))
	for _, name := range s.roiOrder {
		out = append(out, s.rois[name])
	}
	return out
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
