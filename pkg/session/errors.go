package session

import (
	"fmt"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
)

// ShapeMismatchError reports a region volume whose extents disagree with
// the session's marker space. Such regions are rejected before they reach
// the store.
type ShapeMismatchError struct {
	Region string
	Want   atlas.Space
	Got    atlas.Space
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("region %q volume shape %v does not match marker space %v", e.Region, e.Got, e.Want)
}

// AssetUnavailableError reports a marker or region that could not be
// retrieved, including after the documented fallback-name retry.
type AssetUnavailableError struct {
	Kind string // "marker" or "region"
	Name string
	Err  error
}

func (e *AssetUnavailableError) Error() string {
	return fmt.Sprintf("%s %q unavailable: %v", e.Kind, e.Name, e.Err)
}

func (e *AssetUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedPointDataError reports a point source that is missing the
// required coordinate columns or is empty after non-finite filtering.
type MalformedPointDataError struct {
	Source string
	Reason string
}

func (e *MalformedPointDataError) Error() string {
	return fmt.Sprintf("point data %q: %s", e.Source, e.Reason)
}
