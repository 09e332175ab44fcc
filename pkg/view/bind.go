package view

import (
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// Bind subscribes the whole view layer to a session's store events and
// routes each event to the views in dependency order. On a marker load
// the section views reset before the controller re-centers, so the
// forced fan-out renders the new volume's center slices. Scene build
// failures are reported through errFn, which may be nil.
func Bind(sess *session.Session, ctrl *CursorController, volume *VolumeView, errFn func(error), slices ...*SliceView) {
	sess.Subscribe(func(ev session.Event) {
		switch e := ev.(type) {
		case session.MarkerUpdated:
			for _, v := range slices {
				v.OnMarkerUpdated()
			}
			if volume != nil {
				if err := volume.OnMarkerUpdated(); err != nil && errFn != nil {
					errFn(err)
				}
				volume.OnRegionsChanged()
			}
			ctrl.OnMarkerUpdated(sess.Space())
		case session.RegionsChanged:
			for _, v := range slices {
				v.OnRegionsChanged()
			}
			if volume != nil {
				volume.OnRegionsChanged()
			}
		case session.RoiAdded:
			for _, v := range slices {
				v.AddScatter(e.Name)
			}
			if volume != nil {
				volume.AddScatter(e.Name)
			}
		case session.RoiRemoved:
			for _, v := range slices {
				v.RemoveScatter(e.Name)
			}
			if volume != nil {
				volume.RemoveScatter(e.Name)
			}
		case session.RoiStyleChanged:
			for _, v := range slices {
				v.RestyleScatter(e.Name)
			}
			if volume != nil {
				volume.RestyleScatter(e.Name)
			}
		}
	})
}
