package view

import (
	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
)

// DefaultOverlayAlpha is the blend weight of region overlays on top of
// the marker image.
const DefaultOverlayAlpha = 0.6

// Composite flattens a marker slice and its visible region overlays into
// one premultiplied RGBA image, row-major, 4 bytes per pixel. Each
// overlay is tinted by its color scaled with the mask intensity and
// combined with the accumulated image using color-dodge, which brightens
// masked areas toward the region color while leaving unmasked marker
// pixels untouched. Overlays are applied in the given order with weight
// alpha; pass a negative alpha for DefaultOverlayAlpha.
func Composite(marker *atlas.Slice, overlays []*Overlay, alpha float64) []uint8 {
	if marker == nil || marker.Rows == 0 || marker.Cols == 0 {
		return nil
	}
	if alpha < 0 {
		alpha = DefaultOverlayAlpha
	}

	n := marker.Rows * marker.Cols
	acc := make([]float64, n*3)

	// Base layer: marker intensities normalized to the slice maximum,
	// rendered as grayscale.
	var max float32
	for r := 0; r < marker.Rows; r++ {
		for c := 0; c < marker.Cols; c++ {
			if v := marker.At(r, c, 0); v > max {
				max = v
			}
		}
	}
	if max > 0 {
		for r := 0; r < marker.Rows; r++ {
			for c := 0; c < marker.Cols; c++ {
				g := float64(marker.At(r, c, 0) / max)
				i := (r*marker.Cols + c) * 3
				acc[i], acc[i+1], acc[i+2] = g, g, g
			}
		}
	}

	for _, ov := range overlays {
		if !ov.Visible || ov.Image == nil {
			continue
		}
		img := ov.Image
		if img.Rows != marker.Rows || img.Cols != marker.Cols {
			continue
		}
		var omax float32
		for r := 0; r < img.Rows; r++ {
			for c := 0; c < img.Cols; c++ {
				if v := img.At(r, c, 0); v > omax {
					omax = v
				}
			}
		}
		if omax == 0 {
			continue
		}
		cr, cg, cb, _ := ov.Color.RGBAf()
		for r := 0; r < img.Rows; r++ {
			for c := 0; c < img.Cols; c++ {
				w := float64(img.At(r, c, 0)/omax) * alpha
				if w == 0 {
					continue
				}
				i := (r*img.Cols + c) * 3
				acc[i] = dodge(acc[i], cr*w)
				acc[i+1] = dodge(acc[i+1], cg*w)
				acc[i+2] = dodge(acc[i+2], cb*w)
			}
		}
	}

	out := make([]uint8, n*4)
	for i := 0; i < n; i++ {
		out[i*4] = channelByte(acc[i*3])
		out[i*4+1] = channelByte(acc[i*3+1])
		out[i*4+2] = channelByte(acc[i*3+2])
		out[i*4+3] = 0xff
	}
	return out
}

// dodge applies the color-dodge blend for one channel: base divided by
// the inverted blend value, clamped to 1.
func dodge(base, blend float64) float64 {
	if blend >= 1 {
		return 1
	}
	v := base / (1 - blend)
	if v > 1 {
		return 1
	}
	return v
}

func channelByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
