// Package palette assigns display colors to regions and ROI sets and
// provides the RGBA color type shared across the viewer.
package palette

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGBA display color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Hex renders the color as "#rrggbb" (alpha is carried separately in
// render payloads).
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// WithAlpha returns a copy of the color with its alpha replaced.
func (c Color) WithAlpha(a uint8) Color {
	c.A = a
	return c
}

// RGBAf returns the color components in [0, 1].
func (c Color) RGBAf() (r, g, b, a float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255
}

// ParseHex parses "#rrggbb" into a fully opaque Color.
func ParseHex(s string) (Color, error) {
	cf, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("palette: %w", err)
	}
	r, g, b := cf.RGB255()
	return Color{R: r, G: g, B: b, A: 255}, nil
}

// goldenAngle spaces consecutive hues so that nearby assignment indices
// get visually distinct colors.
const goldenAngle = 137.507764

// Assign returns the deterministic display color for the i-th selected
// entity. Assignment depends only on i, so re-selecting an entity at the
// same position yields the same color.
func Assign(i int) Color {
	h := math.Mod(float64(i)*goldenAngle, 360)
	cf := colorful.Hsv(h, 0.65, 0.95)
	r, g, b := cf.RGB255()
	return Color{R: r, G: g, B: b, A: 255}
}
