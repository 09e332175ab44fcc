// Package kernel defines the geometry kernel interface used by the 3D
// volume view to build its scene solids (the marker bounding box and the
// three cutting-plane slabs). The abstraction keeps the sdfx backend out
// of the view code and lets tests substitute a cheap kernel.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds solids and converts them to renderable triangle meshes.
type Kernel interface {
	// Box creates a box with the given dimensions, minimum corner at the
	// origin, so scene placement works in volume index coordinates.
	Box(x, y, z float64) Solid

	// ToMesh tessellates a solid into a triangle mesh.
	ToMesh(s Solid) (*Mesh, error)
}
