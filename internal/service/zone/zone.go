// Package zone splits the frame into the monitored crossing zone and the rest.
package zone

// Boundary returns the x coordinate of the zone edge for a frame of the given width.
func Boundary(width int, fraction float64) int {
	return int(float64(width) * fraction)
}

// Contains reports whether an object centered at centerX is inside the zone.
// The zone is everything strictly right of the boundary.
func Contains(centerX float64, boundary int) bool {
	return centerX > float64(boundary)
}
