package stamp

import "math"

// FloorTable is the minimum pressure at which the reference brush leaves a
// visible mark, indexed by integer stamp diameter. Diameters past the end
// of Small use Large.
type FloorTable struct {
	Small []float64
	Large float64
}

// Measured on the reference brush for diameters 0-34; every larger diameter
// shares one floor.
var defaultFloorSmall = [...]float64{
	1.000, 0.400, 0.330, 0.280, 0.240, 0.210, 0.180, 0.160, 0.145, 0.130,
	0.118, 0.107, 0.098, 0.090, 0.083, 0.077, 0.071, 0.066, 0.062, 0.058,
	0.054, 0.051, 0.048, 0.045, 0.043, 0.041, 0.039, 0.037, 0.035, 0.033,
	0.031, 0.029, 0.027, 0.025, 0.023,
}

const defaultFloorLarge = 0.0196

// DefaultFloor returns a copy of the reference brush floor table.
func DefaultFloor() FloorTable {
	small := defaultFloorSmall
	return FloorTable{Small: small[:], Large: defaultFloorLarge}
}

// At returns the floor for a diameter in pixels.
func (t FloorTable) At(diameter float64) float64 {
	d := int(math.Floor(diameter))
	if d < 0 {
		d = 0
	}
	if d < len(t.Small) {
		return t.Small[d]
	}
	return t.Large
}
