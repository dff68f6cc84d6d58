package binary

// Quadrant returns the per-axis sign for a CoordOriginCode.
//
//	0, 3: -x -y
//	2:    -x +y
//	4:    +x -y
//	else: +x +y
func Quadrant(code uint8) (x, y float64) {
	switch code {
	case 0, 3:
		return -1, -1
	case 2:
		return -1, 1
	case 4:
		return 1, -1
	default:
		return 1, 1
	}
}

// Transform converts a stored integer coordinate to table units:
// quadrant * (raw + base + offset) / scale
func Transform(raw, base int32, offset, scale, quadrant float64) float64 {
	return quadrant * (float64(int64(raw)+int64(base)) + offset) / scale
}
