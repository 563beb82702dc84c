package camera

import "strconv"

// formatPx and formatNum render floats the way CSS expects: trimmed,
// no trailing zeros, no scientific notation for the magnitudes a camera
// ever produces.
func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
