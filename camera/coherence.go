package camera

import (
	"math"
	"regexp"
	"strconv"
)

var (
	translateRe      = regexp.MustCompile(`translate\(([-\d.eE+]+)px,\s*([-\d.eE+]+)px\)`)
	scaleTranslateRe = regexp.MustCompile(`scale\(([-\d.eE+]+)\)\s*translate\(([-\d.eE+]+)px,\s*([-\d.eE+]+)px\)`)
)

// ParseTransform parses a CSS transform string produced by Transform back
// into a Camera of the given mode. It exists so callers can verify the
// coherence invariant in spec §4.1/§8: the applied DOM transform, parsed
// back, must equal the intended camera to an adaptive tolerance.
func ParseTransform(mode Mode, s string) (Camera, bool) {
	if mode == Unified {
		m := translateRe.FindStringSubmatch(s)
		if m == nil {
			return Camera{}, false
		}
		x, err1 := strconv.ParseFloat(m[1], 64)
		y, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return Camera{}, false
		}
		return Camera{X: x, Y: y, Z: 1, Mode: mode}, true
	}
	m := scaleTranslateRe.FindStringSubmatch(s)
	if m == nil {
		return Camera{}, false
	}
	z, err1 := strconv.ParseFloat(m[1], 64)
	negX, err2 := strconv.ParseFloat(m[2], 64)
	negY, err3 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Camera{}, false
	}
	return Camera{X: -negX, Y: -negY, Z: z, Mode: mode}, true
}

// Tolerance returns the adaptive tolerance used by the coherence
// invariant: max(0.01, |value| * 1e-5) (spec §4.1).
func Tolerance(value float64) float64 {
	return math.Max(0.01, math.Abs(value)*1e-5)
}

// Coherent reports whether got is within Tolerance(want) of want.
func Coherent(want, got float64) bool {
	return math.Abs(want-got) <= Tolerance(want)
}
