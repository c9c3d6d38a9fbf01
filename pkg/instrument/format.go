package instrument

import (
	"math"
	"strconv"
)

// FormatQuantity renders volumes, rates and durations the way run log texts show
// them: whole numbers keep one decimal ("10.0"), others use the shortest form ("4.5").
func FormatQuantity(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
