package domain

import (
	"fmt"
	"math"
)

// YuanToCents converts a yuan amount to integer fen. Amounts carrying
// more than two decimal places are rejected rather than silently
// rounded.
func YuanToCents(f float64) (int64, error) {
	// Scale to tenths of a fen; rounding first absorbs float artifacts
	// like 1.10*1000 = 1099.999....
	milli := int64(math.Round(f * 1000))
	if milli%10 != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return milli / 10, nil
}

// CentsToYuan converts integer fen to a yuan amount for presentation.
func CentsToYuan(c int64) float64 {
	return float64(c) / 100.0
}
