package messaging

import (
	"fmt"
	"math"
)

// FormatResponseTime renders minutes as "N min", "N hr" or "N day".
func FormatResponseTime(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%d hr", int(math.Round(float64(minutes)/60)))
	default:
		return fmt.Sprintf("%d day", int(math.Round(float64(minutes)/1440)))
	}
}

// FoldResponseTime folds a new first-reply latency into the vendor's running value.
func FoldResponseTime(existing, sample int) int {
	if existing == 0 {
		return sample
	}
	return (existing + sample) / 2
}
