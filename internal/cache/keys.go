package cache

import (
	"fmt"
)

// BurstKey is the per-key-prefix minute-window counter for the burst
// limiter in front of the daily quota.
func BurstKey(keyPrefix string) string {
	return fmt.Sprintf("burst:%s", keyPrefix)
}
