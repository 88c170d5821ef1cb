package engine

// FreeFormThreshold returns the number of responses that ends the free-form
// phase: the configured threshold, clamped down to the invited participant
// count when that is smaller. Never below one.
func FreeFormThreshold(configured, invited int) int {
	n := configured
	if invited < n {
		n = invited
	}
	if n < 1 {
		n = 1
	}
	return n
}
