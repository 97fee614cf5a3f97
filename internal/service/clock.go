package service

import "time"

// Clock is the single time source for every expiry comparison
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. The result keeps its monotonic reading,
// so in-process comparisons are immune to wall clock steps.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
