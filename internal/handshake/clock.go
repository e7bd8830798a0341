package handshake

import "time"

// SystemClock reads the host wall clock.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// NowUnixSeconds returns the current unix time in seconds.
func (SystemClock) NowUnixSeconds() uint64 {
	return uint64(time.Now().Unix())
}
