package dispatch

import (
	"math"
	"time"

	"github.com/grovetools/fsdispatch/internal/native"
)

// Forever is a timeout that never expires.
const Forever time.Duration = math.MaxInt64

const nanosPerSecond = int64(time.Second)

// timeoutFrom converts a delay of sec seconds plus nsec nanoseconds into a
// native timeout. Totals that do not fit in a signed 64-bit nanosecond count
// saturate to forever; non-positive delays mean now.
func timeoutFrom(sec, nsec int64) native.Timeout {
	sec += nsec / nanosPerSecond
	nsec %= nanosPerSecond
	if nsec < 0 {
		sec--
		nsec += nanosPerSecond
	}
	if sec < 0 || (sec == 0 && nsec == 0) {
		return native.TimeoutNow
	}
	if sec > (math.MaxInt64-nsec)/nanosPerSecond {
		return native.TimeoutForever
	}
	return native.Timeout(sec*nanosPerSecond + nsec)
}

// timeoutFromDuration converts d into a native timeout. Forever maps to the
// native forever sentinel.
func timeoutFromDuration(d time.Duration) native.Timeout {
	if d == Forever {
		return native.TimeoutForever
	}
	return timeoutFrom(int64(d/time.Second), int64(d%time.Second))
}

// durationFromTimeout is the inverse of timeoutFromDuration for finite
// timeouts.
func durationFromTimeout(t native.Timeout) (time.Duration, bool) {
	if t == native.TimeoutForever {
		return Forever, false
	}
	return time.Duration(t), true
}
