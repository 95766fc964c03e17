package scheduler

import "time"

// EpochStart truncates t to the start of its epoch, in unix seconds.
func EpochStart(t time.Time, length time.Duration) int64 {
	secs := int64(length / time.Second)
	if secs <= 0 {
		return t.Unix()
	}
	unix := t.Unix()
	return unix - mod(unix, secs)
}

// EpochEnd is the first second after the epoch starting at epoch.
func EpochEnd(epoch int64, length time.Duration) int64 {
	return epoch + int64(length/time.Second)
}

// EpochClosed reports whether the epoch starting at epoch has ended by now.
func EpochClosed(epoch int64, length time.Duration, now time.Time) bool {
	if length <= 0 {
		return false
	}
	return now.Unix() >= EpochEnd(epoch, length)
}

// EpochsBehind counts whole epochs between epoch and the epoch containing now.
func EpochsBehind(epoch int64, length time.Duration, now time.Time) int64 {
	secs := int64(length / time.Second)
	if secs <= 0 {
		return 0
	}
	diff := EpochStart(now, length) - epoch
	if diff <= 0 {
		return 0
	}
	return diff / secs
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
