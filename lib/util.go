package lib

import (
	"encoding/hex"
	"time"
)

// NewTimer() creates a 0 value initialized instance of a timer
func NewTimer() *time.Timer {
	t := time.NewTimer(0)
	<-t.C
	return t
}

// ResetTimer() stops the existing timer, and resets with the new duration
func ResetTimer(t *time.Timer, d time.Duration) {
	StopTimer(t)
	t.Reset(d)
}

// StopTimer() stops the existing timer
func StopTimer(t *time.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		// drain safely
		for len(t.C) > 0 {
			<-t.C
		}
	}
}

// BytesToTruncatedString() returns the first 10 hex characters of the bytes for compact logging
func BytesToTruncatedString(b []byte) string {
	s := hex.EncodeToString(b)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
