package service

import "time"

// Clock is the single time source for every deadline comparison in the QR
// login flow. Creation and expiry checks must observe the same UTC-anchored
// clock, and tests substitute a fake.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns the production clock as a Clock interface.
func NewSystemClock() Clock {
	return SystemClock{}
}
