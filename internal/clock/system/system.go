// Package system provides a real clock implementation.
package system

import "time"

// Clock reports wall-clock time in UTC. It satisfies the Clock interfaces in
// the source and pipeline packages.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
