package digo

import "sync/atomic"

var registrationSequence atomic.Int64

// nextRegistrationOrder hands out the value stored under
// MetadataRegistrationOrder. The sequence is process-wide so registrations
// made by different builders still sort deterministically.
func nextRegistrationOrder() int64 {
	return registrationSequence.Add(1)
}
