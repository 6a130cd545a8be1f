package domain

import "errors"

var (
	// ErrParse reports a time string outside the accepted layouts.
	ErrParse = errors.New("unparseable time")

	// ErrUnknownTimezone reports a zone name missing from the zone database.
	ErrUnknownTimezone = errors.New("unknown timezone")

	// ErrDSTAnomaly reports a calendar day whose hour count is not 23, 24 or 25.
	// Consumers rely on the transition signal to expect a missing or duplicated
	// hour, so this is never defaulted away.
	ErrDSTAnomaly = errors.New("dst anomaly")

	// ErrAmbiguousTime reports a repeated wall-clock reading under Strict.
	ErrAmbiguousTime = errors.New("ambiguous local time")

	// ErrNonExistentTime reports a skipped wall-clock reading under Strict.
	ErrNonExistentTime = errors.New("non-existent local time")
)
