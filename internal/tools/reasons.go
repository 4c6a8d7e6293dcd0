package tools

import (
	"errors"
	"strings"
)

// genericReasons are absence explanations too vague to record. The callee
// must give a specific reason before an absence is persisted.
var genericReasons = []string{
	"not specified",
	"no reason",
	"none",
	"n/a",
	"unknown",
	"busy",
	"can't make it",
	"cannot attend",
}

// errGenericReason doubles as the clarifying message spoken when an absence
// reason is refused.
var errGenericReason = errors.New("Could you share the specific reason you won't be able to attend? For example a work conflict, an appointment, or a family commitment.")

// errMissingReason is spoken when an absence is reported with no reason at all.
var errMissingReason = errors.New("I'd like to note why you can't make it. What's the reason you won't be able to attend?")

// validateAbsenceReason refuses missing or generic absence reasons.
func validateAbsenceReason(reason string) error {
	if reason == "" {
		return errMissingReason
	}
	lower := strings.ToLower(reason)
	if len(lower) < 3 {
		return errGenericReason
	}
	for _, generic := range genericReasons {
		if strings.Contains(lower, generic) {
			return errGenericReason
		}
	}
	return nil
}
