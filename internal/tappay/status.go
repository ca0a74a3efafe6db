// Package tappay translates between platform payment data and Tap Payments
// API requests and responses.
package tappay

import "strings"

// Status is a vendor authorization/charge status.
type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusAuthorized Status = "AUTHORIZED"
	StatusCaptured   Status = "CAPTURED"
	StatusRefusid    Status = "REFUSID"
	StatusAbandoned  Status = "ABANDONED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
	StatusDeclined   Status = "DECLINED"
	StatusRestricted Status = "RESTRICTED"
	StatusUnknown    Status = "UNKNOWN"
	StatusTimedOut   Status = "TIMEDOUT"
	StatusVoid       Status = "VOID"
)

// StatusClass groups vendor statuses by what they mean for a payment.
type StatusClass int

const (
	// ClassPositive covers every status not classified otherwise (e.g. CAPTURED).
	ClassPositive StatusClass = iota
	ClassFailed
	ClassPending
	ClassAuthorized
)

var failedStatuses = map[Status]struct{}{
	StatusRefusid:    {},
	StatusAbandoned:  {},
	StatusCancelled:  {},
	StatusFailed:     {},
	StatusDeclined:   {},
	StatusRestricted: {},
	StatusUnknown:    {},
	StatusTimedOut:   {},
	StatusVoid:       {},
}

// Classify is the only place vendor statuses are interpreted.
func Classify(s Status) StatusClass {
	s = Status(strings.ToUpper(strings.TrimSpace(string(s))))
	if _, ok := failedStatuses[s]; ok {
		return ClassFailed
	}
	switch s {
	case StatusInitiated:
		return ClassPending
	case StatusAuthorized:
		return ClassAuthorized
	default:
		return ClassPositive
	}
}

// IsSuccess is true for every status outside the failed set.
func IsSuccess(s Status) bool { return Classify(s) != ClassFailed }

// IsPending is true while the vendor has not decided the payment yet.
func IsPending(s Status) bool { return Classify(s) == ClassPending }

// IsAuthorized is true for a hold on funds that still needs a capture.
func IsAuthorized(s Status) bool { return Classify(s) == ClassAuthorized }
