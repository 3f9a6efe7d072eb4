package core

import "errors"

// Engine errors. Callers match them with errors.Is; the messages travel to the
// presentation layer unmodified.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNumericOverflow      = errors.New("numeric overflow")
	ErrNonAmortizingPayment = errors.New("payment does not cover first period interest")
	ErrScheduleCapExceeded  = errors.New("schedule exceeds maximum number of periods")
)

// Lifecycle and persistence errors.
var (
	ErrLoanNotActive   = errors.New("loan is not active")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrVersionConflict = errors.New("loan was modified concurrently")
	ErrProfileNotFound = errors.New("financial profile not found")
)
