package engine

import "errors"

// The engine's error taxonomy is a closed set of sentinels matched with
// errors.Is. Recoverable conditions (malformed patterns, binary files,
// empty snapshots) are never errors; they surface as warnings or zero-valued
// statistics.
var (
	// ErrPaymentNotVerified rejects a Commit whose session has not reached
	// the PAID state. The caller may retry after payment confirmation.
	ErrPaymentNotVerified = errors.New("payment not verified")

	// ErrFingerprintMismatch rejects operations on a fingerprint no prior
	// Estimate produced.
	ErrFingerprintMismatch = errors.New("unknown fingerprint")

	// ErrUnknownPaymentSession rejects a ConfirmPayment for a payment session
	// that was never paired via RequestCommit.
	ErrUnknownPaymentSession = errors.New("unknown payment session")

	// ErrSessionExpired marks a session whose committed result aged out of
	// the cache.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionFailed marks a session whose computation failed terminally.
	ErrSessionFailed = errors.New("session failed")
)
