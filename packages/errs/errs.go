// Package errs names the error taxonomy the validation pipeline and its
// HTTP surfaces use to decide what to log, what to retry, and what to
// return to a caller. Every error returned across package boundaries in
// this module wraps one of these sentinels with fmt.Errorf's %w so callers
// can errors.Is against them regardless of the message text.
package errs

import "errors"

var (
	// InputMalformed marks an inbound SMS payload that failed basic shape
	// validation (missing sender, missing message body, unparseable JSON).
	// It never reaches the pipeline.
	InputMalformed = errors.New("input malformed")

	// CheckFail marks a check that ran to completion and rejected the
	// message. It is not an operational error — it is the expected
	// outcome of validation.
	CheckFail = errors.New("check failed")

	// CheckInternalError marks a check that could not complete (a query
	// failed, a setting was missing required shape) rather than one that
	// evaluated and rejected the message.
	CheckInternalError = errors.New("check internal error")

	// UnknownCheck marks a check_sequence entry outside the six
	// registered names.
	UnknownCheck = errors.New("unknown check")

	// StoreTransient marks a relational-store or cache failure that is
	// expected to be retryable (connection reset, timeout).
	StoreTransient = errors.New("store transient error")

	// ForwardFailure marks a failed best-effort outbound forward (cloud
	// HTTP endpoint or Kafka sink). It is logged and swallowed; it never
	// fails the commit of an accepted message.
	ForwardFailure = errors.New("forward failed")

	// OnboardingConflict marks an onboarding registration request for a
	// mobile number that already has an active registration.
	OnboardingConflict = errors.New("onboarding conflict")
)
