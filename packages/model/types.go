// Package model holds the data types shared across the validation bridge:
// the durable input queue row, the per-check monitor row, the accepted
// message row, and the supporting counter/blacklist/onboarding/setting
// records.
package model

import "time"

// CheckResult is the outcome of a single named check against one message.
type CheckResult int

const (
	// NotRun means the pipeline never reached this check, either because
	// an earlier check failed (short-circuit) or the check was not part
	// of the configured check_sequence.
	NotRun CheckResult = 0
	Pass   CheckResult = 1
	Fail   CheckResult = 2
	Skipped CheckResult = 3
)

func (r CheckResult) String() string {
	switch r {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Skipped:
		return "SKIPPED"
	default:
		return "NOT_RUN"
	}
}

// CheckName identifies one of the six pluggable checks. The set is closed;
// an unrecognized name is rejected by the check registry rather than
// silently skipped.
type CheckName string

const (
	CheckBlacklist      CheckName = "blacklist"
	CheckDuplicate      CheckName = "duplicate"
	CheckForeignNumber  CheckName = "foreign_number"
	CheckHeaderHash     CheckName = "header_hash"
	CheckMobile         CheckName = "mobile"
	CheckTimeWindow     CheckName = "time_window"
)

// InputMessage is a row of input_sms: the durable record of one inbound SMS
// exactly as received, before any validation.
type InputMessage struct {
	UUID               string
	SenderNumber       string
	SMSMessage         string
	ReceivedTimestamp  time.Time
}

// StatusValid and StatusInvalid are the two values ProcessedMessage.
// OverallStatus takes.
const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// ProcessedMessage is a row of sms_monitor: the per-check outcome of running
// the validation pipeline against one InputMessage.
type ProcessedMessage struct {
	UUID                   string
	OverallStatus          string // StatusValid or StatusInvalid
	FailedAtCheck          string // empty if OverallStatus == StatusValid
	ProcessingCompletedAt  time.Time
	ResultBlacklist        CheckResult
	ResultDuplicate        CheckResult
	ResultForeignNumber    CheckResult
	ResultHeaderHash       CheckResult
	ResultMobile           CheckResult
	ResultTimeWindow       CheckResult
}

// Result returns the outcome recorded for name, or NotRun if name is not
// one of the six columns this row tracks.
func (p ProcessedMessage) Result(name CheckName) CheckResult {
	switch name {
	case CheckBlacklist:
		return p.ResultBlacklist
	case CheckDuplicate:
		return p.ResultDuplicate
	case CheckForeignNumber:
		return p.ResultForeignNumber
	case CheckHeaderHash:
		return p.ResultHeaderHash
	case CheckMobile:
		return p.ResultMobile
	case CheckTimeWindow:
		return p.ResultTimeWindow
	default:
		return NotRun
	}
}

// SetResult stores the outcome for name, a no-op for unrecognized names.
func (p *ProcessedMessage) SetResult(name CheckName, r CheckResult) {
	switch name {
	case CheckBlacklist:
		p.ResultBlacklist = r
	case CheckDuplicate:
		p.ResultDuplicate = r
	case CheckForeignNumber:
		p.ResultForeignNumber = r
	case CheckHeaderHash:
		p.ResultHeaderHash = r
	case CheckMobile:
		p.ResultMobile = r
	case CheckTimeWindow:
		p.ResultTimeWindow = r
	}
}

// AcceptedMessage is a row of out_sms: a message that passed every check in
// its configured sequence, with its normalized mobile number attached.
type AcceptedMessage struct {
	UUID         string
	SenderNumber string
	SMSMessage   string
	CountryCode  string
	LocalMobile  string
	CommittedAt  time.Time
}

// CounterRecord is a row of count_sms: the running per-sender message count
// the blacklist check increments and compares against a threshold.
type CounterRecord struct {
	SenderNumber string
	MessageCount int
	CountryCode  string
	LocalMobile  string
}

// BlacklistRecord is a row of blacklist_sms: a sender that tripped the
// blacklist threshold.
type BlacklistRecord struct {
	SenderNumber string
	CountryCode  string
	LocalMobile  string
	TrippedAt    time.Time
}

// OnboardingRecord is a row of onboarding_mobile: the salt and hash issued
// for one mobile number, and whether it is still active. SMSValidated is
// derived, not stored — see onboarding.Registry.Status.
type OnboardingRecord struct {
	MobileNumber     string
	Salt             string
	Hash             string
	RequestTimestamp time.Time
	IsActive         bool
	SMSValidated     bool
}

// SettingRecord is a row of system_settings: one key/value configuration
// entry, stored as text and decoded by the settings accessor.
type SettingRecord struct {
	SettingKey   string
	SettingValue string
}
