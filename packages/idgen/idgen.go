// Package idgen generates the time-ordered identifiers the validation
// pipeline's durable cursor depends on.
package idgen

import "github.com/google/uuid"

// NewMessageID returns a UUIDv7 string. UUIDv7 embeds a millisecond
// timestamp in its high bits, so two IDs generated in receipt order also
// sort in receipt order as plain text — the property the pipeline cursor
// relies on when it compares "last_processed_uuid" lexicographically
// instead of tracking received_timestamp separately.
//
// Every input_sms row must get its uuid from here. A client-supplied uuid
// is never accepted, because nothing guarantees a caller's uuid is v7 or is
// ordered relative to rows already queued.
func NewMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
