// Package onboarding implements the secondary registration sub-protocol: a
// mobile number is registered, given a random salt and a hash derived from
// it, and later messages from that number must carry that hash (checked by
// packages/checks' header_hash and mobile checks) within a configured time
// window. Grounded on original_source/checks/header_hash_check.py and
// mobile_check.py, which read onboarding_mobile the registry writes here.
package onboarding

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/errs"
	"github.com/brivas/sms-validation-bridge/packages/store"
)

// ErrNotFound is returned when a mobile number has no onboarding row.
var ErrNotFound = errors.New("onboarding: mobile number not found")

// ErrAlreadyActive is returned by Register when the mobile number already
// has an active onboarding row — re-registering a live number would hand
// out a second hash for the same window, which the pipeline has no way to
// disambiguate. It wraps errs.OnboardingConflict so callers can match on
// the taxonomy sentinel without depending on this package directly.
var ErrAlreadyActive = fmt.Errorf("onboarding: mobile number already active: %w", errs.OnboardingConflict)

// Registry reads and writes onboarding_mobile.
type Registry struct {
	client *store.Client
}

// New wraps a store client.
func New(client *store.Client) *Registry {
	return &Registry{client: client}
}

// hexLength must be even: it is the length, in hex characters, of the
// salt returned to the caller; crypto/rand fills length/2 bytes.
func saltBytes(hexLength int) ([]byte, error) {
	if hexLength <= 0 || hexLength%2 != 0 {
		return nil, fmt.Errorf("onboarding: hash_salt_length must be a positive even number, got %d", hexLength)
	}
	buf := make([]byte, hexLength/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("onboarding: generate salt: %w", err)
	}
	return buf, nil
}

// hashFor computes sha256("ONBOARD" + mobileNumber + salt) as lowercase hex.
func hashFor(mobileNumber, salt string) string {
	sum := sha256.Sum256([]byte("ONBOARD" + mobileNumber + salt))
	return hex.EncodeToString(sum[:])
}

// Register creates an active onboarding row for mobileNumber, or reactivates
// an inactive one, with a fresh salt (hexSaltLength hex characters long),
// hash and request timestamp. It fails if the number already has an active
// row.
func (r *Registry) Register(ctx context.Context, mobileNumber string, hexSaltLength int) (model.OnboardingRecord, error) {
	active, err := r.isActive(ctx, mobileNumber)
	if err != nil {
		return model.OnboardingRecord{}, err
	}
	if active {
		return model.OnboardingRecord{}, ErrAlreadyActive
	}

	saltBuf, err := saltBytes(hexSaltLength)
	if err != nil {
		return model.OnboardingRecord{}, err
	}
	salt := hex.EncodeToString(saltBuf)
	hash := hashFor(mobileNumber, salt)
	now := time.Now().UTC()

	_, err = r.client.Exec(ctx,
		`INSERT INTO onboarding_mobile (mobile_number, salt, hash, request_timestamp, is_active)
		 VALUES ($1, $2, $3, $4, true)
		 ON CONFLICT (mobile_number) DO UPDATE
		   SET salt = EXCLUDED.salt, hash = EXCLUDED.hash,
		       request_timestamp = EXCLUDED.request_timestamp, is_active = true`,
		mobileNumber, salt, hash, now,
	)
	if err != nil {
		return model.OnboardingRecord{}, fmt.Errorf("onboarding: register %q: %w", mobileNumber, err)
	}

	return model.OnboardingRecord{
		MobileNumber:     mobileNumber,
		Salt:             salt,
		Hash:             hash,
		RequestTimestamp: now,
		IsActive:         true,
	}, nil
}

// Status returns the onboarding row for mobileNumber, plus sms_validated
// (spec.md §4.5): whether any valid sms_monitor row exists whose input
// message contains mobileNumber as a substring. That substring match is a
// known imprecision carried over deliberately (SPEC_FULL.md §9) rather than
// tightened — a stricter match is future work, not a silent behavior change.
func (r *Registry) Status(ctx context.Context, mobileNumber string) (model.OnboardingRecord, error) {
	var rec model.OnboardingRecord
	rec.MobileNumber = mobileNumber
	err := r.client.QueryRow(ctx,
		`SELECT salt, hash, request_timestamp, is_active FROM onboarding_mobile WHERE mobile_number = $1`,
		mobileNumber,
	).Scan(&rec.Salt, &rec.Hash, &rec.RequestTimestamp, &rec.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OnboardingRecord{}, ErrNotFound
	}
	if err != nil {
		return model.OnboardingRecord{}, fmt.Errorf("onboarding: status %q: %w", mobileNumber, err)
	}

	err = r.client.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM sms_monitor m
			JOIN input_sms i ON i.uuid = m.uuid
			WHERE m.overall_status = $1 AND i.sms_message LIKE '%' || $2 || '%'
		 )`,
		model.StatusValid, mobileNumber,
	).Scan(&rec.SMSValidated)
	if err != nil {
		return model.OnboardingRecord{}, fmt.Errorf("onboarding: sms_validated %q: %w", mobileNumber, err)
	}
	return rec, nil
}

// Deactivate marks mobileNumber's onboarding row inactive; the header_hash
// and mobile checks both require is_active = true, so this immediately
// revokes the number without deleting its history.
func (r *Registry) Deactivate(ctx context.Context, mobileNumber string) error {
	res, err := r.client.Exec(ctx,
		`UPDATE onboarding_mobile SET is_active = false WHERE mobile_number = $1`, mobileNumber,
	)
	if err != nil {
		return fmt.Errorf("onboarding: deactivate %q: %w", mobileNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("onboarding: deactivate %q: %w", mobileNumber, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Registry) isActive(ctx context.Context, mobileNumber string) (bool, error) {
	var active bool
	err := r.client.QueryRow(ctx,
		`SELECT is_active FROM onboarding_mobile WHERE mobile_number = $1`, mobileNumber,
	).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("onboarding: check active %q: %w", mobileNumber, err)
	}
	return active, nil
}
