// Package counters maintains count_sms and blacklist_sms, the two tables
// the blacklist check reads and writes. Grounded verbatim on
// original_source/checks/blacklist_check.py: a single upsert increments the
// per-sender count and returns the new total in the same round trip.
package counters

import (
	"context"
	"fmt"
	"time"

	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/store"
)

// Store reads and writes count_sms and blacklist_sms.
type Store struct {
	client *store.Client
}

// New wraps a store client.
func New(client *store.Client) *Store {
	return &Store{client: client}
}

// Increment adds one to senderNumber's message count, creating the row on
// first sight, and returns the new total.
func (s *Store) Increment(ctx context.Context, senderNumber, countryCode, localMobile string) (int, error) {
	var count int
	err := s.client.QueryRow(ctx,
		`INSERT INTO count_sms (sender_number, message_count, country_code, local_mobile)
		 VALUES ($1, 1, $2, $3)
		 ON CONFLICT (sender_number) DO UPDATE
		   SET message_count = count_sms.message_count + 1,
		       country_code = EXCLUDED.country_code,
		       local_mobile = EXCLUDED.local_mobile
		 RETURNING message_count`,
		senderNumber, countryCode, localMobile,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counters: increment %q: %w", senderNumber, err)
	}
	return count, nil
}

// Blacklist records senderNumber as tripped, idempotently — a sender that
// trips the threshold repeatedly is inserted once.
func (s *Store) Blacklist(ctx context.Context, rec model.BlacklistRecord) error {
	if rec.TrippedAt.IsZero() {
		rec.TrippedAt = time.Now().UTC()
	}
	_, err := s.client.Exec(ctx,
		`INSERT INTO blacklist_sms (sender_number, country_code, local_mobile, tripped_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (sender_number) DO NOTHING`,
		rec.SenderNumber, rec.CountryCode, rec.LocalMobile, rec.TrippedAt,
	)
	if err != nil {
		return fmt.Errorf("counters: blacklist %q: %w", rec.SenderNumber, err)
	}
	return nil
}

// IsBlacklisted reports whether senderNumber already has a blacklist_sms
// row.
func (s *Store) IsBlacklisted(ctx context.Context, senderNumber string) (bool, error) {
	var exists bool
	err := s.client.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blacklist_sms WHERE sender_number = $1)`, senderNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("counters: is blacklisted %q: %w", senderNumber, err)
	}
	return exists, nil
}
