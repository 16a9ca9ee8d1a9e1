// Package settings reads the system_settings table that every check and
// the pipeline engine itself consult for thresholds, allow-lists, and the
// durable cursor. Grounded on the config lookups each original_source
// checks/*.py performs inline ("SELECT setting_value FROM system_settings
// WHERE setting_key = %s") and on packages/store's Query style.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brivas/sms-validation-bridge/packages/store"
)

// ErrNotFound is returned when a setting key has no row.
var ErrNotFound = errors.New("settings: key not found")

// Store reads and writes system_settings rows.
type Store struct {
	client *store.Client
}

// New wraps a store client.
func New(client *store.Client) *Store {
	return &Store{client: client}
}

// Get returns the raw text value for key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.client.QueryRow(ctx,
		`SELECT setting_value FROM system_settings WHERE setting_key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("settings: get %q: %w", key, err)
	}
	return value, nil
}

// Set upserts key to value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.client.Exec(ctx,
		`INSERT INTO system_settings (setting_key, setting_value) VALUES ($1, $2)
		 ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("settings: set %q: %w", key, err)
	}
	return nil
}

// All dumps every setting row, for the admin API.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.client.Query(ctx, `SELECT setting_key, setting_value FROM system_settings`)
	if err != nil {
		return nil, fmt.Errorf("settings: list: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("settings: scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// GetString returns the value for key, or def if the key is absent.
func (s *Store) GetString(ctx context.Context, key, def string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// GetBool decodes the value as a boolean the way the original code compares
// string settings ("foreign_number_validation" style flags stored as the
// literal text "true"/"false"), falling back to def if absent.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}

// GetInt decodes the value as an integer, falling back to def if absent.
func (s *Store) GetInt(ctx context.Context, key string, def int) (int, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(v))
	if convErr != nil {
		return 0, fmt.Errorf("settings: %q is not an integer: %w", key, convErr)
	}
	return n, nil
}

// GetStringSlice decodes the value as a JSON array of strings
// (allowed_country_codes is stored this way), falling back to def if the
// key is absent or fails to parse as JSON — original_source's
// foreign_number_check.py falls back to a default list on any parse
// failure rather than failing the check outright.
func (s *Store) GetStringSlice(ctx context.Context, key string, def []string) ([]string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	if jsonErr := json.Unmarshal([]byte(v), &out); jsonErr != nil {
		return def, nil
	}
	return out, nil
}
