package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/settings"
	"github.com/brivas/sms-validation-bridge/packages/store"
)

// pgQueue implements QueueReader and MonitorWriter against input_sms and
// sms_monitor directly.
type pgQueue struct {
	client *store.Client
}

// NewQueue builds the Postgres-backed QueueReader/MonitorWriter pair.
func NewQueue(client *store.Client) interface {
	QueueReader
	MonitorWriter
} {
	return &pgQueue{client: client}
}

// FetchAfter returns up to limit input_sms rows whose uuid sorts after
// cursor, ordered ascending. uuid is text-comparable because every row is
// stamped with a UUIDv7 at ingress (see packages/idgen).
func (q *pgQueue) FetchAfter(ctx context.Context, cursor string, limit int) ([]model.InputMessage, error) {
	rows, err := q.client.Query(ctx,
		`SELECT uuid, sender_number, sms_message, received_timestamp
		 FROM input_sms
		 WHERE uuid > $1
		 ORDER BY uuid ASC
		 LIMIT $2`,
		cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch batch: %w", err)
	}
	defer rows.Close()

	var out []model.InputMessage
	for rows.Next() {
		var m model.InputMessage
		if err := rows.Scan(&m.UUID, &m.SenderNumber, &m.SMSMessage, &m.ReceivedTimestamp); err != nil {
			return nil, fmt.Errorf("pipeline: scan input_sms row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Record upserts the monitor row for pm.UUID — an upsert rather than a
// plain insert because spec.md §8 requires re-running the pipeline over the
// same input range (after a cursor reset) to be idempotent.
func (q *pgQueue) Record(ctx context.Context, pm model.ProcessedMessage) error {
	_, err := q.client.Exec(ctx,
		`INSERT INTO sms_monitor (
			uuid, overall_status, failed_at_check, processing_completed_at,
			result_blacklist, result_duplicate, result_foreign_number,
			result_header_hash, result_mobile, result_time_window
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (uuid) DO UPDATE SET
			overall_status = EXCLUDED.overall_status,
			failed_at_check = EXCLUDED.failed_at_check,
			processing_completed_at = EXCLUDED.processing_completed_at,
			result_blacklist = EXCLUDED.result_blacklist,
			result_duplicate = EXCLUDED.result_duplicate,
			result_foreign_number = EXCLUDED.result_foreign_number,
			result_header_hash = EXCLUDED.result_header_hash,
			result_mobile = EXCLUDED.result_mobile,
			result_time_window = EXCLUDED.result_time_window`,
		pm.UUID, pm.OverallStatus, pm.FailedAtCheck, pm.ProcessingCompletedAt,
		pm.ResultBlacklist, pm.ResultDuplicate, pm.ResultForeignNumber,
		pm.ResultHeaderHash, pm.ResultMobile, pm.ResultTimeWindow,
	)
	if err != nil {
		return fmt.Errorf("pipeline: record monitor row %q: %w", pm.UUID, err)
	}
	return nil
}

// MonitorReader fetches one monitor row, for the admin API's round-trip
// inspection endpoint.
type MonitorReader struct {
	client *store.Client
}

// NewMonitorReader wraps a store client.
func NewMonitorReader(client *store.Client) *MonitorReader {
	return &MonitorReader{client: client}
}

// ErrNotFound is returned when no monitor row exists for the requested uuid.
var ErrNotFound = errors.New("pipeline: monitor row not found")

// Get fetches the monitor row for uuid.
func (m *MonitorReader) Get(ctx context.Context, uuid string) (model.ProcessedMessage, error) {
	var pm model.ProcessedMessage
	pm.UUID = uuid
	err := m.client.QueryRow(ctx,
		`SELECT overall_status, failed_at_check, processing_completed_at,
			result_blacklist, result_duplicate, result_foreign_number,
			result_header_hash, result_mobile, result_time_window
		 FROM sms_monitor WHERE uuid = $1`, uuid,
	).Scan(
		&pm.OverallStatus, &pm.FailedAtCheck, &pm.ProcessingCompletedAt,
		&pm.ResultBlacklist, &pm.ResultDuplicate, &pm.ResultForeignNumber,
		&pm.ResultHeaderHash, &pm.ResultMobile, &pm.ResultTimeWindow,
	)
	if err != nil {
		return model.ProcessedMessage{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return pm, nil
}

// settingsCursor implements CursorStore on top of the "last_processed_uuid"
// setting.
type settingsCursor struct {
	settings *settings.Store
}

// NewCursor builds a CursorStore backed by system_settings.
func NewCursor(s *settings.Store) CursorStore {
	return &settingsCursor{settings: s}
}

func (c *settingsCursor) Cursor(ctx context.Context) (string, error) {
	return c.settings.GetString(ctx, "last_processed_uuid", "")
}

func (c *settingsCursor) SetCursor(ctx context.Context, uuid string) error {
	return c.settings.Set(ctx, "last_processed_uuid", uuid)
}
