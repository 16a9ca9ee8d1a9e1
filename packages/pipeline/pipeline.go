// Package pipeline implements the single-threaded, cooperative validation
// loop: fetch a batch of unprocessed input_sms rows in uuid order, run each
// through its configured check sequence, record the outcome, commit
// accepted messages, and advance a durable cursor — all grounded on
// spec.md §4.7/§5 and, for the cursor's lexicographic-over-UUIDv7 design,
// the decision recorded in SPEC_FULL.md §3.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brivas/sms-validation-bridge/packages/checks"
	"github.com/brivas/sms-validation-bridge/packages/errs"
	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/normalize"

	"go.uber.org/zap"
)

// QueueReader fetches input_sms rows strictly after cursor, in uuid order,
// up to limit rows.
type QueueReader interface {
	FetchAfter(ctx context.Context, cursor string, limit int) ([]model.InputMessage, error)
}

// MonitorWriter persists the per-check outcome of one message.
type MonitorWriter interface {
	Record(ctx context.Context, pm model.ProcessedMessage) error
}

// CursorStore reads and writes the durable "last_processed_uuid" cursor.
type CursorStore interface {
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, uuid string) error
}

// Outbound commits one accepted message — persisting it, registering it in
// the membership cache, and running any best-effort forwards.
type Outbound interface {
	Commit(ctx context.Context, msg model.AcceptedMessage) error
}

// SettingsReader is the subset of packages/settings.Store the engine reads
// once per batch.
type SettingsReader interface {
	GetStringSlice(ctx context.Context, key string, def []string) ([]string, error)
	GetString(ctx context.Context, key, def string) (string, error)
	GetInt(ctx context.Context, key string, def int) (int, error)
}

// Deps wires an Engine to its stores.
type Deps struct {
	Queue    QueueReader
	Monitor  MonitorWriter
	Cursor   CursorStore
	Outbound Outbound
	Settings SettingsReader
	Checks   *checks.Registry
	Logger   *zap.Logger
}

// defaultCheckSequence is used when the check_sequence setting is absent —
// the full six checks in the order spec.md §4.6 lists them.
var defaultCheckSequence = []model.CheckName{
	model.CheckBlacklist,
	model.CheckDuplicate,
	model.CheckForeignNumber,
	model.CheckHeaderHash,
	model.CheckMobile,
	model.CheckTimeWindow,
}

const defaultBatchSize = 100

// Engine runs the validation loop.
type Engine struct {
	deps Deps
}

// New builds an Engine from deps.
func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{deps: deps}
}

// Run polls RunOnce every pollInterval until ctx is cancelled. It never
// returns an error for a single failed batch — RunOnce logs and the loop
// keeps going, per spec.md §5's failure-isolation requirement that one bad
// message or one transient store error doesn't stop the pipeline.
func (e *Engine) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if _, err := e.RunOnce(ctx); err != nil {
			e.deps.Logger.Error("pipeline batch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch and returns how many messages it processed.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	cursor, err := e.deps.Cursor.Cursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read cursor: %v", errs.StoreTransient, err)
	}

	sequence, err := e.loadCheckSequence(ctx)
	if err != nil {
		return 0, err
	}

	allowedCodes, err := e.deps.Settings.GetStringSlice(ctx, "allowed_country_codes", []string{"91"})
	if err != nil {
		return 0, fmt.Errorf("%w: load allowed_country_codes: %v", errs.StoreTransient, err)
	}
	defaultCode, err := e.deps.Settings.GetString(ctx, "default_country_code", "91")
	if err != nil {
		return 0, fmt.Errorf("%w: load default_country_code: %v", errs.StoreTransient, err)
	}
	batchSize, err := e.deps.Settings.GetInt(ctx, "batch_size", defaultBatchSize)
	if err != nil {
		return 0, fmt.Errorf("%w: load batch_size: %v", errs.StoreTransient, err)
	}

	messages, err := e.deps.Queue.FetchAfter(ctx, cursor, batchSize)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch batch: %v", errs.StoreTransient, err)
	}

	for i, msg := range messages {
		if err := e.processOne(ctx, msg, sequence, allowedCodes, defaultCode); err != nil {
			if errors.Is(err, errs.StoreTransient) {
				// The outcome was not durably recorded: stop without
				// advancing the cursor so the message is picked up again.
				return i, err
			}
			e.deps.Logger.Error("message processing failed",
				zap.String("uuid", msg.UUID), zap.Error(err))
		}
		if err := e.deps.Cursor.SetCursor(ctx, msg.UUID); err != nil {
			return len(messages), fmt.Errorf("%w: advance cursor: %v", errs.StoreTransient, err)
		}
	}

	return len(messages), nil
}

// loadCheckSequence does not validate names against the registry — an
// unrecognized name is a per-message FAIL (see processOne), not a reason to
// refuse the whole batch. Validating upfront would let one bad setting
// value stall every message behind it forever.
func (e *Engine) loadCheckSequence(ctx context.Context) ([]model.CheckName, error) {
	raw, err := e.deps.Settings.GetStringSlice(ctx, "check_sequence", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load check_sequence: %v", errs.StoreTransient, err)
	}
	if len(raw) == 0 {
		return defaultCheckSequence, nil
	}
	names := make([]model.CheckName, len(raw))
	for i, n := range raw {
		names[i] = model.CheckName(n)
	}
	return names, nil
}

// processOne runs msg through sequence, short-circuiting on the first
// failure, records the monitor row, and commits the message to the
// outbound store when every check passed.
func (e *Engine) processOne(ctx context.Context, msg model.InputMessage, sequence []model.CheckName, allowedCodes []string, defaultCode string) error {
	norm := normalize.Number(msg.SenderNumber, allowedCodes, defaultCode)
	in := checks.Input{Message: msg, CountryCode: norm.CountryCode, LocalMobile: norm.LocalMobile}

	pm := model.ProcessedMessage{UUID: msg.UUID}
	accepted := true
	failedAt := ""

	for _, name := range sequence {
		fn, err := e.deps.Checks.Resolve(name)
		if err != nil {
			// check_sequence named something outside the registry: this
			// message FAILs at name and the pipeline moves on — a bad
			// setting value must not stall messages behind it.
			accepted = false
			failedAt = string(name)
			break
		}

		result, err := fn(ctx, in)
		if err != nil {
			pm.SetResult(name, model.Fail)
			accepted = false
			failedAt = string(name)
			pm.OverallStatus = model.StatusInvalid
			pm.FailedAtCheck = failedAt
			pm.ProcessingCompletedAt = time.Now().UTC()
			if recErr := e.deps.Monitor.Record(ctx, pm); recErr != nil {
				return fmt.Errorf("%w: record monitor row: %v", errs.StoreTransient, recErr)
			}
			return fmt.Errorf("%w: check %q: %v", errs.CheckInternalError, name, err)
		}

		pm.SetResult(name, result)
		if result == model.Fail {
			accepted = false
			failedAt = string(name)
			break
		}
	}

	pm.ProcessingCompletedAt = time.Now().UTC()
	if accepted {
		pm.OverallStatus = model.StatusValid
	} else {
		pm.OverallStatus = model.StatusInvalid
		pm.FailedAtCheck = failedAt
		e.deps.Logger.Debug("message rejected",
			zap.String("uuid", msg.UUID), zap.String("failed_check", failedAt), zap.Error(errs.CheckFail))
	}

	if err := e.deps.Monitor.Record(ctx, pm); err != nil {
		return fmt.Errorf("%w: record monitor row: %v", errs.StoreTransient, err)
	}

	if !accepted {
		return nil
	}

	accMsg := model.AcceptedMessage{
		UUID:         msg.UUID,
		SenderNumber: msg.SenderNumber,
		SMSMessage:   msg.SMSMessage,
		CountryCode:  norm.CountryCode,
		LocalMobile:  norm.LocalMobile,
		CommittedAt:  time.Now().UTC(),
	}
	if err := e.deps.Outbound.Commit(ctx, accMsg); err != nil {
		return fmt.Errorf("%w: commit accepted message: %v", errs.StoreTransient, err)
	}
	return nil
}
