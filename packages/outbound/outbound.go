// Package outbound commits an accepted message to the outbound store, adds
// its local mobile number to the membership cache so later duplicates are
// caught, and runs two best-effort, non-authoritative sinks: a cloud HTTP
// forward and an optional Kafka publish. Grounded on
// original_source/sms_server.py's forward-after-insert pattern (POST with a
// bearer token, 5s timeout, forward failures logged as warnings and
// swallowed) plus the teacher's segmentio/kafka-go dependency, wired here as
// the additive A5 sink SPEC_FULL.md describes.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/brivas/sms-validation-bridge/packages/errs"
	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/store"
)

// MembershipAdder is the subset of packages/membership.Cache the emitter
// needs.
type MembershipAdder interface {
	Add(ctx context.Context, localMobile string) error
}

// Config configures the best-effort forward sinks. CloudForwardURL and
// KafkaBrokers/KafkaTopic are each independently optional; an empty value
// disables that sink.
type Config struct {
	CloudForwardURL   string
	CloudForwardAPIKey string
	ForwardTimeout    time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// Emitter commits accepted messages.
type Emitter struct {
	store      *store.Client
	membership MembershipAdder
	httpClient *http.Client
	kafka      *kafka.Writer
	cfg        Config
	logger     *zap.Logger
}

// New builds an Emitter. A nil or zero-value Config disables both optional
// sinks, leaving only the authoritative Postgres write and membership add.
func New(client *store.Client, membership MembershipAdder, cfg Config, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ForwardTimeout == 0 {
		cfg.ForwardTimeout = 5 * time.Second
	}

	e := &Emitter{
		store:      client,
		membership: membership,
		httpClient: &http.Client{Timeout: cfg.ForwardTimeout},
		cfg:        cfg,
		logger:     logger,
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		e.kafka = &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafka.LeastBytes{},
		}
	}

	return e
}

// Close releases the Kafka writer, if one is configured.
func (e *Emitter) Close() error {
	if e.kafka == nil {
		return nil
	}
	return e.kafka.Close()
}

// Commit persists msg to out_sms, adds its local mobile number to the
// membership cache, and then runs the best-effort sinks. Only the persist
// and membership-add steps are authoritative; a failure in either is
// returned to the caller (the pipeline) so the message is not silently
// dropped. Forward/Kafka failures are logged and swallowed.
func (e *Emitter) Commit(ctx context.Context, msg model.AcceptedMessage) error {
	if err := e.persist(ctx, msg); err != nil {
		return fmt.Errorf("outbound: persist %q: %w", msg.UUID, err)
	}

	if err := e.membership.Add(ctx, msg.LocalMobile); err != nil {
		return fmt.Errorf("outbound: register membership %q: %w", msg.UUID, err)
	}

	e.forwardToCloud(ctx, msg)
	e.publishToKafka(ctx, msg)

	return nil
}

// AcceptedNumbers returns every distinct local_mobile already committed to
// out_sms, for rebuilding the membership cache at startup (spec.md §4.3).
func (e *Emitter) AcceptedNumbers(ctx context.Context) ([]string, error) {
	rows, err := e.store.Query(ctx, `SELECT DISTINCT local_mobile FROM out_sms`)
	if err != nil {
		return nil, fmt.Errorf("outbound: list accepted numbers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("outbound: scan accepted number: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (e *Emitter) persist(ctx context.Context, msg model.AcceptedMessage) error {
	_, err := e.store.Exec(ctx,
		`INSERT INTO out_sms (uuid, sender_number, sms_message, country_code, local_mobile, committed_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (uuid) DO NOTHING`,
		msg.UUID, msg.SenderNumber, msg.SMSMessage, msg.CountryCode, msg.LocalMobile, msg.CommittedAt,
	)
	return err
}

func (e *Emitter) forwardToCloud(ctx context.Context, msg model.AcceptedMessage) {
	if e.cfg.CloudForwardURL == "" {
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		e.logger.Warn("cloud forward: marshal failed", zap.String("uuid", msg.UUID), zap.Error(err))
		return
	}

	forwardCtx, cancel := context.WithTimeout(ctx, e.cfg.ForwardTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(forwardCtx, http.MethodPost, e.cfg.CloudForwardURL, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("cloud forward: build request failed", zap.String("uuid", msg.UUID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.CloudForwardAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.CloudForwardAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("cloud forward failed",
			zap.String("uuid", msg.UUID), zap.Error(fmt.Errorf("%w: %v", errs.ForwardFailure, err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		e.logger.Warn("cloud forward rejected",
			zap.String("uuid", msg.UUID), zap.Int("status", resp.StatusCode),
			zap.Error(errs.ForwardFailure))
	}
}

func (e *Emitter) publishToKafka(ctx context.Context, msg model.AcceptedMessage) {
	if e.kafka == nil {
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		e.logger.Warn("kafka publish: marshal failed", zap.String("uuid", msg.UUID), zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, e.cfg.ForwardTimeout)
	defer cancel()

	if err := e.kafka.WriteMessages(writeCtx, kafka.Message{Key: []byte(msg.UUID), Value: body}); err != nil {
		e.logger.Warn("kafka publish failed",
			zap.String("uuid", msg.UUID), zap.Error(fmt.Errorf("%w: %v", errs.ForwardFailure, err)))
	}
}
