package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"github.com/sirosfoundation/go-hl7gateway/pkg/hl7"
	"github.com/sirosfoundation/go-hl7gateway/pkg/provider"
	"github.com/sirosfoundation/go-hl7gateway/pkg/storage"
	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// Command timeout bounds in seconds; out-of-range values fall back to the
// default.
const (
	minTimeoutSeconds     = 5
	maxTimeoutSeconds     = 300
	defaultTimeoutSeconds = 30
)

// SendCommand is one request to deliver a clinical message.
type SendCommand struct {
	// Endpoint is the destination in the protocol's own syntax.
	Endpoint string `json:"endpoint"`

	// Message is the structured clinical input; shape validation is the
	// routing layer's job, business validation happens here.
	Message hl7.BuildInput `json:"message"`

	// Source labels the system originating this attempt, for the audit
	// trail.
	Source string `json:"source"`

	Protocol transmission.Protocol `json:"protocol"`

	// Headers carries caller metadata: HTTP headers for HTTP endpoints,
	// credentials for SFTP endpoints.
	Headers map[string]string `json:"headers,omitempty"`

	// TimeoutSeconds bounds the attempt; values outside [5, 300] fall
	// back to the protocol's configured default.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`

	// Metadata is free-form caller context recorded verbatim in the
	// audit entry.
	Metadata string `json:"metadata,omitempty"`
}

// SendResult is the structured outcome returned to the caller. It always
// carries the attempt id, and the audit log id whenever the audit write
// succeeded.
type SendResult struct {
	Success        bool                  `json:"success"`
	AttemptID      string                `json:"attemptId"`
	Error          string                `json:"error,omitempty"`
	ProcessedAt    time.Time             `json:"processedAt"`
	Acknowledgment string                `json:"acknowledgment,omitempty"`
	ResponseTime   time.Duration         `json:"responseTime,omitempty"`
	Endpoint       string                `json:"endpoint"`
	Protocol       transmission.Protocol `json:"protocol"`
	Source         string                `json:"source"`
	AuditLogID     string                `json:"auditLogId,omitempty"`
}

// Gateway orchestrates builder, factory, provider and audit store.
type Gateway struct {
	factory   *provider.Factory
	store     storage.LogStore
	logger    *slog.Logger
	retention time.Duration
	timeouts  provider.Timeouts
}

// Config holds gateway construction settings.
type Config struct {
	Factory *provider.Factory
	Store   storage.LogStore
	Logger  *slog.Logger

	// Retention stamps each audit entry's expiry marker. Zero means the
	// default of 7 years, the common clinical-records horizon.
	Retention time.Duration

	// Timeouts overrides the per-protocol fallback applied when a
	// command carries no timeout. Zero fields keep 30 seconds.
	Timeouts provider.Timeouts
}

const defaultRetention = 7 * 365 * 24 * time.Hour

// New creates a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Factory == nil {
		return nil, errors.New("provider factory is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("audit log store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	return &Gateway{
		factory:   cfg.Factory,
		store:     cfg.Store,
		logger:    cfg.Logger,
		retention: cfg.Retention,
		timeouts:  cfg.Timeouts,
	}, nil
}

// Handle executes one attempt. Every call, success or failure, produces
// exactly one audit entry. The returned error is non-nil only when the
// caller cancelled the context or the audit write itself failed; in both
// cases the result is still returned with whatever was assembled.
func (g *Gateway) Handle(ctx context.Context, cmd *SendCommand) (*SendResult, error) {
	attemptID := uuid.New().String()
	started := time.Now()

	result := &SendResult{
		AttemptID: attemptID,
		Endpoint:  cmd.Endpoint,
		Protocol:  cmd.Protocol,
		Source:    cmd.Source,
	}

	// Unsupported protocol is rejected before anything touches the
	// network or the builder.
	if !g.factory.Supports(cmd.Protocol) {
		g.logger.Warn("rejecting unsupported protocol",
			"protocol", string(cmd.Protocol), "attempt_id", attemptID)
		return g.finish(ctx, cmd, result, transmission.Failed(attemptID,
			fmt.Sprintf("unsupported protocol %q", string(cmd.Protocol)), time.Since(started)))
	}

	wireText, err := hl7.Build(&cmd.Message)
	if err != nil {
		g.logger.Warn("message build failed",
			"attempt_id", attemptID, "patient_id", cmd.Message.Patient.ID, "error", err)
		return g.finish(ctx, cmd, result, transmission.Failed(attemptID, err.Error(), time.Since(started)))
	}

	req := &transmission.Request{
		AttemptID: attemptID,
		Endpoint:  cmd.Endpoint,
		Message:   wireText,
		Headers:   cmd.Headers,
		Timeout:   clampTimeout(cmd.TimeoutSeconds, g.timeouts.ForProtocol(cmd.Protocol)),
		Protocol:  cmd.Protocol,
	}

	prov, err := g.factory.Get(cmd.Protocol)
	if err != nil {
		// Reaching here means construction failed; the protocol itself
		// was already accepted above.
		g.logger.Error("provider construction failed",
			"protocol", string(cmd.Protocol), "attempt_id", attemptID, "error", err)
		return g.finish(ctx, cmd, result, transmission.Failed(attemptID, err.Error(), time.Since(started)))
	}

	sendResult, err := prov.Send(ctx, req)
	if err != nil {
		g.logger.Error("provider fault",
			"protocol", string(cmd.Protocol), "endpoint", cmd.Endpoint,
			"attempt_id", attemptID, "error", err)
		sendResult = transmission.Failed(attemptID, err.Error(), time.Since(started))
		var provErr *transmission.ProviderError
		if errors.As(err, &provErr) {
			sendResult.StatusCode = provErr.StatusCode
		}
	}

	return g.finish(ctx, cmd, result, sendResult)
}

// finish persists the audit entry, completes the caller-facing result and
// applies the cancellation and persistence error policy.
func (g *Gateway) finish(ctx context.Context, cmd *SendCommand, result *SendResult, sr *transmission.Result) (*SendResult, error) {
	result.Success = sr.Success
	result.Error = sr.Error
	result.Acknowledgment = sr.Acknowledgment
	result.ResponseTime = sr.ResponseTime
	result.ProcessedAt = time.Now().UTC()

	entry := &storage.TransmissionLog{
		ID:             ksuid.New().String(),
		AttemptID:      sr.AttemptID,
		PartitionKey:   storage.PartitionKey(sr.AttemptID),
		Endpoint:       cmd.Endpoint,
		Protocol:       cmd.Protocol,
		MessageType:    string(hl7.MessageTypeORU),
		PatientID:      cmd.Message.Patient.ID,
		Success:        sr.Success,
		Error:          sr.Error,
		Acknowledgment: sr.Acknowledgment,
		ResponseTimeMS: sr.ResponseTime.Milliseconds(),
		Source:         cmd.Source,
		StatusCode:     sr.StatusCode,
		Metadata:       cmd.Metadata,
		CreatedAt:      result.ProcessedAt,
		ExpiresAt:      result.ProcessedAt.Add(g.retention),
	}

	// The audit write runs on a detached context: a cancelled send must
	// still be recorded.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := g.store.SaveLog(saveCtx, entry); err != nil {
		// A message can have been sent while its audit write failed;
		// that gap is surfaced, never swallowed.
		g.logger.Error("audit write failed",
			"attempt_id", sr.AttemptID, "success", sr.Success, "error", err)
		return result, fmt.Errorf("transmission %s completed (success=%v) but audit write failed: %w",
			sr.AttemptID, sr.Success, err)
	}
	result.AuditLogID = entry.ID

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// clampTimeout bounds a command timeout to [5, 300] seconds. Unset and
// out-of-range values fall back to the protocol's configured default, or
// 30 seconds when none is configured.
func clampTimeout(seconds int, fallback time.Duration) time.Duration {
	if seconds >= minTimeoutSeconds && seconds <= maxTimeoutSeconds {
		return time.Duration(seconds) * time.Second
	}
	if fallback > 0 {
		return fallback
	}
	return defaultTimeoutSeconds * time.Second
}
