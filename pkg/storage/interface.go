// Package storage provides the append-only audit trail for transmission
// attempts.
//
// # Interface Design
//
// [LogStore] is the single repository contract: save one immutable
// [TransmissionLog] per attempt, query by patient, time window, protocol
// or outcome, compute [Statistics] over a window, and purge by age.
//
// # Implementations
//
// The mongodb sub-package provides the durable, partitioned backend with
// a TTL-based retention policy. [MemoryStore] in this package is the
// volatile in-memory backend with identical query semantics, for local
// use and tests. Backends are selected by deployment configuration, never
// by runtime type inspection.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// ErrDuplicateLog is returned when a log with the same attempt id was
// already saved. It is a distinct, catchable condition separate from
// generic persistence failure.
var ErrDuplicateLog = errors.New("transmission log already exists for attempt")

// ErrLogNotFound is returned when no log exists for an attempt id.
var ErrLogNotFound = errors.New("transmission log not found")

// partitionKeyLength is the fixed attempt-id prefix length used as the
// partition key.
const partitionKeyLength = 8

// PartitionKey derives the storage partition key from an attempt id: a
// fixed-length prefix, so load spreads across partitions while retries of
// related attempts stay together. Short ids are used whole.
func PartitionKey(attemptID string) string {
	if len(attemptID) <= partitionKeyLength {
		return attemptID
	}
	return attemptID[:partitionKeyLength]
}

// TransmissionLog is the immutable audit snapshot of one attempt.
type TransmissionLog struct {
	// ID is the audit record id, time-sortable and distinct from the
	// attempt id.
	ID string `bson:"_id" json:"id"`

	AttemptID    string `bson:"attempt_id" json:"attemptId"`
	PartitionKey string `bson:"partition_key" json:"partitionKey"`

	Endpoint    string                `bson:"endpoint" json:"endpoint"`
	Protocol    transmission.Protocol `bson:"protocol" json:"protocol"`
	MessageType string                `bson:"message_type" json:"messageType"`
	PatientID   string                `bson:"patient_id" json:"patientId"`

	Success        bool   `bson:"success" json:"success"`
	Error          string `bson:"error,omitempty" json:"error,omitempty"`
	Acknowledgment string `bson:"acknowledgment,omitempty" json:"acknowledgment,omitempty"`

	ResponseTimeMS int64  `bson:"response_time_ms" json:"responseTimeMs"`
	Source         string `bson:"source" json:"source"`
	StatusCode     int    `bson:"status_code,omitempty" json:"statusCode,omitempty"`
	Metadata       string `bson:"metadata,omitempty" json:"metadata,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	// ExpiresAt is the retention marker; the durable backend expires the
	// record once it passes.
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
}

// LogFilter narrows a ListLogs query. Zero values mean "any".
type LogFilter struct {
	PatientID string
	Protocol  transmission.Protocol
	Success   *bool
	From      time.Time
	To        time.Time
	Limit     int
}

// matches reports whether log satisfies every set field of the filter.
// Both backends share it so their query semantics cannot drift.
func (f *LogFilter) matches(log *TransmissionLog) bool {
	if f.PatientID != "" && log.PatientID != f.PatientID {
		return false
	}
	if f.Protocol != "" && log.Protocol != f.Protocol {
		return false
	}
	if f.Success != nil && log.Success != *f.Success {
		return false
	}
	if !f.From.IsZero() && log.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && log.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// ProtocolCount is the per-protocol slice of a statistics window.
type ProtocolCount struct {
	Total     int64 `bson:"total" json:"total"`
	Succeeded int64 `bson:"succeeded" json:"succeeded"`
}

// Statistics aggregates attempts over a time window.
type Statistics struct {
	From                time.Time                               `json:"from"`
	To                  time.Time                               `json:"to"`
	Total               int64                                   `json:"total"`
	Succeeded           int64                                   `json:"succeeded"`
	Failed              int64                                   `json:"failed"`
	SuccessRate         float64                                 `json:"successRate"`
	AverageResponseTime time.Duration                           `json:"averageResponseTime"`
	ByProtocol          map[transmission.Protocol]ProtocolCount `json:"byProtocol"`
}

// LogStore is the audit repository contract.
type LogStore interface {
	// SaveLog appends one log entry. Saving a second entry with the same
	// attempt id returns ErrDuplicateLog.
	SaveLog(ctx context.Context, log *TransmissionLog) error

	// GetLog retrieves the entry for an attempt id, or ErrLogNotFound.
	GetLog(ctx context.Context, attemptID string) (*TransmissionLog, error)

	// ListLogs returns entries matching filter, newest first.
	ListLogs(ctx context.Context, filter *LogFilter) ([]*TransmissionLog, error)

	// Statistics aggregates the window [from, to].
	Statistics(ctx context.Context, from, to time.Time) (*Statistics, error)

	// PurgeOlderThan removes entries created before cutoff and returns
	// the removed count.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// aggregate computes Statistics from a slice of logs. Shared by both
// backends.
func aggregate(from, to time.Time, logs []*TransmissionLog) *Statistics {
	stats := &Statistics{
		From:       from,
		To:         to,
		ByProtocol: make(map[transmission.Protocol]ProtocolCount),
	}

	var totalResponseMS int64
	for _, log := range logs {
		stats.Total++
		pc := stats.ByProtocol[log.Protocol]
		pc.Total++
		if log.Success {
			stats.Succeeded++
			pc.Succeeded++
		} else {
			stats.Failed++
		}
		stats.ByProtocol[log.Protocol] = pc
		totalResponseMS += log.ResponseTimeMS
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
		stats.AverageResponseTime = time.Duration(totalResponseMS/stats.Total) * time.Millisecond
	}
	return stats
}
