// Package transmission defines the value types exchanged between the
// gateway, the transmission providers, and the audit store: the protocol
// enumeration, the per-attempt request and result records, and the
// provider-boundary error type.
package transmission

import (
	"fmt"
	"time"
)

// Protocol identifies a supported transmission protocol.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolMLLP  Protocol = "mllp"
	ProtocolSFTP  Protocol = "sftp"
)

// Valid reports whether p is one of the supported protocols.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolMLLP, ProtocolSFTP:
		return true
	}
	return false
}

func (p Protocol) String() string {
	return string(p)
}

// ParseProtocol converts a protocol name into a Protocol. It accepts the
// lowercase wire names used throughout the gateway.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown protocol %q", s)
	}
	return p, nil
}

// Request describes a single delivery attempt handed to a provider.
// A Request is immutable once constructed; providers never modify it.
type Request struct {
	// AttemptID uniquely identifies this attempt across all protocols.
	AttemptID string

	// Endpoint is the destination in provider-specific syntax
	// (URL for HTTP, host:port for MLLP, sftp://[user@]host[:port][/path]).
	Endpoint string

	// Message is the raw HL7 wire text to deliver.
	Message string

	// Headers carries caller-supplied metadata. The HTTP provider sends
	// them as HTTP headers; the SFTP provider resolves credentials from
	// them (username, password, private-key-path, passphrase).
	Headers map[string]string

	// Timeout bounds the whole attempt. Non-positive means the provider's
	// default applies.
	Timeout time.Duration

	// Protocol must equal the invoked provider's supported protocol.
	Protocol Protocol
}

// Validate checks the request invariants shared by all providers.
func (r *Request) Validate() error {
	if r.Endpoint == "" {
		return fmt.Errorf("request endpoint is empty")
	}
	if r.Message == "" {
		return fmt.Errorf("request message is empty")
	}
	if !r.Protocol.Valid() {
		return fmt.Errorf("unknown protocol %q", string(r.Protocol))
	}
	return nil
}

// Result is the outcome of one delivery attempt. Exactly one of
// Acknowledgment and Error is populated.
type Result struct {
	Success        bool
	AttemptID      string
	Error          string
	Acknowledgment string
	ResponseTime   time.Duration
	SentAt         time.Time

	// StatusCode carries the HTTP response status when the protocol has
	// one; zero for socket and file-transfer protocols.
	StatusCode int
}

// Succeeded builds a successful Result.
func Succeeded(attemptID, ack string, elapsed time.Duration) *Result {
	return &Result{
		Success:        true,
		AttemptID:      attemptID,
		Acknowledgment: ack,
		ResponseTime:   elapsed,
		SentAt:         time.Now().UTC(),
	}
}

// Failed builds a failed Result.
func Failed(attemptID, errText string, elapsed time.Duration) *Result {
	return &Result{
		Success:      false,
		AttemptID:    attemptID,
		Error:        errText,
		ResponseTime: elapsed,
		SentAt:       time.Now().UTC(),
	}
}
