package provider

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// MLLP framing bytes: a start block before the payload, an end block and a
// carriage return after it. No checksum, no length prefix.
const (
	mllpStartBlock     = 0x0B
	mllpEndBlock       = 0x1C
	mllpCarriageReturn = 0x0D
)

// defaultMLLPTimeout applies when a request carries no timeout.
const defaultMLLPTimeout = 10 * time.Second

// Frame wraps message in MLLP framing bytes.
func Frame(message string) []byte {
	framed := make([]byte, 0, len(message)+3)
	framed = append(framed, mllpStartBlock)
	framed = append(framed, []byte(message)...)
	framed = append(framed, mllpEndBlock, mllpCarriageReturn)
	return framed
}

// MLLPProvider delivers HL7 text over a raw TCP connection using MLLP
// framing.
type MLLPProvider struct {
	logger  *slog.Logger
	timeout time.Duration // fallback when a request carries none
}

// NewMLLPProvider creates an MLLP provider.
func NewMLLPProvider(logger *slog.Logger) *MLLPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MLLPProvider{logger: logger, timeout: defaultMLLPTimeout}
}

func (p *MLLPProvider) SupportedProtocol() transmission.Protocol {
	return transmission.ProtocolMLLP
}

func (p *MLLPProvider) ProviderName() string {
	return "mllp"
}

// Send opens a timeout-bounded TCP connection, writes the framed message
// and de-frames the acknowledgment reply. Socket failures, malformed
// exchanges and cancellation all come back as failed Results.
func (p *MLLPProvider) Send(ctx context.Context, req *transmission.Request) (*transmission.Result, error) {
	started := time.Now()

	if msg := checkRequest(req, transmission.ProtocolMLLP); msg != "" {
		return transmission.Failed(req.AttemptID, msg, time.Since(started)), nil
	}

	addr, err := parseMLLPEndpoint(req.Endpoint)
	if err != nil {
		return transmission.Failed(req.AttemptID, err.Error(), time.Since(started)), nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return p.failure(req, started, ctx, fmt.Sprintf("connecting to %s: %v", addr, err)), nil
	}
	defer conn.Close()

	// An explicit cancel (as opposed to a deadline) must interrupt a
	// blocked read, so the connection is torn down when ctx ends.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(Frame(req.Message)); err != nil {
		return p.failure(req, started, ctx, fmt.Sprintf("writing frame to %s: %v", addr, err)), nil
	}

	ack, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return p.failure(req, started, ctx, fmt.Sprintf("reading acknowledgment from %s: %v", addr, err)), nil
	}

	elapsed := time.Since(started)
	p.logger.Debug("mllp delivery acknowledged",
		"endpoint", addr, "attempt_id", req.AttemptID, "elapsed", elapsed)
	return transmission.Succeeded(req.AttemptID, ack, elapsed), nil
}

func (p *MLLPProvider) failure(req *transmission.Request, started time.Time, ctx context.Context, msg string) *transmission.Result {
	elapsed := time.Since(started)
	if ctx.Err() == context.Canceled {
		msg = fmt.Sprintf("request cancelled after %v: %s", elapsed.Round(time.Millisecond), msg)
	} else if ctx.Err() == context.DeadlineExceeded {
		msg = fmt.Sprintf("timed out after %v: %s", elapsed.Round(time.Millisecond), msg)
	}
	return transmission.Failed(req.AttemptID, msg, elapsed)
}

// readFrame runs the three-state de-framing scan: discard until the start
// block, accumulate until the end block, then decode the accumulated
// bytes.
func readFrame(r *bufio.Reader) (string, error) {
	// State 1: discard until the start block.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("waiting for start block: %w", err)
		}
		if b == mllpStartBlock {
			break
		}
	}

	// State 2: accumulate until the end block.
	var payload []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("frame truncated before end block: %w", err)
		}
		if b == mllpEndBlock {
			break
		}
		payload = append(payload, b)
	}

	// State 3: decode. The trailing carriage return may or may not
	// arrive before the peer closes; it is not part of the payload.
	return string(payload), nil
}

// parseMLLPEndpoint accepts "host:port" with an optional mllp:// scheme.
func parseMLLPEndpoint(endpoint string) (string, error) {
	addr := strings.TrimPrefix(endpoint, "mllp://")
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("endpoint %q is not host:port: %w", endpoint, err)
	}
	if host == "" || port == "" {
		return "", fmt.Errorf("endpoint %q is missing host or port", endpoint)
	}
	return net.JoinHostPort(host, port), nil
}

// ValidateEndpoint accepts host:port with an optional mllp:// scheme.
func (p *MLLPProvider) ValidateEndpoint(endpoint string) bool {
	_, err := parseMLLPEndpoint(endpoint)
	return err == nil
}

// TestConnection dials the endpoint and immediately disconnects; no bytes
// are written.
func (p *MLLPProvider) TestConnection(ctx context.Context, endpoint string) bool {
	addr, err := parseMLLPEndpoint(endpoint)
	if err != nil {
		return false
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
