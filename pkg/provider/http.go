package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// hl7ContentType is sent with every HTTP delivery.
const hl7ContentType = "x-application/hl7-v2+er7; charset=utf-8"

// defaultHTTPTimeout applies when a request carries no timeout.
const defaultHTTPTimeout = 30 * time.Second

// Recommended TLS 1.2 cipher suites for HTTPS endpoints.
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPConfig contains settings for the shared HTTP client.
type HTTPConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	IdleConnTimeout time.Duration
}

// DefaultHTTPConfig returns the default client configuration.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MinTLSVersion:   tls.VersionTLS12,
		MaxTLSVersion:   tls.VersionTLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewHTTPClient builds the shared transport client from config. The client
// carries no global timeout; each Send bounds itself through its context.
func NewHTTPClient(config *HTTPConfig) *http.Client {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion:   config.MinTLSVersion,
				MaxVersion:   config.MaxTLSVersion,
				CipherSuites: config.CipherSuites,
			},
			IdleConnTimeout:     config.IdleConnTimeout,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
		},
	}
}

// HTTPProvider delivers HL7 text over HTTP or HTTPS. TLS is selected by
// the endpoint's own scheme; there is no separate HTTPS code path.
type HTTPProvider struct {
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration // fallback when a request carries none
}

// NewHTTPProvider creates an HTTP provider around a shared client. The
// client must be safe for concurrent reuse; a nil client gets the default.
func NewHTTPProvider(client *http.Client, logger *slog.Logger) *HTTPProvider {
	if client == nil {
		client = NewHTTPClient(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{client: client, logger: logger, timeout: defaultHTTPTimeout}
}

func (p *HTTPProvider) SupportedProtocol() transmission.Protocol {
	return transmission.ProtocolHTTP
}

func (p *HTTPProvider) ProviderName() string {
	return "http"
}

// Send POSTs the raw message text to the endpoint. A 2xx response is a
// success whose body becomes the acknowledgment; any other status is a
// failed Result embedding status, reason and body. Network errors and
// cancellation also come back as failed Results.
func (p *HTTPProvider) Send(ctx context.Context, req *transmission.Request) (*transmission.Result, error) {
	started := time.Now()

	if msg := checkRequest(req, transmission.ProtocolHTTP, transmission.ProtocolHTTPS); msg != "" {
		return transmission.Failed(req.AttemptID, msg, time.Since(started)), nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, strings.NewReader(req.Message))
	if err != nil {
		// Endpoint syntax survived validation but not request
		// construction; this is an unexpected fault.
		return nil, &transmission.ProviderError{
			Protocol:  req.Protocol,
			Endpoint:  req.Endpoint,
			AttemptID: req.AttemptID,
			Err:       fmt.Errorf("creating request: %w", err),
		}
	}
	httpReq.Header.Set("Content-Type", hl7ContentType)
	httpReq.Header.Set("User-Agent", "go-hl7gateway/1.0")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		elapsed := time.Since(started)
		switch {
		case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
			return transmission.Failed(req.AttemptID,
				fmt.Sprintf("request cancelled after %v: %v", elapsed.Round(time.Millisecond), err), elapsed), nil
		case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
			return transmission.Failed(req.AttemptID,
				fmt.Sprintf("timed out after %v: %v", elapsed.Round(time.Millisecond), err), elapsed), nil
		}
		return transmission.Failed(req.AttemptID, fmt.Sprintf("http request failed: %v", err), elapsed), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		elapsed := time.Since(started)
		return transmission.Failed(req.AttemptID, fmt.Sprintf("reading response body: %v", err), elapsed), nil
	}
	elapsed := time.Since(started)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("http delivery rejected",
			"endpoint", req.Endpoint, "attempt_id", req.AttemptID, "status", resp.StatusCode)
		result := transmission.Failed(req.AttemptID,
			fmt.Sprintf("endpoint returned %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), string(body)),
			elapsed)
		result.StatusCode = resp.StatusCode
		return result, nil
	}

	p.logger.Debug("http delivery acknowledged",
		"endpoint", req.Endpoint, "attempt_id", req.AttemptID, "elapsed", elapsed)
	result := transmission.Succeeded(req.AttemptID, string(body), elapsed)
	result.StatusCode = resp.StatusCode
	return result, nil
}

// ValidateEndpoint accepts absolute http(s) URLs with a host.
func (p *HTTPProvider) ValidateEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// TestConnection issues a payload-free HEAD request. Any HTTP response,
// whatever its status, proves the endpoint is reachable.
func (p *HTTPProvider) TestConnection(ctx context.Context, endpoint string) bool {
	if !p.ValidateEndpoint(endpoint) {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
