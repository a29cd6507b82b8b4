package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

func TestHTTPSend_Acknowledged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, hl7ContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, "lab-west", r.Header.Get("X-Source"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "MSH|")

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("MSA|AA|CTRL0001"))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.Client(), nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-1",
		Endpoint:  server.URL,
		Message:   "MSH|^~\\&|HL7GW|LAB",
		Headers:   map[string]string{"X-Source": "lab-west"},
		Protocol:  transmission.ProtocolHTTP,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "MSA|AA|CTRL0001", result.Acknowledgment)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, result.Error)
	assert.Greater(t, result.ResponseTime, time.Duration(0))
}

func TestHTTPSend_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream interface engine down"))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.Client(), nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-2",
		Endpoint:  server.URL,
		Message:   "MSH|...",
		Protocol:  transmission.ProtocolHTTP,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
	assert.Contains(t, result.Error, "502")
	assert.Contains(t, result.Error, "Bad Gateway")
	assert.Contains(t, result.Error, "upstream interface engine down")
	assert.Empty(t, result.Acknowledgment)
}

func TestHTTPSend_AcceptsHTTPSProtocol(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("MSA|AA|1"))
	}))
	defer server.Close()

	p := NewHTTPProvider(server.Client(), nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-3",
		Endpoint:  server.URL,
		Message:   "MSH|...",
		Protocol:  transmission.ProtocolHTTPS,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestHTTPSend_ProtocolMismatch(t *testing.T) {
	p := NewHTTPProvider(nil, nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-4",
		Endpoint:  "https://example.com/hl7",
		Message:   "MSH|...",
		Protocol:  transmission.ProtocolMLLP,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not handled by this provider")
}

func TestHTTPSend_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewHTTPProvider(nil, nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-5",
		Endpoint:  url,
		Message:   "MSH|...",
		Timeout:   2 * time.Second,
		Protocol:  transmission.ProtocolHTTP,
	})
	require.NoError(t, err, "network failure is a failed result, not an error")

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestHTTPSend_Cancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	p := NewHTTPProvider(server.Client(), nil)
	result, err := p.Send(ctx, &transmission.Request{
		AttemptID: "attempt-6",
		Endpoint:  server.URL,
		Message:   "MSH|...",
		Timeout:   30 * time.Second,
		Protocol:  transmission.ProtocolHTTP,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "cancelled")
	assert.Greater(t, result.ResponseTime, time.Duration(0))
}

func TestHTTPSend_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.Client(), nil)
	started := time.Now()
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-7",
		Endpoint:  server.URL,
		Message:   "MSH|...",
		Timeout:   300 * time.Millisecond,
		Protocol:  transmission.ProtocolHTTP,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestHTTPValidateEndpoint(t *testing.T) {
	p := NewHTTPProvider(nil, nil)
	assert.True(t, p.ValidateEndpoint("http://lis.example.com/hl7"))
	assert.True(t, p.ValidateEndpoint("https://lis.example.com:8443/hl7"))
	assert.False(t, p.ValidateEndpoint("mllp://lis:2575"))
	assert.False(t, p.ValidateEndpoint("https://"))
	assert.False(t, p.ValidateEndpoint("not a url"))
}

func TestHTTPTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	p := NewHTTPProvider(server.Client(), nil)
	// Any HTTP response counts as reachable, even an unhappy status.
	assert.True(t, p.TestConnection(context.Background(), server.URL))
	assert.False(t, p.TestConnection(context.Background(), "mllp://lis:2575"))
}

func TestHTTPProviderIdentity(t *testing.T) {
	p := NewHTTPProvider(nil, nil)
	assert.Equal(t, transmission.ProtocolHTTP, p.SupportedProtocol())
	assert.Equal(t, "http", p.ProviderName())
}
