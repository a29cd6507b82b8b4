package transmission

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocol(t *testing.T) {
	for _, name := range []string{"http", "https", "mllp", "sftp"} {
		p, err := ParseProtocol(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
		assert.True(t, p.Valid())
	}

	_, err := ParseProtocol("gopher")
	assert.Error(t, err)
	assert.False(t, Protocol("gopher").Valid())
}

func TestRequestValidate(t *testing.T) {
	valid := &Request{
		AttemptID: "a1",
		Endpoint:  "https://example.com/hl7",
		Message:   "MSH|...",
		Protocol:  ProtocolHTTPS,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty endpoint", func(r *Request) { r.Endpoint = "" }},
		{"empty message", func(r *Request) { r.Message = "" }},
		{"bad protocol", func(r *Request) { r.Protocol = "carrier-pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := *valid
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestResultConstructors(t *testing.T) {
	ok := Succeeded("attempt-1", "AA", 120*time.Millisecond)
	assert.True(t, ok.Success)
	assert.Equal(t, "attempt-1", ok.AttemptID)
	assert.Equal(t, "AA", ok.Acknowledgment)
	assert.Empty(t, ok.Error)
	assert.Equal(t, 120*time.Millisecond, ok.ResponseTime)
	assert.False(t, ok.SentAt.IsZero())

	failed := Failed("attempt-2", "connection refused", 5*time.Millisecond)
	assert.False(t, failed.Success)
	assert.Equal(t, "connection refused", failed.Error)
	assert.Empty(t, failed.Acknowledgment)
}

func TestProviderError(t *testing.T) {
	cause := errors.New("boom")
	err := &ProviderError{
		Protocol:   ProtocolHTTP,
		Endpoint:   "https://example.com",
		AttemptID:  "attempt-3",
		StatusCode: 502,
		Err:        cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "https://example.com")
	assert.Contains(t, err.Error(), "attempt-3")
	assert.Contains(t, err.Error(), "502")

	noStatus := &ProviderError{Protocol: ProtocolMLLP, Endpoint: "lis:2575", AttemptID: "attempt-4", Err: cause}
	assert.NotContains(t, noStatus.Error(), "status")
}
