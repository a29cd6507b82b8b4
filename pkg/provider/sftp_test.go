package provider

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

func TestParseSFTPEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		username string
		host     string
		port     string
		dir      string
	}{
		{"sftp://lab@files.example.com:2022/results", "lab", "files.example.com", "2022", "/results"},
		{"sftp://files.example.com", "", "files.example.com", "22", "/"},
		{"files.example.com/inbox", "", "files.example.com", "22", "/inbox"},
		{"lab@files.example.com", "lab", "files.example.com", "22", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			target, err := parseSFTPEndpoint(tt.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tt.username, target.username)
			assert.Equal(t, tt.host, target.host)
			assert.Equal(t, tt.port, target.port)
			assert.Equal(t, tt.dir, target.dir)
		})
	}
}

func TestParseSFTPEndpoint_Invalid(t *testing.T) {
	_, err := parseSFTPEndpoint("https://files.example.com")
	assert.Error(t, err)

	_, err = parseSFTPEndpoint("sftp://")
	assert.Error(t, err)
}

func TestResolveAuth_PasswordFromHeaders(t *testing.T) {
	target, err := parseSFTPEndpoint("sftp://files.example.com")
	require.NoError(t, err)

	cfg, err := resolveAuth(target, map[string]string{
		HeaderUsername: "lab",
		HeaderPassword: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "lab", cfg.User)
	assert.Len(t, cfg.Auth, 1)
}

func TestResolveAuth_URLUsernameFallback(t *testing.T) {
	target, err := parseSFTPEndpoint("sftp://lab@files.example.com")
	require.NoError(t, err)

	cfg, err := resolveAuth(target, map[string]string{HeaderPassword: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.User)
}

func TestResolveAuth_MissingCredentials(t *testing.T) {
	target, err := parseSFTPEndpoint("sftp://lab@files.example.com")
	require.NoError(t, err)

	_, err = resolveAuth(target, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")

	anon, err := parseSFTPEndpoint("sftp://files.example.com")
	require.NoError(t, err)
	_, err = resolveAuth(anon, map[string]string{HeaderPassword: "secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no username")
}

func TestResolveAuth_MissingKeyFile(t *testing.T) {
	target, err := parseSFTPEndpoint("sftp://lab@files.example.com")
	require.NoError(t, err)

	_, err = resolveAuth(target, map[string]string{
		HeaderPrivateKeyPath: "/nonexistent/id_ed25519",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading private key")
}

func TestRemoteFilename(t *testing.T) {
	at := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
	name := RemoteFilename("attempt-1", at)
	assert.Equal(t, "hl7_attempt-1_20250115T093000Z.hl7", name)
}

func TestSFTPSend_ProtocolMismatch(t *testing.T) {
	p := NewSFTPProvider(nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-1",
		Endpoint:  "sftp://lab@files.example.com",
		Message:   "MSH|...",
		Protocol:  transmission.ProtocolHTTP,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not handled by this provider")
}

func TestSFTPSend_MissingCredentialsFailsBeforeNetwork(t *testing.T) {
	p := NewSFTPProvider(nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-2",
		Endpoint:  "sftp://files.invalid",
		Message:   "MSH|...",
		Protocol:  transmission.ProtocolSFTP,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "authentication setup failed")
}

func TestSFTPSend_ConnectionFailure(t *testing.T) {
	// Reserve a port with nothing listening on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := NewSFTPProvider(nil)
	result, err := p.Send(context.Background(), &transmission.Request{
		AttemptID: "attempt-3",
		Endpoint:  "sftp://lab@" + addr,
		Message:   "MSH|...",
		Headers:   map[string]string{HeaderPassword: "secret"},
		Timeout:   2 * time.Second,
		Protocol:  transmission.ProtocolSFTP,
	})
	require.NoError(t, err, "connection failure is a failed result, not an error")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connecting to")
}

func TestSFTPValidateEndpoint(t *testing.T) {
	p := NewSFTPProvider(nil)
	assert.True(t, p.ValidateEndpoint("sftp://lab@files.example.com:2022/results"))
	assert.True(t, p.ValidateEndpoint("files.example.com"))
	assert.False(t, p.ValidateEndpoint("https://files.example.com"))
	assert.False(t, p.ValidateEndpoint("sftp://"))
}

func TestSFTPProviderIdentity(t *testing.T) {
	p := NewSFTPProvider(nil)
	assert.Equal(t, transmission.ProtocolSFTP, p.SupportedProtocol())
	assert.Equal(t, "sftp", p.ProviderName())
}
