package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// defaultSFTPTimeout applies when a request carries no timeout.
const defaultSFTPTimeout = 15 * time.Second

const defaultSFTPPort = "22"

// Credential header keys resolved at send time.
const (
	HeaderUsername       = "username"
	HeaderPassword       = "password"
	HeaderPrivateKeyPath = "private-key-path"
	HeaderPassphrase     = "passphrase"
)

// SFTPProvider delivers HL7 text by uploading it as a file over SSH.
// Credentials arrive with each request, so endpoint validation is
// syntax-only.
type SFTPProvider struct {
	logger  *slog.Logger
	timeout time.Duration // fallback when a request carries none
}

// NewSFTPProvider creates an SFTP provider.
func NewSFTPProvider(logger *slog.Logger) *SFTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SFTPProvider{logger: logger, timeout: defaultSFTPTimeout}
}

func (p *SFTPProvider) SupportedProtocol() transmission.Protocol {
	return transmission.ProtocolSFTP
}

func (p *SFTPProvider) ProviderName() string {
	return "sftp"
}

// sftpTarget is a parsed sftp endpoint.
type sftpTarget struct {
	username string // from the URL; overridden by the username header
	host     string
	port     string
	dir      string
}

func (t *sftpTarget) addr() string {
	return net.JoinHostPort(t.host, t.port)
}

// parseSFTPEndpoint accepts [sftp://][user@]host[:port][/path] with port
// defaulting to 22 and path to the root directory.
func parseSFTPEndpoint(endpoint string) (*sftpTarget, error) {
	raw := endpoint
	if !strings.Contains(raw, "://") {
		raw = "sftp://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q is not a valid sftp address: %w", endpoint, err)
	}
	if u.Scheme != "sftp" {
		return nil, fmt.Errorf("endpoint %q has scheme %q, want sftp", endpoint, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("endpoint %q is missing a host", endpoint)
	}

	t := &sftpTarget{
		host: u.Hostname(),
		port: u.Port(),
		dir:  u.Path,
	}
	if u.User != nil {
		t.username = u.User.Username()
	}
	if t.port == "" {
		t.port = defaultSFTPPort
	}
	if t.dir == "" {
		t.dir = "/"
	}
	return t, nil
}

// resolveAuth builds the SSH client configuration from request headers,
// falling back to the URL-embedded username. Password and private-key
// authentication are both supported; at least one must be present.
func resolveAuth(target *sftpTarget, headers map[string]string) (*ssh.ClientConfig, error) {
	username := headers[HeaderUsername]
	if username == "" {
		username = target.username
	}
	if username == "" {
		return nil, fmt.Errorf("no username in headers or endpoint")
	}

	var methods []ssh.AuthMethod
	if password, ok := headers[HeaderPassword]; ok && password != "" {
		methods = append(methods, ssh.Password(password))
	}
	if keyPath, ok := headers[HeaderPrivateKeyPath]; ok && keyPath != "" {
		keyBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key %s: %w", keyPath, err)
		}
		var signer ssh.Signer
		if passphrase := headers[HeaderPassphrase]; passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", keyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no credentials supplied for user %s", username)
	}

	return &ssh.ClientConfig{
		User: username,
		Auth: methods,
		// Host keys are the configuration collaborator's concern; the
		// gateway receives already-resolved credentials per request.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}

// RemoteFilename derives the unique upload name for one attempt.
func RemoteFilename(attemptID string, now time.Time) string {
	return fmt.Sprintf("hl7_%s_%s.hl7", attemptID, now.UTC().Format("20060102T150405Z"))
}

// Send uploads the message to the endpoint's directory under a filename
// derived from the attempt id and the current UTC time. Authentication,
// path and connection failures map to distinct, cause-preserving errors.
func (p *SFTPProvider) Send(ctx context.Context, req *transmission.Request) (*transmission.Result, error) {
	started := time.Now()

	if msg := checkRequest(req, transmission.ProtocolSFTP); msg != "" {
		return transmission.Failed(req.AttemptID, msg, time.Since(started)), nil
	}

	target, err := parseSFTPEndpoint(req.Endpoint)
	if err != nil {
		return transmission.Failed(req.AttemptID, err.Error(), time.Since(started)), nil
	}

	sshConfig, err := resolveAuth(target, req.Headers)
	if err != nil {
		return transmission.Failed(req.AttemptID,
			fmt.Sprintf("authentication setup failed: %v", err), time.Since(started)), nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	sshConfig.Timeout = timeout

	if err := ctx.Err(); err != nil {
		return p.cancelled(req, started, err), nil
	}

	sshClient, err := ssh.Dial("tcp", target.addr(), sshConfig)
	if err != nil {
		elapsed := time.Since(started)
		if ctx.Err() != nil {
			return p.cancelled(req, started, ctx.Err()), nil
		}
		if strings.Contains(err.Error(), "unable to authenticate") ||
			strings.Contains(err.Error(), "handshake failed") {
			return transmission.Failed(req.AttemptID,
				fmt.Sprintf("authentication to %s failed: %v", target.addr(), err), elapsed), nil
		}
		return transmission.Failed(req.AttemptID,
			fmt.Sprintf("connecting to %s: %v", target.addr(), err), elapsed), nil
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return transmission.Failed(req.AttemptID,
			fmt.Sprintf("opening sftp session on %s: %v", target.addr(), err), time.Since(started)), nil
	}
	defer client.Close()

	if err := ctx.Err(); err != nil {
		return p.cancelled(req, started, err), nil
	}

	filename := RemoteFilename(req.AttemptID, time.Now())
	remotePath := path.Join(target.dir, filename)

	f, err := client.Create(remotePath)
	if err != nil {
		return transmission.Failed(req.AttemptID,
			fmt.Sprintf("creating remote path %s: %v", remotePath, err), time.Since(started)), nil
	}
	_, writeErr := f.Write([]byte(req.Message))
	closeErr := f.Close()
	if writeErr != nil {
		return transmission.Failed(req.AttemptID,
			fmt.Sprintf("uploading to %s: %v", remotePath, writeErr), time.Since(started)), nil
	}
	if closeErr != nil {
		return transmission.Failed(req.AttemptID,
			fmt.Sprintf("finalizing upload to %s: %v", remotePath, closeErr), time.Since(started)), nil
	}

	elapsed := time.Since(started)
	p.logger.Debug("sftp upload complete",
		"endpoint", target.addr(), "attempt_id", req.AttemptID, "file", remotePath, "elapsed", elapsed)
	return transmission.Succeeded(req.AttemptID, fmt.Sprintf("uploaded %s", remotePath), elapsed), nil
}

func (p *SFTPProvider) cancelled(req *transmission.Request, started time.Time, cause error) *transmission.Result {
	elapsed := time.Since(started)
	return transmission.Failed(req.AttemptID,
		fmt.Sprintf("request cancelled after %v: %v", elapsed.Round(time.Millisecond), cause), elapsed)
}

// ValidateEndpoint is syntax-only: credentials may only arrive at send
// time, so no probe is possible here.
func (p *SFTPProvider) ValidateEndpoint(endpoint string) bool {
	_, err := parseSFTPEndpoint(endpoint)
	return err == nil
}

// TestConnection probes TCP reachability of the SSH port without
// authenticating or transferring anything.
func (p *SFTPProvider) TestConnection(ctx context.Context, endpoint string) bool {
	target, err := parseSFTPEndpoint(endpoint)
	if err != nil {
		return false
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", target.addr())
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
