package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// ErrUnsupportedProtocol is returned when a caller requests a protocol the
// factory has no provider for. It is a caller error, never to be conflated
// with a construction failure.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// DependencyError is an operational failure: a provider could not be
// constructed because a required dependency is missing.
type DependencyError struct {
	Protocol transmission.Protocol
	Missing  string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("cannot construct %s provider: missing %s", e.Protocol, e.Missing)
}

// Timeouts are the per-protocol fallback timeouts applied when a request
// carries none. Zero fields keep the provider's built-in default.
type Timeouts struct {
	HTTP time.Duration
	MLLP time.Duration
	SFTP time.Duration
}

// ForProtocol returns the configured fallback for a protocol, or zero
// when none is set. HTTPS shares the HTTP value.
func (t Timeouts) ForProtocol(p transmission.Protocol) time.Duration {
	switch p {
	case transmission.ProtocolHTTP, transmission.ProtocolHTTPS:
		return t.HTTP
	case transmission.ProtocolMLLP:
		return t.MLLP
	case transmission.ProtocolSFTP:
		return t.SFTP
	}
	return 0
}

// Dependencies are the environment-supplied collaborators providers are
// constructed from.
type Dependencies struct {
	// HTTPClient is the shared transport client, safe for concurrent
	// reuse across requests.
	HTTPClient *http.Client

	// Logger is the diagnostics sink handed to every provider.
	Logger *slog.Logger

	// Timeouts overrides the per-protocol fallback timeouts for
	// constructed providers.
	Timeouts Timeouts
}

// Factory dispatches a protocol to its provider. A pre-registered
// instance always wins over construction, so deployments can substitute
// test doubles per protocol. Constructed providers are cached.
type Factory struct {
	deps Dependencies

	mu       sync.RWMutex
	registry map[transmission.Protocol]Provider
}

// NewFactory creates a factory with no pre-registered providers.
func NewFactory(deps Dependencies) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{
		deps:     deps,
		registry: make(map[transmission.Protocol]Provider),
	}
}

// Register pre-registers an instance for a protocol, replacing any
// previous registration.
func (f *Factory) Register(protocol transmission.Protocol, p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[protocol] = p
}

// Supports reports whether protocol can be dispatched at all.
func (f *Factory) Supports(protocol transmission.Protocol) bool {
	return protocol.Valid()
}

// Get resolves a provider for protocol. HTTP and HTTPS both resolve to
// the HTTP provider; TLS enforcement comes from the endpoint's own scheme.
// An out-of-range protocol returns ErrUnsupportedProtocol; a construction
// failure returns a *DependencyError.
func (f *Factory) Get(protocol transmission.Protocol) (Provider, error) {
	if !protocol.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, string(protocol))
	}

	key := protocol
	if key == transmission.ProtocolHTTPS {
		key = transmission.ProtocolHTTP
	}

	f.mu.RLock()
	if p, ok := f.registry[key]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.registry[key]; ok {
		return p, nil
	}

	p, err := f.construct(key)
	if err != nil {
		return nil, err
	}
	f.registry[key] = p
	return p, nil
}

func (f *Factory) construct(protocol transmission.Protocol) (Provider, error) {
	switch protocol {
	case transmission.ProtocolHTTP:
		if f.deps.HTTPClient == nil {
			return nil, &DependencyError{Protocol: protocol, Missing: "shared HTTP client"}
		}
		p := NewHTTPProvider(f.deps.HTTPClient, f.deps.Logger)
		if d := f.deps.Timeouts.HTTP; d > 0 {
			p.timeout = d
		}
		return p, nil
	case transmission.ProtocolMLLP:
		p := NewMLLPProvider(f.deps.Logger)
		if d := f.deps.Timeouts.MLLP; d > 0 {
			p.timeout = d
		}
		return p, nil
	case transmission.ProtocolSFTP:
		p := NewSFTPProvider(f.deps.Logger)
		if d := f.deps.Timeouts.SFTP; d > 0 {
			p.timeout = d
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, string(protocol))
	}
}
