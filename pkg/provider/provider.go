package provider

import (
	"context"

	"github.com/sirosfoundation/go-hl7gateway/pkg/transmission"
)

// Provider delivers HL7 wire text to an endpoint over one protocol.
// Implementations hold no per-request mutable state and are safe for
// concurrent use.
type Provider interface {
	// SupportedProtocol returns the protocol this provider handles.
	SupportedProtocol() transmission.Protocol

	// ProviderName returns a stable human-readable name for diagnostics.
	ProviderName() string

	// Send delivers one request. Transport failures and cancellation are
	// reported as failed Results; the returned error is reserved for
	// truly unexpected faults, wrapped in *transmission.ProviderError.
	Send(ctx context.Context, req *transmission.Request) (*transmission.Result, error)

	// ValidateEndpoint reports whether endpoint is syntactically valid
	// for this provider. It never touches the network.
	ValidateEndpoint(endpoint string) bool

	// TestConnection probes endpoint reachability without sending a
	// payload.
	TestConnection(ctx context.Context, endpoint string) bool
}

// checkRequest applies the shared pre-flight checks: request shape and
// protocol match. A mismatch is reported before any network activity.
// The HTTP provider accepts both the http and https protocols; every
// other provider accepts exactly its own.
func checkRequest(req *transmission.Request, accepted ...transmission.Protocol) string {
	if err := req.Validate(); err != nil {
		return err.Error()
	}
	for _, p := range accepted {
		if req.Protocol == p {
			return ""
		}
	}
	return "protocol " + string(req.Protocol) + " is not handled by this provider"
}
