// Package provider implements the transmission providers that deliver HL7
// wire text to remote endpoints, and the factory that dispatches a
// protocol to its provider.
//
// # Provider Contract
//
// Every provider implements [Provider]:
//
//   - SupportedProtocol / ProviderName: static capability queries
//   - Send: delivers one request and returns a [transmission.Result];
//     transport failures and cancellation come back as failed Results,
//     only truly unexpected faults surface as a *transmission.ProviderError
//   - ValidateEndpoint: syntax-only check, never touches the network
//   - TestConnection: a payload-free reachability probe
//
// A provider rejects a request whose protocol does not match its own
// before any network activity.
//
// # Implementations
//
//   - [HTTPProvider]: POSTs the text with an HL7 content type over
//     HTTP or HTTPS (TLS 1.2/1.3); 2xx responses become acknowledgments.
//   - [MLLPProvider]: frames the text as 0x0B + payload + 0x1C 0x0D over a
//     raw TCP connection and de-frames the acknowledgment reply.
//   - [SFTPProvider]: uploads the text as a uniquely named file over SSH,
//     resolving credentials from request headers at send time.
//
// # Factory
//
// [Factory.Get] first consults the registry of pre-registered provider
// instances (deployments substitute test doubles this way) and falls back
// to constructing one from the factory's dependencies. HTTP and HTTPS both
// resolve to the HTTP provider; TLS is decided by the endpoint scheme. An
// unsupported protocol is a caller error ([ErrUnsupportedProtocol]),
// strictly distinct from a missing-dependency construction failure
// ([DependencyError]).
package provider
