// Package gateway sequences one transmission attempt end to end: build the
// HL7 wire text, resolve a provider, deliver the message and audit the
// outcome.
//
// [Gateway.Handle] is a strictly sequential state machine with no partial
// commits: attempt id generation, protocol check, message build, provider
// dispatch, delivery, unconditional audit write, result. Every failure
// along the way is normalized into a failed [SendResult] backed by exactly
// one audit entry; no raw transport error reaches the caller. The two
// exceptions are caller-requested cancellation and an audit-write failure,
// both of which surface as a returned error alongside whatever result was
// assembled.
package gateway
