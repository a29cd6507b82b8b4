package transmission

import "fmt"

// ProviderError is raised for truly unexpected provider faults, the ones
// that cannot be expressed as a failed Result. It always carries enough
// context for the orchestrator to write a complete audit entry.
type ProviderError struct {
	Protocol   Protocol
	Endpoint   string
	AttemptID  string
	StatusCode int // zero when the transport has no status concept
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider failed for %s (attempt %s, status %d): %v",
			e.Protocol, e.Endpoint, e.AttemptID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider failed for %s (attempt %s): %v",
		e.Protocol, e.Endpoint, e.AttemptID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
