package detect

import "fmt"

// DetectorError wraps a failure inside a single detector.
type DetectorError struct {
	Detector string
	Err      error
}

// Error implements the error interface.
func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %s: %v", e.Detector, e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectorError) Unwrap() error {
	return e.Err
}

// ProbeError reports a failed host probe. Probes are never retried.
type ProbeError struct {
	ProbeID string
	Target  string
	Err     error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s of %s failed: %v", e.ProbeID, e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}
