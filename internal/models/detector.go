package models

import "fmt"

// DetectorKind selects the active anomaly-detection strategy.
type DetectorKind string

const (
	DetectorRangeBased   DetectorKind = "range_based"
	DetectorUserBaseline DetectorKind = "user_baseline"
)

// ParseDetectorKind validates a detector kind received from the control plane
// or the config topic. Unknown kinds are rejected and leave the prior
// selection unchanged.
func ParseDetectorKind(s string) (DetectorKind, error) {
	switch DetectorKind(s) {
	case DetectorRangeBased, DetectorUserBaseline:
		return DetectorKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown detector kind %q", ErrConfig, s)
}

// DetectorSelection is the process-wide (kind, subject) pair read on every
// ingestion event.
type DetectorSelection struct {
	Kind   DetectorKind `json:"detector_type"`
	UserID string       `json:"user_id"`
}
