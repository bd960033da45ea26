package detector

import (
	"sync"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
)

// Selector owns the process-wide (detector kind, subject id) pair. All
// mutation goes through Select, which validates the kind and propagates the
// subject into the adaptive detector inside the same critical section, so a
// reader can never observe a kind/subject pair that was not set together.
type Selector struct {
	mu       sync.RWMutex
	kind     models.DetectorKind
	userID   string
	rangeDet *RangeDetector
	baseDet  *BaselineDetector
}

// NewSelector starts with the range-based strategy and the default subject.
func NewSelector(rangeDet *RangeDetector, baseDet *BaselineDetector) *Selector {
	return &Selector{
		kind:     models.DetectorRangeBased,
		userID:   "default",
		rangeDet: rangeDet,
		baseDet:  baseDet,
	}
}

// Select switches the active strategy and subject atomically. Unknown kinds
// are rejected and leave the prior selection unchanged.
func (s *Selector) Select(kind, userID string) (models.DetectorSelection, error) {
	k, err := models.ParseDetectorKind(kind)
	if err != nil {
		return models.DetectorSelection{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = k
	if userID != "" {
		s.userID = userID
	}
	s.baseDet.SetUserID(s.userID)
	return models.DetectorSelection{Kind: s.kind, UserID: s.userID}, nil
}

// Restore applies a previously persisted selection at startup, validating the
// kind the same way Select does.
func (s *Selector) Restore(kind, userID string) error {
	_, err := s.Select(kind, userID)
	return err
}

// Current returns the active (kind, subject) pair.
func (s *Selector) Current() models.DetectorSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.DetectorSelection{Kind: s.kind, UserID: s.userID}
}

// Active returns the detector implementing the current strategy together
// with the selection it was resolved under.
func (s *Selector) Active() (Detector, models.DetectorSelection) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sel := models.DetectorSelection{Kind: s.kind, UserID: s.userID}
	if s.kind == models.DetectorUserBaseline {
		return s.baseDet, sel
	}
	return s.rangeDet, sel
}

// Baseline exposes the adaptive detector for its auxiliary operations
// (statistics, reset).
func (s *Selector) Baseline() *BaselineDetector {
	return s.baseDet
}
