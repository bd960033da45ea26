package detector

import (
	"errors"
	"testing"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/logger"
)

func newTestSelector() *Selector {
	log := logger.StdLogger()
	return NewSelector(
		NewRangeDetector(log),
		NewBaselineDetector(newMemStore(), DefaultMinSamples, DefaultZThreshold, log),
	)
}

func TestSelectorDefaults(t *testing.T) {
	s := newTestSelector()

	sel := s.Current()
	if sel.Kind != models.DetectorRangeBased {
		t.Errorf("Default kind = %s, want %s", sel.Kind, models.DetectorRangeBased)
	}
	if sel.UserID != "default" {
		t.Errorf("Default user = %s, want default", sel.UserID)
	}

	active, _ := s.Active()
	if _, ok := active.(*RangeDetector); !ok {
		t.Errorf("Default active detector = %T, want *RangeDetector", active)
	}
}

func TestSelectorSwitch(t *testing.T) {
	s := newTestSelector()

	sel, err := s.Select("user_baseline", "alice")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Kind != models.DetectorUserBaseline || sel.UserID != "alice" {
		t.Errorf("Selection = %+v, want user_baseline/alice", sel)
	}

	active, activeSel := s.Active()
	if _, ok := active.(*BaselineDetector); !ok {
		t.Fatalf("Active detector = %T, want *BaselineDetector", active)
	}
	if activeSel != sel {
		t.Errorf("Active selection = %+v, want %+v", activeSel, sel)
	}

	// The subject must be propagated into the adaptive detector itself so
	// samples without an explicit user id attribute to the right baselines.
	if got := s.Baseline().CurrentUserID(); got != "alice" {
		t.Errorf("Baseline detector user = %s, want alice", got)
	}
}

func TestSelectorUnknownKindLeavesPriorSelection(t *testing.T) {
	s := newTestSelector()

	if _, err := s.Select("user_baseline", "alice"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	_, err := s.Select("neural_net", "bob")
	if err == nil {
		t.Fatal("Expected error for unknown detector kind")
	}
	if !errors.Is(err, models.ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}

	sel := s.Current()
	if sel.Kind != models.DetectorUserBaseline || sel.UserID != "alice" {
		t.Errorf("Selection after rejected switch = %+v, want user_baseline/alice", sel)
	}
	if got := s.Baseline().CurrentUserID(); got != "alice" {
		t.Errorf("Baseline detector user after rejected switch = %s, want alice", got)
	}
}

func TestSelectorEmptyUserKeepsSubject(t *testing.T) {
	s := newTestSelector()

	if _, err := s.Select("user_baseline", "alice"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	sel, err := s.Select("range_based", "")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.UserID != "alice" {
		t.Errorf("Subject after kind-only switch = %s, want alice", sel.UserID)
	}
}

func TestSelectorRestore(t *testing.T) {
	s := newTestSelector()

	if err := s.Restore("user_baseline", "carol"); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	sel := s.Current()
	if sel.Kind != models.DetectorUserBaseline || sel.UserID != "carol" {
		t.Errorf("Restored selection = %+v, want user_baseline/carol", sel)
	}

	if err := s.Restore("bogus", "x"); err == nil {
		t.Error("Expected Restore to reject unknown kind")
	}
}
