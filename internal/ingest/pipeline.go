package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vitalsentry/vitalsentry-backend/internal/detector"
	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/metrics"
	"github.com/vitalsentry/vitalsentry-backend/internal/repository"
)

// Store is the slice of the repository the pipeline writes through.
type Store interface {
	InsertVitals(ctx context.Context, sample *models.VitalSample) error
	InsertAlert(ctx context.Context, a *models.Anomaly) error
	SetConfig(ctx context.Context, key, value string) error
}

// Pipeline turns one inbound message into persisted vitals, detector output
// and republished payloads. Each sample is processed to completion before
// the worker takes the next; multiple workers may run pipelines concurrently
// against the same store.
type Pipeline struct {
	store    Store
	selector *detector.Selector
	pub      Publisher
	log      *slog.Logger
}

func NewPipeline(store Store, selector *detector.Selector, pub Publisher, log *slog.Logger) *Pipeline {
	return &Pipeline{store: store, selector: selector, pub: pub, log: log}
}

// HandleEvent dispatches one transport event.
func (p *Pipeline) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventConnected:
		p.log.Info("transport connected")
	case EventDisconnected:
		p.log.Warn("transport disconnected", "error", ev.Err)
	case EventMessageReceived:
		p.handleMessage(ctx, ev.Topic, ev.Payload)
	}
}

func (p *Pipeline) handleMessage(ctx context.Context, topic string, payload []byte) {
	switch topic {
	case TopicConfig:
		if err := p.ApplyConfigChange(ctx, payload); err != nil {
			metrics.IngestErrorsTotal.WithLabelValues("config").Inc()
			p.log.Error("applying config change", "error", err)
		}
	case TopicRawVitals:
		var sample models.VitalSample
		if err := json.Unmarshal(payload, &sample); err != nil {
			metrics.SamplesRejectedTotal.Inc()
			p.log.Warn("invalid sample payload", "error", err)
			return
		}
		if _, err := p.ProcessSample(ctx, &sample); err != nil {
			if errors.Is(err, models.ErrValidation) {
				p.log.Warn("sample rejected", "error", err)
				return
			}
			p.log.Error("processing sample", "error", err)
		}
	default:
		p.log.Debug("ignoring message on unhandled topic", "topic", topic)
	}
}

// ProcessSample runs the full ingestion path for one validated-or-rejected
// sample: persist the vitals row, republish the normalized reading, evaluate
// the active detector, then persist and publish each anomaly. The REST
// ingress feeds the same path.
func (p *Pipeline) ProcessSample(ctx context.Context, sample *models.VitalSample) ([]models.Anomaly, error) {
	// One snapshot of the selection for the whole event. Defaulting the
	// subject and resolving the detector from separate reads would let a
	// concurrent Select produce a kind/subject pair that was never set
	// together.
	det, sel := p.selector.Active()
	if sample.UserID == "" {
		sample.UserID = sel.UserID
	}
	if err := sample.Validate(); err != nil {
		metrics.SamplesRejectedTotal.Inc()
		return nil, err
	}

	if err := p.store.InsertVitals(ctx, sample); err != nil {
		metrics.IngestErrorsTotal.WithLabelValues("persist_vitals").Inc()
		return nil, fmt.Errorf("%w: persisting sample: %v", models.ErrStorage, err)
	}
	metrics.SamplesIngestedTotal.Inc()

	if body, err := json.Marshal(sample); err == nil {
		if err := p.pub.Publish(ctx, TopicVitals, body); err != nil {
			p.log.Error("publishing vitals", "error", err)
		}
	}

	anomalies, evalErr := det.Evaluate(ctx, sample)
	if evalErr != nil {
		metrics.IngestErrorsTotal.WithLabelValues("detect").Inc()
	}

	for i := range anomalies {
		a := &anomalies[i]
		if err := p.store.InsertAlert(ctx, a); err != nil {
			metrics.IngestErrorsTotal.WithLabelValues("persist_alert").Inc()
			p.log.Error("persisting alert", "parameter", a.Parameter, "error", err)
			continue
		}
		metrics.AnomaliesDetectedTotal.WithLabelValues(a.Severity, string(sel.Kind)).Inc()
		if body, err := json.Marshal(a); err == nil {
			if err := p.pub.Publish(ctx, TopicAlerts, body); err != nil {
				p.log.Error("publishing alert", "error", err)
			}
		}
	}

	return anomalies, evalErr
}

// configChange is the config-topic payload shape. Either field may be
// omitted to leave that half of the selection unchanged.
type configChange struct {
	DetectorType string `json:"detector_type"`
	UserID       string `json:"user_id"`
}

// ApplyConfigChange mutates the detector selection from a config message and
// persists the result so a restart resumes with the same selection.
func (p *Pipeline) ApplyConfigChange(ctx context.Context, payload []byte) error {
	var change configChange
	if err := json.Unmarshal(payload, &change); err != nil {
		return fmt.Errorf("%w: invalid config payload: %v", models.ErrValidation, err)
	}

	kind := change.DetectorType
	if kind == "" {
		kind = string(p.selector.Current().Kind)
	}
	sel, err := p.selector.Select(kind, change.UserID)
	if err != nil {
		return err
	}
	p.log.Info("detector selection changed", "detector", sel.Kind, "user_id", sel.UserID)

	if err := p.store.SetConfig(ctx, repository.ConfigKeyDetectorType, string(sel.Kind)); err != nil {
		return fmt.Errorf("%w: persisting detector type: %v", models.ErrStorage, err)
	}
	if err := p.store.SetConfig(ctx, repository.ConfigKeyUserID, sel.UserID); err != nil {
		return fmt.Errorf("%w: persisting user id: %v", models.ErrStorage, err)
	}
	return nil
}
