// Command simulator generates synthetic wearable telemetry and posts it to
// the ingest endpoint. Most samples are in range; a configurable fraction
// carries one or two anomalous parameters.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/logger"
	"github.com/vitalsentry/vitalsentry-backend/internal/vitals"
)

type activityBand struct {
	min, max int
	weight   float64
}

// 60% low, 30% medium, 10% high activity.
var activityBands = []activityBand{
	{0, 50, 0.6},
	{51, 100, 0.3},
	{101, 200, 0.1},
}

func pickActivity(rng *rand.Rand) int {
	roll := rng.Float64()
	acc := 0.0
	for _, band := range activityBands {
		acc += band.weight
		if roll < acc {
			return band.min + rng.Intn(band.max-band.min+1)
		}
	}
	last := activityBands[len(activityBands)-1]
	return last.min + rng.Intn(last.max-last.min+1)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func normalValue(rng *rand.Rand, param string, tier vitals.Tier) float64 {
	r, err := vitals.NormalRange(param, tier)
	if err != nil {
		return 0
	}
	return round1(r.Min + rng.Float64()*r.Width())
}

// anomalousValue lands 0.1 to 1.5 range-widths outside the normal interval,
// below or above with equal probability.
func anomalousValue(rng *rand.Rand, param string, tier vitals.Tier) float64 {
	r, err := vitals.NormalRange(param, tier)
	if err != nil {
		return 0
	}
	spread := r.Width() * 1.5
	if rng.Intn(2) == 0 {
		hi := r.Min - 0.1
		return round1(hi - rng.Float64()*spread)
	}
	lo := r.Max + 0.1
	return round1(lo + rng.Float64()*spread)
}

func generateSample(rng *rand.Rand, userID string, anomalyRate float64) map[string]interface{} {
	activity := pickActivity(rng)
	tier := vitals.ClassifyActivity(activity)

	sample := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"activity":  activity,
		"user_id":   userID,
	}

	anomalous := map[string]bool{}
	if rng.Float64() < anomalyRate {
		count := 1 + rng.Intn(2)
		perm := rng.Perm(len(models.VitalParameters))
		for _, idx := range perm[:count] {
			anomalous[models.VitalParameters[idx]] = true
		}
	}

	for _, param := range models.VitalParameters {
		if anomalous[param] {
			sample[param] = anomalousValue(rng, param, tier)
		} else {
			sample[param] = normalValue(rng, param, tier)
		}
	}
	return sample
}

func main() {
	var (
		addr        = flag.String("addr", "http://localhost:8080", "backend base URL")
		userID      = flag.String("user", "default", "subject user id")
		interval    = flag.Duration("interval", 5*time.Second, "delay between samples")
		anomalyRate = flag.Float64("anomaly-rate", 0.05, "fraction of samples with anomalous parameters")
		token       = flag.String("token", "", "bearer token (when the backend requires auth)")
	)
	flag.Parse()

	log := logger.StdLogger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client := &http.Client{Timeout: 10 * time.Second}
	url := *addr + "/api/v1/ingest"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("simulator starting", "target", url, "interval", interval.String(), "anomaly_rate", *anomalyRate)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		sample := generateSample(rng, *userID, *anomalyRate)
		if err := post(ctx, client, url, *token, sample); err != nil {
			log.Warn("failed to publish sample", "error", err)
		} else {
			log.Info("sample published",
				"activity", sample["activity"],
				"heart_rate", sample[models.ParamHeartRate])
		}

		select {
		case <-ctx.Done():
			log.Info("simulator stopped")
			return
		case <-ticker.C:
		}
	}
}

func post(ctx context.Context, client *http.Client, url, token string, sample map[string]interface{}) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}
