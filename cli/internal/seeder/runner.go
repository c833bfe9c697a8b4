package seeder

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
	"github.com/telhawk-systems/anomaly-stack/cli/internal/client"
)

// Ingester posts raw payloads to the ingestion gateway.
type Ingester interface {
	Send(token string, payload []byte, contentType string) error
}

// Creator submits validated creates.
type Creator interface {
	Create(workerToken string, req *model.CreateAnomalyRequest) (int64, error)
}

// Result summarizes one seeding run.
type Result struct {
	Sent     int
	Rejected int
	Failed   int
}

// Runner handles the seeding execution
type Runner struct {
	Config      *Config
	Ingester    Ingester
	Creator     Creator
	IngestToken string
	WorkerToken string
	Logger      *log.Logger
	generator   *Generator
}

func NewRunner(config *Config, ingester Ingester, creator Creator) *Runner {
	seed := config.Defaults.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Runner{
		Config:    config,
		Ingester:  ingester,
		Creator:   creator,
		Logger:    log.New(io.Discard, "", 0),
		generator: NewGenerator(seed, config.Defaults.Severities),
	}
}

// Run sends Count events in the configured mode and stops early if ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	d := r.Config.Defaults

	r.Logger.Printf("Starting anomaly seeder:")
	r.Logger.Printf("  Mode: %s", d.Mode)
	r.Logger.Printf("  Event count: %d", d.Count)
	r.Logger.Printf("  Interval: %v", d.Interval)
	r.Logger.Printf("  Time spread: %v", d.TimeSpread)
	if d.Mode == ModeCreate {
		r.Logger.Printf("  Invalid ratio: %.2f", d.InvalidRatio)
	}

	var res Result
	progressInterval := d.Count / 20
	if progressInterval < 100 {
		progressInterval = 100
	}

	for i := 0; i < d.Count; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		at := r.generator.EventTime(i, d.Count, d.TimeSpread)
		var err error
		switch d.Mode {
		case ModeCreate:
			err = r.create(at)
		default:
			err = r.ingest(at)
		}

		switch {
		case err == nil:
			res.Sent++
		case client.IsValidation(err):
			res.Rejected++
		default:
			r.Logger.Printf("Failed to send event %d: %v", i, err)
			res.Failed++
		}

		if done := i + 1; done%progressInterval == 0 || done == d.Count {
			r.Logger.Printf("Progress: %d/%d events (%.1f%%)", done, d.Count, float64(done)*100.0/float64(d.Count))
		}

		if d.Interval > 0 && i < d.Count-1 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(d.Interval):
			}
		}
	}

	r.Logger.Printf("Seeding complete:")
	r.Logger.Printf("  Sent: %d", res.Sent)
	if res.Rejected > 0 {
		r.Logger.Printf("  Rejected by validation: %d", res.Rejected)
	}
	if res.Failed > 0 {
		r.Logger.Printf("  Failed: %d", res.Failed)
	}

	return res, nil
}

func (r *Runner) ingest(at time.Time) error {
	if r.Ingester == nil {
		return errors.New("no ingest client configured")
	}
	payload, err := r.generator.Payload(at)
	if err != nil {
		return err
	}
	return r.Ingester.Send(r.IngestToken, payload, "application/json")
}

func (r *Runner) create(at time.Time) error {
	if r.Creator == nil {
		return errors.New("no anomaly client configured")
	}
	req := r.generator.CreateRequest(at)
	if r.generator.Chance(r.Config.Defaults.InvalidRatio) {
		req = r.generator.InvalidCreateRequest(at)
	}
	_, err := r.Creator.Create(r.WorkerToken, req)
	return err
}
