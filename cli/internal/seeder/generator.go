package seeder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

var protocols = []string{"tcp", "udp", "icmp", "http", "https", "dns", "ssh", "smb"}

var detectors = []string{
	"Port scan detected",
	"Unusual outbound volume",
	"Repeated authentication failures",
	"Beaconing to rare domain",
	"DNS tunneling pattern",
	"Lateral movement over SMB",
}

// SensorReading is the raw JSON a network sensor posts to the gateway.
type SensorReading struct {
	SensorID      string  `json:"sensor_id"`
	SourceIP      string  `json:"source_ip"`
	DestinationIP string  `json:"destination_ip"`
	Protocol      string  `json:"protocol"`
	Port          int     `json:"port"`
	Bytes         int     `json:"bytes"`
	Score         float64 `json:"score"`
	Severity      string  `json:"severity"`
	Signal        string  `json:"signal"`
	ObservedAt    string  `json:"observed_at"`
}

// Generator produces fake sensor traffic. A fixed seed makes output
// reproducible.
type Generator struct {
	faker      *gofakeit.Faker
	severities []string
	now        func() time.Time
}

func NewGenerator(seed int64, severities []string) *Generator {
	if len(severities) == 0 {
		severities = []string{"low", "medium", "high", "critical"}
	}
	return &Generator{
		faker:      gofakeit.New(seed),
		severities: severities,
		now:        time.Now,
	}
}

// EventTime places event index of total within the spread window ending
// now, evenly spaced with up to 40% jitter.
func (g *Generator) EventTime(index, total int, spread time.Duration) time.Time {
	now := g.now()
	if spread <= 0 || total <= 0 {
		return now
	}

	baseInterval := float64(spread) / float64(total)
	offset := time.Duration(float64(index) * baseInterval)
	jitter := time.Duration((g.faker.Float64()*2.0 - 1.0) * baseInterval * 0.4)

	offset += jitter
	if offset < 0 {
		offset = 0
	}
	if offset > spread {
		offset = spread
	}
	return now.Add(-(spread - offset))
}

func (g *Generator) Reading(at time.Time) SensorReading {
	return SensorReading{
		SensorID:      fmt.Sprintf("sensor-%03d", g.faker.Number(1, 64)),
		SourceIP:      g.faker.IPv4Address(),
		DestinationIP: g.faker.IPv4Address(),
		Protocol:      g.faker.RandomString(protocols),
		Port:          g.faker.Number(1, 65535),
		Bytes:         g.faker.Number(64, 1<<20),
		Score:         g.faker.Float64Range(0, 1),
		Severity:      g.faker.RandomString(g.severities),
		Signal:        g.faker.RandomString(detectors),
		ObservedAt:    at.UTC().Format(time.RFC3339),
	}
}

// Payload returns a JSON encoded sensor reading.
func (g *Generator) Payload(at time.Time) ([]byte, error) {
	return json.Marshal(g.Reading(at))
}

// CreateRequest returns a request that passes validation.
func (g *Generator) CreateRequest(at time.Time) *model.CreateAnomalyRequest {
	r := g.Reading(at)
	raw, _ := json.Marshal(r)
	return &model.CreateAnomalyRequest{
		SourceIP:      r.SourceIP,
		DestinationIP: r.DestinationIP,
		Protocol:      r.Protocol,
		Severity:      r.Severity,
		Score:         model.NewScore(r.Score),
		Description:   fmt.Sprintf("%s from %s on port %d", r.Signal, r.SourceIP, r.Port),
		RawPayload:    string(raw),
		DetectedAt:    r.ObservedAt,
	}
}

// InvalidCreateRequest returns a request that fails at least one
// validation rule.
func (g *Generator) InvalidCreateRequest(at time.Time) *model.CreateAnomalyRequest {
	req := g.CreateRequest(at)
	switch g.faker.Number(0, 3) {
	case 0:
		req.Severity = "urgent"
	case 1:
		req.Score = model.NewScore(g.faker.Float64Range(1.5, 10))
	case 2:
		req.SourceIP = ""
	default:
		req.Description = ""
	}
	return req
}

// Chance reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return g.faker.Float64() < p
}
