package validator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

const (
	msgBlank      = "can't be blank"
	msgNotInList  = "is not included in the list"
	msgNotANumber = "is not a number"
)

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SourceIPValidator requires a source address.
type SourceIPValidator struct{}

func (SourceIPValidator) Validate(_ context.Context, req *model.CreateAnomalyRequest) []string {
	if blank(req.SourceIP) {
		return []string{"Source ip " + msgBlank}
	}
	return nil
}

// SeverityValidator requires one of the known severity levels.
type SeverityValidator struct{}

func (SeverityValidator) Validate(_ context.Context, req *model.CreateAnomalyRequest) []string {
	var msgs []string
	if blank(req.Severity) {
		msgs = append(msgs, "Severity "+msgBlank)
	}
	if !model.Severity(req.Severity).Valid() {
		msgs = append(msgs, "Severity "+msgNotInList)
	}
	return msgs
}

// ScoreValidator requires a number in [0, 1].
type ScoreValidator struct{}

func (ScoreValidator) Validate(_ context.Context, req *model.CreateAnomalyRequest) []string {
	var msgs []string
	if req.Score.Blank() {
		msgs = append(msgs, "Score "+msgBlank)
	}
	switch {
	case !req.Score.Numeric():
		msgs = append(msgs, "Score "+msgNotANumber)
	case req.Score.Value() < model.MinScore:
		msgs = append(msgs, fmt.Sprintf("Score must be greater than or equal to %.1f", model.MinScore))
	case req.Score.Value() > model.MaxScore:
		msgs = append(msgs, fmt.Sprintf("Score must be less than or equal to %.1f", model.MaxScore))
	}
	return msgs
}

// DescriptionValidator requires a description.
type DescriptionValidator struct{}

func (DescriptionValidator) Validate(_ context.Context, req *model.CreateAnomalyRequest) []string {
	if blank(req.Description) {
		return []string{"Description " + msgBlank}
	}
	return nil
}

// ProtocolValidator enforces the protocol column width.
type ProtocolValidator struct{}

func (ProtocolValidator) Validate(_ context.Context, req *model.CreateAnomalyRequest) []string {
	if utf8.RuneCountInString(strings.TrimSpace(req.Protocol)) > model.MaxProtocolLength {
		return []string{fmt.Sprintf("Protocol is too long (maximum is %d characters)", model.MaxProtocolLength)}
	}
	return nil
}

// DetectedAtValidator requires an RFC 3339 timestamp when one is given.
type DetectedAtValidator struct{}

func (DetectedAtValidator) Validate(_ context.Context, req *model.CreateAnomalyRequest) []string {
	if _, err := model.ParseDetectedAt(req.DetectedAt); err != nil {
		return []string{"Detected at is invalid"}
	}
	return nil
}
