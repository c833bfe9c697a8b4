// Package validator checks candidate anomalies before they are persisted.
package validator

import (
	"context"
	"strings"

	"github.com/telhawk-systems/anomaly-stack/anomaly/pkg/model"
)

// Validator inspects one aspect of a create request and returns a
// human-readable message for each violation.
type Validator interface {
	Validate(ctx context.Context, req *model.CreateAnomalyRequest) []string
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, req *model.CreateAnomalyRequest) []string

// Validate calls f.
func (f Func) Validate(ctx context.Context, req *model.CreateAnomalyRequest) []string {
	return f(ctx, req)
}

// ValidationError lists every violation found in a request.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Chain applies every validator and collects all messages, so a client sees
// the complete list in one response.
type Chain struct {
	validators []Validator
}

// NewChain constructs a validator chain.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Validate returns a *ValidationError when any validator reports a problem.
func (c *Chain) Validate(ctx context.Context, req *model.CreateAnomalyRequest) error {
	if c == nil {
		return nil
	}
	if req == nil {
		req = &model.CreateAnomalyRequest{}
	}

	var messages []string
	for _, v := range c.validators {
		messages = append(messages, v.Validate(ctx, req)...)
	}
	if len(messages) > 0 {
		return &ValidationError{Messages: messages}
	}
	return nil
}

// Default returns the rules every persisted anomaly must satisfy.
func Default() *Chain {
	return NewChain(
		SourceIPValidator{},
		SeverityValidator{},
		ScoreValidator{},
		DescriptionValidator{},
		ProtocolValidator{},
		DetectedAtValidator{},
	)
}
