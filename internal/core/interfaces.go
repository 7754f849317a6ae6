package core

import (
	"context"
	"time"
)

type Phase interface {
	Name() string
	Execute(ctx context.Context, input PhaseInput) (PhaseOutput, error)
	ValidateInput(ctx context.Context, input PhaseInput) error
	ValidateOutput(ctx context.Context, output PhaseOutput) error
	EstimatedDuration() time.Duration
	CanRetry(err error) bool
}

type PhaseInput struct {
	Request   string
	Prompt    string
	Data      interface{}
	SessionID string                 // Added for resume functionality
	Metadata  map[string]interface{} // Additional context
}

type PhaseOutput struct {
	Data     interface{}
	Error    error
	Metadata map[string]interface{} // Additional context
}