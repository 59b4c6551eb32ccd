package workflow

import (
	"context"

	"careercoach/internal/ai"
	"careercoach/internal/errors"
)

// AnalyzerSource hands out the analyzer for an operation
type AnalyzerSource interface {
	Analyzer(op string) ai.Analyzer
}

// call is the single outstanding model request of a workflow
type call struct {
	event  Event
	ctx    context.Context
	cancel context.CancelFunc
}

func newCall(parent context.Context, event Event) *call {
	ctx, cancel := context.WithCancel(parent)
	return &call{event: event, ctx: ctx, cancel: cancel}
}

func (c *call) canceled() bool {
	return c.ctx.Err() != nil
}

// resolveFailure returns the message kept for display and the error handed
// to the caller for a failed call. Canceled calls leave no display message.
func resolveFailure(c *call, err error, fallback string) (string, error) {
	if c.canceled() {
		return "", requestCanceled()
	}
	if _, ok := errors.AsAppError(err); !ok {
		err = errors.NewServiceError(fallback, err)
	}
	return errors.UserMessage(err, fallback), err
}
