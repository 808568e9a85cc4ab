package refine

import (
	"context"

	"github.com/relevohq/relevo/internal/models"
)

// NoOp is the identity pass-through used when refinement is disabled.
type NoOp struct{}

func (NoOp) Refine(_ context.Context, result models.PipelineResult) (models.PipelineResult, error) {
	return result, nil
}

func (NoOp) Name() string   { return "noop" }
func (NoOp) External() bool { return false }
