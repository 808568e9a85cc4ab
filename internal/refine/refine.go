// Package refine is the optional post-processing stage that runs after the
// extraction pipeline. A Refiner is a pure function over a result copy: it
// may resolve due windows and add receiving-nurse questions, but it must
// never touch identifying tokens; enrichment and de-identification operate
// on orthogonal fields. Absence is a supported configuration: the null-object
// NoOp stands in when refinement is disabled.
package refine

import (
	"context"

	"github.com/relevohq/relevo/internal/models"
)

type Refiner interface {
	// Refine returns an enriched copy of the result. Implementations must be
	// side-effect-free and honor ctx cancellation; the caller falls back to
	// the unenriched result on any error.
	Refine(ctx context.Context, result models.PipelineResult) (models.PipelineResult, error)
	// Name identifies the refiner in logs and audit detail.
	Name() string
	// External reports whether refinement leaves the process (and is
	// therefore subject to the strict privacy profile's policy block).
	External() bool
}
