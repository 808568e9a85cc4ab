package refine

import (
	"context"
	"fmt"
)

// Config selects the refiner implementation.
type Config struct {
	Provider string // disabled|heuristic|vertex

	// Vertex settings, used only when Provider is "vertex".
	VertexProject  string
	VertexLocation string
	VertexModel    string
}

// New builds the configured Refiner. An empty provider means heuristic: local
// enrichment costs nothing and the caller still validates its output.
func New(ctx context.Context, cfg Config) (Refiner, error) {
	switch cfg.Provider {
	case "disabled":
		return NoOp{}, nil
	case "", "heuristic":
		return Heuristic{}, nil
	case "vertex":
		if cfg.VertexProject == "" {
			return nil, fmt.Errorf("refine: vertex provider requires a project id")
		}
		return NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
	default:
		return nil, fmt.Errorf("refine: unknown provider %q", cfg.Provider)
	}
}
