package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/render"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Answer runs the engine and packages the outcome for a transport. It only
// reports OK false when the root question is unusable. A canceled run still
// returns the blocks answered before cancellation.
func (e *Engine) Answer(ctx context.Context, root string) models.Result {
	out, err := e.Run(ctx, root)
	if errors.Is(err, ErrEmptyQuestion) {
		return models.Result{OK: false, Error: err.Error()}
	}
	if err != nil {
		e.logger.Warn("returning partial result", zap.Error(err))
	}

	return models.Result{
		OK:           true,
		RunID:        out.RunID,
		Blocks:       render.FlattenBlocks(out.Entries),
		RenderedTree: render.RenderTree(out.RootKey, out.Entries, out.Edges),
		Edges:        out.Edges,
		Stats:        out.Stats,
	}
}
