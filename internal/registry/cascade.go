package registry

import (
	"context"

	"github.com/rs/zerolog/log"
)

// cascadeOutputs deletes every output row rendered from the given image.
// The outputs table is re-fetched here so row indices are current, and the
// scan runs in reverse row order: each delete shifts the rows after it, so a
// forward scan over a single snapshot would skip entries.
func (r *Registry) cascadeOutputs(ctx context.Context, imageAssetID string) (int, []string, error) {
	outs, err := r.ledger.Outputs(ctx)
	if err != nil {
		return 0, nil, err
	}

	var (
		count    int
		labels   []string
		firstErr error
	)
	for i := len(outs) - 1; i >= 0; i-- {
		if !outs[i].Key.HasImage(imageAssetID) {
			continue
		}
		if err := r.ledger.DeleteOutputRow(ctx, outs[i].Index); err != nil {
			log.Error().Err(err).Str("output", outs[i].Key.String()).Msg("output row delete failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		count++
		labels = append(labels, outs[i].Label)
	}
	return count, labels, firstErr
}
