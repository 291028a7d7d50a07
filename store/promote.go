package store

import (
	"context"
	"fmt"

	"github.com/modelatlas/pipeline/schemas"
)

// promotionTolerance accepts a post-insert count within max(5%, 1 row) of
// the expected count, absorbing concurrent writers on the production table.
func promotionTolerance(expected, actual int64) bool {
	allowed := expected * 5 / 100
	if allowed < 1 {
		allowed = 1
	}
	delta := expected - actual
	if delta < 0 {
		delta = -delta
	}
	return delta <= allowed
}

// PromoteToProduction copies one provider's working-table slice into the
// production table using the refresh protocol with the promotion tolerance.
func (s *Store) PromoteToProduction(ctx context.Context, provider schemas.InferenceProvider) (*SyncResult, error) {
	rows, err := s.ReadWorkingSlice(ctx, provider)
	if err != nil {
		return &SyncResult{Provider: provider, Table: s.ProductionTable, State: StateAbortedNoMutation},
			fmt.Errorf("%w: %v", ErrAbortedNoMutation, err)
	}
	s.logger.Info("promoting %d rows for %s to %s", len(rows), provider, s.ProductionTable)
	return s.replaceSlice(ctx, s.ProductionTable, provider, rows, promotionTolerance)
}
