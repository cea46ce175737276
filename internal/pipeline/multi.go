package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/snow-drought-index/internal/domain"
)

// MultiLoader writes each batch to every loader in order and joins their
// errors.
type MultiLoader []BatchLoader

func (m MultiLoader) LoadBatch(ctx context.Context, results []domain.StationResult) error {
	var errs []error
	for _, l := range m {
		if err := l.LoadBatch(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
