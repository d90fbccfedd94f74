package sink

import (
	"context"
	"errors"

	"github.com/JakeFAU/frisbee/internal/harvest"
)

// Multi fans an outcome out to every sink and joins their errors.
type Multi []harvest.Sink

// Persist calls every sink even when an earlier one fails.
func (m Multi) Persist(ctx context.Context, outcome harvest.Outcome) error {
	var errs []error
	for _, s := range m {
		if err := s.Persist(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
