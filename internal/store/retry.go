package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// Retry runs attempt and retries it once if it fails with ErrTransient.
// attempt must be one atomic step; callers never wrap a sequence of
// transactions in Retry. Exhaustion surfaces a domain Unavailable error.
func Retry(ctx context.Context, attempt func() error) error {
	err := attempt()
	if !errors.Is(err, ErrTransient) {
		return err
	}
	if ctx.Err() == nil {
		log.Printf("[store] transient failure, retrying once: %v", err)
		err = attempt()
		if !errors.Is(err, ErrTransient) {
			return err
		}
	}
	return domain.Unavailable(fmt.Errorf("%w: %v", ErrUnavailable, err))
}
