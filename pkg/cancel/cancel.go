// Package cancel carries the distinct "operation cancelled" condition shared
// by every tree walk, so callers can tell a stopped walk from an empty result.
package cancel

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

var ErrCancelled = errors.Base("operation cancelled")

// Check returns ErrCancelled once ctx is done.
func Check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.WithStack(ErrCancelled)
	default:
		return nil
	}
}

// Is reports whether err stems from a cancelled walk or a cancelled context.
func Is(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
