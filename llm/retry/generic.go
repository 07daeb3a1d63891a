package retry

import "context"

// DoTyped is a type-safe wrapper around Retryer.Do that keeps the value
// produced by the last successful attempt.
//
// Usage:
//
//	val, err := retry.DoTyped(ctx, r, func(ctx context.Context) (int, error) {
//	    return 42, nil
//	})
func DoTyped[T any](ctx context.Context, r Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
