package referenceframe

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/posefusion/spatialmath"
)

// TransformLookup resolves the transform that moves points from source into target at a given
// time.
type TransformLookup interface {
	LookupTransform(ctx context.Context, target, source string, at time.Time) (spatialmath.Transform, error)
}

// TransformLookupFunc adapts a function to a TransformLookup.
type TransformLookupFunc func(ctx context.Context, target, source string, at time.Time) (spatialmath.Transform, error)

// LookupTransform calls f.
func (f TransformLookupFunc) LookupTransform(
	ctx context.Context,
	target, source string,
	at time.Time,
) (spatialmath.Transform, error) {
	return f(ctx, target, source, at)
}

type lookupResult struct {
	tf  spatialmath.Transform
	err error
}

// LookupWithTimeout bounds a lookup by timeout. Lookups that fail, panic, or run past the
// deadline all report ErrTransformUnavailable. A non-positive timeout only honours ctx. A frame
// is always identical to itself, so equal names resolve without consulting lookup.
func LookupWithTimeout(
	ctx context.Context,
	lookup TransformLookup,
	target, source string,
	at time.Time,
	timeout time.Duration,
) (spatialmath.Transform, error) {
	if target == source && target != "" {
		return spatialmath.NewIdentityTransform(), nil
	}
	if lookup == nil {
		return spatialmath.Transform{}, errors.Wrap(ErrTransformUnavailable, "no transform source configured")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// buffered so the worker never blocks if we stop waiting
	results := make(chan lookupResult, 1)
	goutils.PanicCapturingGoWithCallback(func() {
		tf, err := lookup.LookupTransform(ctx, target, source, at)
		results <- lookupResult{tf, err}
	}, func(r interface{}) {
		results <- lookupResult{err: errors.Errorf("lookup panicked: %v", r)}
	})

	select {
	case res := <-results:
		if res.err != nil {
			if errors.Is(res.err, ErrTransformUnavailable) {
				return spatialmath.Transform{}, res.err
			}
			return spatialmath.Transform{}, errors.Wrapf(ErrTransformUnavailable, "%s -> %s: %v", source, target, res.err)
		}
		return res.tf, nil
	case <-ctx.Done():
		return spatialmath.Transform{}, errors.Wrapf(ErrTransformUnavailable, "%s -> %s: %v", source, target, ctx.Err())
	}
}
