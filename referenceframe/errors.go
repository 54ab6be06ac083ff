package referenceframe

import (
	"github.com/pkg/errors"
)

// ErrTransformUnavailable is returned when no transform between two frames is known at the
// requested time.
var ErrTransformUnavailable = errors.New("transform unavailable")

// NewParentFrameMissingError returns an error indicating that a frame is missing a parent.
func NewParentFrameMissingError(name string) error {
	return errors.Errorf("parent frame %q is not in the frame system", name)
}

// NewFrameMissingError returns an error indicating that the named frame is unknown.
func NewFrameMissingError(name string) error {
	return errors.Wrapf(ErrTransformUnavailable, "frame with name %q not in frame system", name)
}

// NewFrameAlreadyExistsError returns an error for a duplicate frame name.
func NewFrameAlreadyExistsError(name string) error {
	return errors.Errorf("frame with name %q already in frame system", name)
}
