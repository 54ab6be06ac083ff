package posefusion

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// trackCovarianceLen is the number of entries in a row-major 6x6 pose covariance.
const trackCovarianceLen = 36

// Track is one filtered object estimate.
type Track struct {
	ID       int
	Position r3.Vector
	// Covariance is the row-major 6x6 pose covariance. Only the x, y and z variances at
	// indices 0, 7 and 14 are used.
	Covariance []float64
}

// Variances returns the positional variances on the diagonal of the covariance.
func (t *Track) Variances() r3.Vector {
	return r3.Vector{X: t.Covariance[0], Y: t.Covariance[7], Z: t.Covariance[14]}
}

// PositionCovariance returns the diagonal 3x3 positional covariance of the track.
func (t *Track) PositionCovariance() *mat.SymDense {
	v := t.Variances()
	return mat.NewSymDense(3, []float64{
		v.X, 0, 0,
		0, v.Y, 0,
		0, 0, v.Z,
	})
}

// TrackBatch is every track reported at one time. It is always handled as a whole.
type TrackBatch struct {
	Timestamp time.Time
	FrameID   string
	Tracks    []Track
}

// Empty reports whether the batch carries no tracks.
func (b *TrackBatch) Empty() bool {
	return b == nil || len(b.Tracks) == 0
}

// Validate checks that every track has a full covariance with non-negative variances.
func (b *TrackBatch) Validate() error {
	for i := range b.Tracks {
		tr := &b.Tracks[i]
		if len(tr.Covariance) != trackCovarianceLen {
			return errors.Errorf("track %d: covariance must have %d entries, got %d", tr.ID, trackCovarianceLen, len(tr.Covariance))
		}
		v := tr.Variances()
		if v.X < 0 || v.Y < 0 || v.Z < 0 {
			return errors.Errorf("track %d: negative variance %v", tr.ID, v)
		}
	}
	return nil
}
