package posefusion

import (
	"time"

	"github.com/samber/lo"
	commonpb "go.viam.com/api/common/v1"

	"go.viam.com/posefusion/spatialmath"
)

// PoseList is the set of poses published for one fusion cycle.
type PoseList struct {
	Timestamp time.Time
	FrameID   string
	Poses     []spatialmath.Pose
}

// Len returns the number of poses, treating nil as empty.
func (pl *PoseList) Len() int {
	if pl == nil {
		return 0
	}
	return len(pl.Poses)
}

// Clone returns a deep copy.
func (pl *PoseList) Clone() *PoseList {
	if pl == nil {
		return nil
	}
	out := *pl
	out.Poses = append([]spatialmath.Pose(nil), pl.Poses...)
	return &out
}

// ToProto converts the list to api poses in millimetres.
func (pl *PoseList) ToProto() []*commonpb.PoseInFrame {
	if pl == nil {
		return nil
	}
	return lo.Map(pl.Poses, func(p spatialmath.Pose, _ int) *commonpb.PoseInFrame {
		return &commonpb.PoseInFrame{
			ReferenceFrame: pl.FrameID,
			Pose:           spatialmath.PoseToProtobuf(p),
		}
	})
}

// Source tags where the poses of a cycle came from.
type Source int

// The set of pose sources.
const (
	SourceNone Source = iota
	SourceDetections
	SourceTracks
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceDetections:
		return "detections"
	case SourceTracks:
		return "tracks"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// State is the selector state after the most recent cycle.
type State int

// The set of selector states.
const (
	StateIdle State = iota
	StateUsingDetections
	StateUsingTracks
	StateUsingFallback
	StateSuppressed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUsingDetections:
		return "using_detections"
	case StateUsingTracks:
		return "using_tracks"
	case StateUsingFallback:
		return "using_fallback"
	case StateSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fusion cycle. Exactly one is produced per depth frame.
type Outcome struct {
	Source Source
	// Poses is nil when nothing was published.
	Poses *PoseList
	// Superseded is set when a newer frame started before this cycle finished; its results were
	// dropped.
	Superseded bool
}

// Published reports whether the cycle emitted poses.
func (o Outcome) Published() bool {
	return o.Poses.Len() > 0
}
