package ros

import (
	"context"
	"sort"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/posefusion/logging"
	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/services/posefusion"
	"go.viam.com/posefusion/vision/objectdetection"
)

// Topics names the four inputs of the fusion engine.
type Topics struct {
	DepthImage string `json:"depth_image" yaml:"depth_image"`
	CameraInfo string `json:"camera_info" yaml:"camera_info"`
	Detections string `json:"detections" yaml:"detections"`
	Tracks     string `json:"tracks" yaml:"tracks"`
}

// DefaultTopics returns the topic names the fusion node subscribes to.
func DefaultTopics() Topics {
	return Topics{
		DepthImage: "observer/depth_image",
		CameraInfo: "observer/camera_info",
		Detections: "detections",
		Tracks:     "kf/good_tracks",
	}
}

// list returns the topics in the order same-time messages are delivered: calibration and
// inputs before the depth frame that consumes them.
func (t Topics) list() []string {
	return []string{t.CameraInfo, t.Detections, t.Tracks, t.DepthImage}
}

// unique returns the topics with distinct bag keys and the kind each one feeds. A topic named
// for more than one input feeds only the first.
func (t Topics) unique() ([]string, []EventKind) {
	var (
		topics []string
		kinds  []EventKind
		seen   = map[string]bool{}
	)
	for i, topic := range t.list() {
		key := TopicKey(topic)
		if seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, topic)
		kinds = append(kinds, EventKind(i))
	}
	return topics, kinds
}

// EventKind says which engine input a message feeds.
type EventKind int

// The engine inputs.
const (
	EventCameraInfo EventKind = iota
	EventDetections
	EventTracks
	EventDepthImage
)

func (k EventKind) String() string {
	switch k {
	case EventCameraInfo:
		return "camera_info"
	case EventDetections:
		return "detections"
	case EventTracks:
		return "tracks"
	case EventDepthImage:
		return "depth_image"
	}
	return "unknown"
}

// Event is one recorded message bound for the engine.
type Event struct {
	Kind    EventKind
	Message RawMessage
}

// LoadEvents parses the bag's fusion topics and returns their messages ordered by record time.
func LoadEvents(rb *rosbag.RosBag, topics Topics, window TimeWindow) ([]Event, error) {
	if err := ParseTopics(rb, window, topics.list()); err != nil {
		return nil, err
	}
	return parsedEvents(rb, topics)
}

// parsedEvents collects the already parsed messages of the fusion topics.
func parsedEvents(rb *rosbag.RosBag, topics Topics) ([]Event, error) {
	names, kinds := topics.unique()
	// each topic has its own buffer, so they can be split into messages concurrently
	perTopic := make([][]RawMessage, len(names))
	var errs errgroup.Group
	for i, topic := range names {
		if _, ok := rb.TopicsAsJSON[TopicKey(topic)]; !ok {
			continue
		}
		errs.Go(func() error {
			msgs, err := MessagesForTopic(rb, topic)
			perTopic[i] = msgs
			return err
		})
	}
	if err := errs.Wait(); err != nil {
		return nil, err
	}

	var events []Event
	for i, msgs := range perTopic {
		for _, msg := range msgs {
			events = append(events, Event{Kind: kinds[i], Message: msg})
		}
	}
	if len(events) == 0 {
		return nil, errors.Errorf("bag has none of the topics %v", names)
	}
	SortEvents(events)
	return events, nil
}

// SortEvents orders events by record time. Events recorded at the same time keep their relative
// order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Message.Meta.Time().Before(events[j].Message.Meta.Time())
	})
}

// Fuser is the part of the fusion engine driven by a replay.
type Fuser interface {
	HandleCameraInfo(k []float64, width, height int) error
	HandleDetections(batch *objectdetection.DetectionBatch)
	HandleTracks(batch *posefusion.TrackBatch) error
	ProcessDepthFrame(ctx context.Context, frame *rimage.DepthFrame) (posefusion.Outcome, error)
}

// ReplayStats counts what a replay did.
type ReplayStats struct {
	Messages  int
	Frames    int
	Published int
	Failed    int
}

// Replay feeds events to the engine in order. A message that cannot be decoded or that the
// engine rejects is logged and skipped. onOutcome, if set, sees the result of every depth frame.
func Replay(
	ctx context.Context,
	events []Event,
	fuser Fuser,
	logger logging.Logger,
	onOutcome func(frame *rimage.DepthFrame, out posefusion.Outcome),
) (ReplayStats, error) {
	var stats ReplayStats
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Messages++
		msg := ev.Message
		switch ev.Kind {
		case EventCameraInfo:
			var info CameraInfoMessage
			if err := msg.Decode(&info); err != nil {
				logger.Warnw("skipping camera info", "error", err)
				stats.Failed++
				continue
			}
			if err := fuser.HandleCameraInfo(info.K, info.Width, info.Height); err != nil {
				logger.Warnw("rejected camera info", "error", err)
				stats.Failed++
			}
		case EventDetections:
			var dets DetectionArrayMessage
			if err := msg.Decode(&dets); err != nil {
				logger.Warnw("skipping detections", "error", err)
				stats.Failed++
				continue
			}
			fuser.HandleDetections(dets.DetectionBatch())
		case EventTracks:
			var tracks KFTracksMessage
			if err := msg.Decode(&tracks); err != nil {
				logger.Warnw("skipping tracks", "error", err)
				stats.Failed++
				continue
			}
			if err := fuser.HandleTracks(tracks.TrackBatch()); err != nil {
				logger.Warnw("rejected tracks", "error", err)
				stats.Failed++
			}
		case EventDepthImage:
			var img ImageMessage
			if err := msg.Decode(&img); err != nil {
				logger.Warnw("skipping depth image", "error", err)
				stats.Failed++
				continue
			}
			frame, err := img.DepthFrame()
			if err != nil {
				logger.Warnw("skipping depth image", "error", err)
				stats.Failed++
				continue
			}
			stats.Frames++
			out, err := fuser.ProcessDepthFrame(ctx, frame)
			if err != nil {
				logger.Debugw("depth frame produced no poses", "stamp", frame.Timestamp, "error", err)
			}
			if out.Published() {
				stats.Published++
			}
			if onOutcome != nil {
				onOutcome(frame, out)
			}
		}
	}
	logger.Infow("replay done",
		"messages", stats.Messages,
		"frames", stats.Frames,
		"published", stats.Published,
		"failed", stats.Failed)
	return stats, nil
}
