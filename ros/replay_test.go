package ros

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/edaniels/gobag/rosbag"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/posefusion/logging"
	"go.viam.com/posefusion/referenceframe"
	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/services/posefusion"
	"go.viam.com/posefusion/spatialmath"
)

const (
	replayWidth  = 640
	replayHeight = 480
)

func event(t *testing.T, kind EventKind, secs int64, data interface{}) Event {
	t.Helper()
	raw, err := json.Marshal(data)
	test.That(t, err, test.ShouldBeNil)
	return Event{Kind: kind, Message: RawMessage{Topic: kind.String(), Meta: Meta{Secs: secs}, Data: raw}}
}

func stamped(secs int64) Header {
	return Header{Stamp: Stamp{Sec: secs}, FrameID: "camera"}
}

// depthImage is a 32FC1 image that is zero except for a square of the given depth around (cx, cy).
func depthImage(secs int64, cx, cy, half int, depth float32) ImageMessage {
	data := make([]byte, replayWidth*replayHeight*4)
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			binary.LittleEndian.PutUint32(data[(y*replayWidth+x)*4:], math.Float32bits(depth))
		}
	}
	return ImageMessage{
		Header:   stamped(secs),
		Height:   replayHeight,
		Width:    replayWidth,
		Encoding: rimage.Encoding32FC1,
		Step:     replayWidth * 4,
		Data:     data,
	}
}

func newReplayEngine(t *testing.T) *posefusion.Engine {
	t.Helper()
	sfs := referenceframe.NewEmptyStaticFrameSystem("test")
	test.That(t, sfs.AddFrame("camera", referenceframe.World, spatialmath.NewTranslation(r3.Vector{X: 1})), test.ShouldBeNil)
	cfg := &posefusion.Config{ReferenceFrame: referenceframe.World, SensorFrame: "camera"}
	e, err := posefusion.New(cfg, sfs, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return e
}

func TestSortEventsIsStable(t *testing.T) {
	events := []Event{
		event(t, EventDepthImage, 3, nil),
		event(t, EventCameraInfo, 1, nil),
		event(t, EventDetections, 3, nil),
		event(t, EventTracks, 2, nil),
	}
	SortEvents(events)
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	test.That(t, kinds, test.ShouldResemble, []EventKind{EventCameraInfo, EventTracks, EventDepthImage, EventDetections})
}

func TestParsedEventsSharedTopic(t *testing.T) {
	rb := rosbag.NewRosBag()
	rb.TopicsAsJSON = map[string]*bytes.Buffer{
		"shared": bytes.NewBufferString(
			`{"meta":{"secs":2,"nsecs":0},"data":{"n":1}}` + "\n" +
				`{"meta":{"secs":4,"nsecs":0},"data":{"n":2}}` + "\n"),
		"observer_camera_info": bytes.NewBufferString(`{"meta":{"secs":3,"nsecs":0},"data":{"k":[]}}` + "\n"),
	}
	topics := DefaultTopics()
	topics.Detections = "/shared"
	topics.Tracks = "Shared"

	names, kinds := topics.unique()
	test.That(t, names, test.ShouldResemble, []string{"observer/camera_info", "/shared", "observer/depth_image"})
	test.That(t, kinds, test.ShouldResemble, []EventKind{EventCameraInfo, EventDetections, EventDepthImage})

	events, err := parsedEvents(rb, topics)
	test.That(t, err, test.ShouldBeNil)
	got := make([]EventKind, 0, len(events))
	for _, ev := range events {
		got = append(got, ev.Kind)
	}
	// each shared message is delivered once, as the first input naming the topic
	test.That(t, got, test.ShouldResemble, []EventKind{EventDetections, EventCameraInfo, EventDetections})
	test.That(t, string(events[2].Message.Data), test.ShouldEqual, `{"n":2}`)

	_, err = parsedEvents(rosbag.NewRosBag(), topics)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReplayDetections(t *testing.T) {
	e := newReplayEngine(t)
	defer e.Close()

	det := DetectionMessage{BBox: BoundingBox2D{Center: Pose2D{Position: &Point2D{X: 320, Y: 240}}, SizeX: 21, SizeY: 21}}
	events := []Event{
		// depth before camera info is skipped by the engine
		event(t, EventDepthImage, 1, depthImage(1, 320, 240, 10, 2)),
		event(t, EventCameraInfo, 1, CameraInfoMessage{
			Height: replayHeight, Width: replayWidth,
			K: []float64{600, 0, 320, 0, 600, 240, 0, 0, 1},
		}),
		event(t, EventDetections, 2, DetectionArrayMessage{Header: stamped(2), Detections: []DetectionMessage{det}}),
		event(t, EventDepthImage, 3, depthImage(3, 320, 240, 10, 2)),
		event(t, EventDepthImage, 4, ImageMessage{Header: stamped(4), Width: 2, Height: 1, Encoding: "rgb8", Data: make([]byte, 6)}),
	}

	var outcomes []posefusion.Outcome
	stats, err := Replay(context.Background(), events, e, logging.NewTestLogger(t),
		func(frame *rimage.DepthFrame, out posefusion.Outcome) {
			outcomes = append(outcomes, out)
		})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats, test.ShouldResemble, ReplayStats{Messages: 5, Frames: 2, Published: 1, Failed: 1})
	test.That(t, outcomes, test.ShouldHaveLength, 2)
	test.That(t, outcomes[0].Published(), test.ShouldBeFalse)

	out := outcomes[1]
	test.That(t, out.Source, test.ShouldEqual, posefusion.SourceDetections)
	test.That(t, out.Poses.Len(), test.ShouldEqual, 1)
	test.That(t, spatialmath.PoseAlmostEqual(out.Poses.Poses[0], spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Z: 2}), 1e-6),
		test.ShouldBeTrue)
}

func TestReplayTracks(t *testing.T) {
	e := newReplayEngine(t)
	defer e.Close()

	cov := make([]float64, 36)
	cov[0], cov[7], cov[14] = 0.01, 0.01, 0.04
	track := KFTrackMessage{ID: 1}
	// (400, 300) at 2.5 m
	track.Pose.Pose.Position = Vector3{X: 80. / 600 * 2.5, Y: 60. / 600 * 2.5, Z: 2.5}
	track.Pose.Covariance = cov

	events := []Event{
		event(t, EventCameraInfo, 1, CameraInfoMessage{
			Height: replayHeight, Width: replayWidth,
			K: []float64{600, 0, 320, 0, 600, 240, 0, 0, 1},
		}),
		event(t, EventTracks, 2, KFTracksMessage{Header: stamped(2), Tracks: []KFTrackMessage{track}}),
		event(t, EventTracks, 2, KFTracksMessage{Header: stamped(2), Tracks: []KFTrackMessage{{ID: 2}}}),
		event(t, EventDepthImage, 3, depthImage(3, 400, 300, 10, 2.5)),
	}
	var last posefusion.Outcome
	stats, err := Replay(context.Background(), events, e, logging.NewTestLogger(t),
		func(frame *rimage.DepthFrame, out posefusion.Outcome) { last = out })
	test.That(t, err, test.ShouldBeNil)
	// the track without a covariance is rejected and the previous batch kept
	test.That(t, stats.Failed, test.ShouldEqual, 1)
	test.That(t, stats.Published, test.ShouldEqual, 1)
	test.That(t, last.Source, test.ShouldEqual, posefusion.SourceTracks)
	test.That(t, last.Poses.Len(), test.ShouldEqual, 1)
	p := last.Poses.Poses[0].Point
	test.That(t, p.X, test.ShouldAlmostEqual, 1+80./600*2.5, 1e-6)
	test.That(t, p.Y, test.ShouldAlmostEqual, 60./600*2.5, 1e-6)
	test.That(t, p.Z, test.ShouldAlmostEqual, 2.5, 1e-6)
}

func TestReplayStopsOnCancel(t *testing.T) {
	e := newReplayEngine(t)
	defer e.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := Replay(ctx, []Event{event(t, EventCameraInfo, 1, CameraInfoMessage{})}, e, logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldEqual, context.Canceled)
	test.That(t, stats.Messages, test.ShouldEqual, 0)
}
