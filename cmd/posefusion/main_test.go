package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/posefusion/referenceframe"
	"go.viam.com/posefusion/ros"
	"go.viam.com/posefusion/services/posefusion"
	"go.viam.com/posefusion/spatialmath"
)

const yamlConfig = `
reference_frame: world
sensor_frame: camera
depth_band_sigma: 3
smoothing_sigma: 0
frames:
  - name: camera
    parent: base
    translation: {x: 0, y: 0, z: 0.5}
  - name: base
    translation: {x: 1, y: 0, z: 0}
topics:
  depth_image: /camera/depth
`

func TestParseReplayConfigYAML(t *testing.T) {
	cfg, err := parseReplayConfig([]byte(yamlConfig))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Fusion.ReferenceFrame, test.ShouldEqual, "world")
	test.That(t, cfg.Fusion.BandSigma(), test.ShouldEqual, 3.)
	test.That(t, cfg.Fusion.Smoothing(), test.ShouldEqual, 0.)
	test.That(t, cfg.Frames.FrameNames(), test.ShouldResemble, []string{"base", "camera"})

	expected := ros.DefaultTopics()
	expected.DepthImage = "/camera/depth"
	test.That(t, cfg.Topics, test.ShouldResemble, expected)

	tf, err := cfg.Frames.LookupTransform(context.Background(), referenceframe.World, "camera", time.Time{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.TransformPoint(r3.Vector{}), test.ShouldResemble, r3.Vector{X: 1, Z: 0.5})
}

func TestParseReplayConfigJSON(t *testing.T) {
	cfg, err := parseReplayConfig([]byte(`{"reference_frame": "world", "detection_primary": false, "track_feedback_enabled": false}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Fusion.DetectionFirst(), test.ShouldBeFalse)
	test.That(t, cfg.Topics, test.ShouldResemble, ros.DefaultTopics())
	test.That(t, cfg.Frames.FrameNames(), test.ShouldBeEmpty)
}

func TestParseReplayConfigErrors(t *testing.T) {
	// unknown engine key
	_, err := parseReplayConfig([]byte(`{"reference_frame": "world", "bogus": 1}`))
	test.That(t, err, test.ShouldNotBeNil)

	// missing reference frame
	_, err = parseReplayConfig([]byte(`{"sensor_frame": "camera"}`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = parseReplayConfig([]byte("reference_frame: world\nsensor_frame: camera\nframes:\n  - name: a\n    parent: ghost\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "ghost")

	_, err = readReplayConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestJSONLinesPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := &jsonLinesPublisher{w: &buf}
	poses := &posefusion.PoseList{
		Timestamp: time.Unix(5, 0).UTC(),
		FrameID:   "world",
		Poses:     []spatialmath.Pose{spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Z: 2})},
	}
	test.That(t, pub.PublishPoses(context.Background(), poses), test.ShouldBeNil)
	test.That(t, pub.PublishPoses(context.Background(), &posefusion.PoseList{FrameID: "world"}), test.ShouldBeNil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	test.That(t, lines, test.ShouldHaveLength, 2)

	var first struct {
		Stamp time.Time
		Frame string
		Poses []struct {
			ReferenceFrame string `json:"referenceFrame"`
			Pose           struct{ X, Z float64 }
		}
	}
	test.That(t, json.Unmarshal(lines[0], &first), test.ShouldBeNil)
	test.That(t, first.Stamp.Equal(time.Unix(5, 0)), test.ShouldBeTrue)
	test.That(t, first.Frame, test.ShouldEqual, "world")
	test.That(t, first.Poses, test.ShouldHaveLength, 1)
	test.That(t, first.Poses[0].ReferenceFrame, test.ShouldEqual, "world")
	test.That(t, first.Poses[0].Pose.X, test.ShouldAlmostEqual, 1000.)
	test.That(t, first.Poses[0].Pose.Z, test.ShouldAlmostEqual, 2000.)
}

func TestPNGSink(t *testing.T) {
	dir := t.TempDir()
	sink := &pngSink{dir: dir}
	overlay := &posefusion.Overlay{
		Timestamp: time.Unix(0, 42),
		Source:    posefusion.SourceDetections,
		Image:     image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}
	test.That(t, sink.PublishOverlay(context.Background(), overlay), test.ShouldBeNil)
	_, err := os.Stat(filepath.Join(dir, posefusion.SourceDetections.String()+"_42.png"))
	test.That(t, err, test.ShouldBeNil)

	scaled := &pngSink{dir: dir, scale: 2}
	overlay.Timestamp = time.Unix(0, 43)
	test.That(t, scaled.PublishOverlay(context.Background(), overlay), test.ShouldBeNil)
	//nolint:gosec
	f, err := os.Open(filepath.Join(dir, posefusion.SourceDetections.String()+"_43.png"))
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	img, err := png.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 8)
}

func TestTrajectoryPlotter(t *testing.T) {
	tp := newTrajectoryPlotter()
	tp.add(posefusion.Outcome{Source: posefusion.SourceNone})
	tp.add(posefusion.Outcome{
		Source: posefusion.SourceDetections,
		Poses: &posefusion.PoseList{FrameID: "world", Poses: []spatialmath.Pose{
			spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 2}),
			spatialmath.NewPoseFromPoint(r3.Vector{X: 1.5, Y: 2}),
		}},
	})
	tp.add(posefusion.Outcome{
		Source: posefusion.SourceTracks,
		Poses:  &posefusion.PoseList{FrameID: "world", Poses: []spatialmath.Pose{spatialmath.NewPoseFromPoint(r3.Vector{X: 2})}},
	})
	test.That(t, tp.count(), test.ShouldEqual, 3)

	path := filepath.Join(t.TempDir(), "trajectory.png")
	test.That(t, tp.save(path), test.ShouldBeNil)
	info, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
}

func TestStatsTable(t *testing.T) {
	out := statsTable(ros.ReplayStats{Messages: 12, Frames: 4, Published: 3, Failed: 1})
	test.That(t, out, test.ShouldContainSubstring, "PUBLISHED")
	test.That(t, out, test.ShouldContainSubstring, "12")
}
