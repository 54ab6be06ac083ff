// Package posefusion turns 2D detections or filtered 3D tracks, together with a depth image,
// into 3D poses in a stable reference frame.
package posefusion

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"

	"go.viam.com/posefusion/logging"
	"go.viam.com/posefusion/referenceframe"
	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/rimage/transform"
	"go.viam.com/posefusion/vision/objectdetection"
	"go.viam.com/posefusion/vision/segmentation"
)

// PosePublisher receives every pose list the engine emits.
type PosePublisher interface {
	PublishPoses(ctx context.Context, poses *PoseList) error
}

// PosePublisherFunc adapts a function to a PosePublisher.
type PosePublisherFunc func(ctx context.Context, poses *PoseList) error

// PublishPoses calls f.
func (f PosePublisherFunc) PublishPoses(ctx context.Context, poses *PoseList) error {
	return f(ctx, poses)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock used to time fusion cycles.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithPublisher sets where published poses are sent.
func WithPublisher(p PosePublisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithOverlaySink sets where annotated debug images are sent. Images are only rendered when
// publish_processed_images is set.
func WithOverlaySink(s OverlaySink) Option {
	return func(e *Engine) {
		e.overlays = s
	}
}

// Engine fuses the latest detections or tracks with each incoming depth frame. Intrinsics,
// detections and tracks may be handed in from any goroutine; every depth frame runs one cycle.
type Engine struct {
	cfg            *Config
	logger         logging.Logger
	lookup         referenceframe.TransformLookup
	clock          clock.Clock
	segmenter      *segmentation.DepthSegmenter
	postprocessors []objectdetection.Postprocessor
	publisher      PosePublisher
	overlays       OverlaySink

	intrinsics atomic.Pointer[transform.PinholeCameraIntrinsics]
	detections atomic.Pointer[objectdetection.DetectionBatch]
	tracks     atomic.Pointer[TrackBatch]

	mu            sync.Mutex
	lastDetection time.Time
	lastTrack     time.Time
	fallback      *PoseList
	state         State
	cycle         uint64
	cancelCycle   context.CancelFunc
}

// New returns an engine for the given config. lookup resolves frame transforms.
func New(cfg *Config, lookup referenceframe.TransformLookup, logger logging.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("pose fusion needs a config")
	}
	if err := cfg.Validate("posefusion"); err != nil {
		return nil, err
	}
	logger = logger.Sublogger("posefusion")
	if cfg.DebugLogging {
		logger.SetLevel(logging.DEBUG)
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		lookup:    lookup,
		clock:     clock.New(),
		segmenter: segmentation.NewDepthSegmenter(cfg.Smoothing()),
		state:     StateIdle,
	}
	if cfg.MinDetectionConfidence > 0 {
		e.postprocessors = append(e.postprocessors, objectdetection.NewScoreFilter(cfg.MinDetectionConfidence))
	}
	if cfg.MinDetectionAreaPx > 0 {
		e.postprocessors = append(e.postprocessors, objectdetection.NewAreaFilter(cfg.MinDetectionAreaPx))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetIntrinsics replaces the camera intrinsics.
func (e *Engine) SetIntrinsics(params *transform.PinholeCameraIntrinsics) error {
	if err := params.CheckValid(); err != nil {
		return err
	}
	cp := *params
	e.intrinsics.Store(&cp)
	return nil
}

// HandleCameraInfo takes a row-major 3x3 camera matrix. Malformed matrices are ignored and the
// previous intrinsics are kept.
func (e *Engine) HandleCameraInfo(k []float64, width, height int) error {
	params, err := transform.NewPinholeCameraIntrinsicsFromK(k, width, height)
	if err != nil {
		e.logger.Debugw("ignoring camera info", "error", err)
		return err
	}
	e.intrinsics.Store(params)
	return nil
}

// Intrinsics returns the current intrinsics or nil.
func (e *Engine) Intrinsics() *transform.PinholeCameraIntrinsics {
	return e.intrinsics.Load()
}

// HandleDetections replaces the cached detection batch. The batch must not be modified afterwards.
func (e *Engine) HandleDetections(batch *objectdetection.DetectionBatch) {
	e.detections.Store(batch)
}

// HandleTracks replaces the cached track batch. The batch must not be modified afterwards.
// Malformed batches are rejected and the previous batch is kept.
func (e *Engine) HandleTracks(batch *TrackBatch) error {
	if batch != nil {
		if err := batch.Validate(); err != nil {
			e.logger.Debugw("ignoring track batch", "error", err)
			return err
		}
	}
	e.tracks.Store(batch)
	return nil
}

// Fallback returns a copy of the last detection poses that were published, or nil.
func (e *Engine) Fallback() *PoseList {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fallback.Clone()
}

// State returns the selector state after the most recent completed cycle.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close cancels the cycle in flight, if any.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelCycle != nil {
		e.cancelCycle()
		e.cancelCycle = nil
	}
	return nil
}

// ProcessDepthFrame runs one fusion cycle. The returned error describes why the cycle produced
// nothing, if it failed; the engine remains usable either way.
func (e *Engine) ProcessDepthFrame(ctx context.Context, frame *rimage.DepthFrame) (Outcome, error) {
	ctx, span := trace.StartSpan(ctx, "posefusion::ProcessDepthFrame")
	defer span.End()
	start := e.clock.Now()

	if frame == nil || frame.DepthMap == nil {
		return Outcome{}, errors.Wrap(rimage.ErrFrameConversion, "empty depth frame")
	}
	intrinsics := e.intrinsics.Load()
	if intrinsics == nil {
		e.logger.Debug("no camera info yet, skipping depth frame")
		return Outcome{}, transform.NewNoIntrinsicsError("no camera info received yet")
	}
	intrinsics = intrinsics.Sized(frame.Width(), frame.Height())

	sel := e.selectSource(ctx)
	defer sel.cancel()

	var res pathResult
	switch sel.source {
	case SourceDetections:
		res = e.runDetectionPath(sel.ctx, frame, intrinsics, sel.detections)
	case SourceTracks:
		res = e.runTrackPath(sel.ctx, frame, intrinsics, sel.tracks)
	case SourceFallback:
		res.poses = sel.fallback
	case SourceNone:
	}

	out, err := e.finishCycle(sel, res)
	if out.Superseded {
		e.logger.Debugw("dropping superseded cycle", "source", sel.source)
		return out, nil
	}
	if err != nil {
		e.logger.Warnw("fusion cycle produced no poses", "source", sel.source, "error", err)
	}
	if sel.source == SourceFallback {
		e.logger.Warn("falling back to last detection poses")
	}

	if out.Published() && e.publisher != nil {
		if pubErr := e.publisher.PublishPoses(ctx, out.Poses); pubErr != nil {
			e.logger.Warnw("failed to publish poses", "error", pubErr)
		}
	}
	if e.cfg.PublishProcessedImages && e.overlays != nil && res.overlay != nil {
		e.publishOverlay(ctx, frame, sel.source, res.overlay)
	}

	e.logger.Debugw("fusion cycle done",
		"source", sel.source,
		"poses", out.Poses.Len(),
		"elapsed", e.clock.Since(start))
	return out, err
}

// pathResult is what the detection or track path hands back to the selector.
type pathResult struct {
	poses   *PoseList
	overlay *annotations
	err     error
}
