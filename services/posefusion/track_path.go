package posefusion

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/posefusion/referenceframe"
	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/rimage/transform"
	"go.viam.com/posefusion/spatialmath"
	"go.viam.com/posefusion/vision/segmentation"
)

// trackPrediction is a track moved into the sensor frame and projected onto the image.
type trackPrediction struct {
	id      int
	pixel   r2.Point
	ellipse transform.SearchEllipse
	band    segmentation.DepthBand
}

// predictTrack projects a track into the image and derives its depth band. ok is false when the
// track does not land on the image.
func (e *Engine) predictTrack(
	tr *Track,
	toSensor spatialmath.Transform,
	intrinsics *transform.PinholeCameraIntrinsics,
) (trackPrediction, bool, error) {
	pos := toSensor.TransformPoint(tr.Position)
	cov := toSensor.TransformCovariance(tr.PositionCovariance())
	variances := r3.Vector{X: cov.At(0, 0), Y: cov.At(1, 1), Z: cov.At(2, 2)}

	px, ok := intrinsics.ProjectPoint(pos)
	if !ok || !intrinsics.InImage(px) {
		return trackPrediction{}, false, nil
	}
	cov2, err := intrinsics.ProjectCovariance(pos, variances)
	if err != nil {
		return trackPrediction{}, false, err
	}
	ellipse, err := transform.NewSearchEllipse(cov2, px, e.cfg.EllipseScale())
	if err != nil {
		return trackPrediction{}, false, err
	}
	spread := e.cfg.BandSigma() * math.Sqrt(math.Max(0, variances.Z))
	return trackPrediction{
		id:      tr.ID,
		pixel:   px,
		ellipse: ellipse,
		band:    segmentation.DepthBand{Min: math.Max(0, pos.Z-spread), Max: pos.Z + spread},
	}, true, nil
}

// runTrackPath looks for each track in its predicted depth band and keeps the single candidate
// nearest to the pixel its track predicted.
func (e *Engine) runTrackPath(
	ctx context.Context,
	frame *rimage.DepthFrame,
	intrinsics *transform.PinholeCameraIntrinsics,
	batch *TrackBatch,
) pathResult {
	ctx, span := trace.StartSpan(ctx, "posefusion::runTrackPath")
	defer span.End()

	res := pathResult{overlay: &annotations{caption: trackCaption}}
	timeout := e.cfg.TransformTimeout()
	toSensor, err := referenceframe.LookupWithTimeout(
		ctx, e.lookup, e.cfg.SensorFrame, batch.FrameID, batch.Timestamp, timeout)
	if err != nil {
		res.err = err
		return res
	}
	toReference, err := referenceframe.LookupWithTimeout(
		ctx, e.lookup, e.cfg.ReferenceFrame, frame.FrameID, frame.Timestamp, timeout)
	if err != nil {
		res.err = err
		return res
	}

	var (
		best     segmentation.PixelCandidate
		bestDist = math.Inf(1)
		found    bool
		skipped  error
	)
	for i := range batch.Tracks {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		tr := &batch.Tracks[i]
		pred, ok, err := e.predictTrack(tr, toSensor, intrinsics)
		if err != nil {
			multierr.AppendInto(&skipped, errors.Wrapf(err, "track %d", tr.ID))
			continue
		}
		if !ok {
			e.logger.Debugw("track does not project onto the image", "track", tr.ID)
			continue
		}
		res.overlay.ellipses = append(res.overlay.ellipses, pred.ellipse)

		cand, err := e.segmenter.Segment(frame.DepthMap, frame.Bounds(), pred.band, segmentation.RegionMeanDepth)
		if err != nil {
			if errors.Is(err, segmentation.ErrDepthOutOfBand) {
				e.logger.Warnw("track depth out of band", "track", tr.ID, "band", pred.band, "error", err)
			}
			multierr.AppendInto(&skipped, errors.Wrapf(err, "track %d", tr.ID))
			continue
		}
		if !pred.ellipse.Contains(cand.Pixel) {
			e.logger.Debugw("candidate outside search ellipse", "track", tr.ID, "pixel", cand.Pixel, "predicted", pred.pixel)
		}
		if dist := cand.Pixel.Sub(pred.pixel).Norm(); dist < bestDist {
			best, bestDist, found = cand, dist, true
		}
	}
	if skipped != nil {
		e.logger.Debugw("skipped tracks", "count", len(multierr.Errors(skipped)), "error", skipped)
	}

	poses := []spatialmath.Pose{}
	if found {
		pose, err := intrinsics.PixelToPose(best.Pixel, best.Depth)
		if err != nil {
			res.err = err
			return res
		}
		res.overlay.hits = append(res.overlay.hits, best.Pixel)
		poses = append(poses, toReference.TransformPose(pose))
	}
	res.poses = &PoseList{
		Timestamp: frame.Timestamp,
		FrameID:   e.cfg.ReferenceFrame,
		Poses:     poses,
	}
	return res
}
