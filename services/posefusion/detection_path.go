package posefusion

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/posefusion/referenceframe"
	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/rimage/transform"
	"go.viam.com/posefusion/spatialmath"
	"go.viam.com/posefusion/vision/objectdetection"
	"go.viam.com/posefusion/vision/segmentation"
)

// runDetectionPath segments the depth inside every detection box and back-projects the
// centroid. Detections that yield nothing are skipped.
func (e *Engine) runDetectionPath(
	ctx context.Context,
	frame *rimage.DepthFrame,
	intrinsics *transform.PinholeCameraIntrinsics,
	batch *objectdetection.DetectionBatch,
) pathResult {
	ctx, span := trace.StartSpan(ctx, "posefusion::runDetectionPath")
	defer span.End()

	res := pathResult{overlay: &annotations{caption: detectionCaption}}
	toReference, err := referenceframe.LookupWithTimeout(
		ctx, e.lookup, e.cfg.ReferenceFrame, frame.FrameID, frame.Timestamp, e.cfg.TransformTimeout())
	if err != nil {
		res.err = err
		return res
	}

	dets := objectdetection.Apply(batch.Detections, e.postprocessors...)
	poses := make([]spatialmath.Pose, 0, len(dets))
	var skipped error
	for i, det := range dets {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		box := det.BoundingBox()
		res.overlay.boxes = append(res.overlay.boxes, box)
		res.overlay.circles = append(res.overlay.circles, circleMark{center: det.Center, radius: det.Width / 2})

		roi := box.Intersect(frame.Bounds())
		cand, err := e.segmenter.Segment(frame.DepthMap, roi, segmentation.AnyPositiveDepth, segmentation.CentroidDepth)
		if err != nil {
			if errors.Is(err, segmentation.ErrDepthOutOfBand) {
				e.logger.Warnw("detection depth out of band", "detection", i, "error", err)
			}
			multierr.AppendInto(&skipped, errors.Wrapf(err, "detection %d", i))
			continue
		}
		pose, err := intrinsics.PixelToPose(cand.Pixel, cand.Depth)
		if err != nil {
			multierr.AppendInto(&skipped, errors.Wrapf(err, "detection %d", i))
			continue
		}
		res.overlay.hits = append(res.overlay.hits, cand.Pixel)
		poses = append(poses, toReference.TransformPose(pose))
	}
	if skipped != nil {
		e.logger.Debugw("skipped detections", "count", len(multierr.Errors(skipped)), "error", skipped)
	}

	res.poses = &PoseList{
		Timestamp: batch.Timestamp,
		FrameID:   e.cfg.ReferenceFrame,
		Poses:     poses,
	}
	return res
}
