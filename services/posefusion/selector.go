package posefusion

import (
	"context"

	"go.viam.com/posefusion/vision/objectdetection"
)

// selection is the decision taken at the start of a cycle.
type selection struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cycle      uint64
	source     Source
	detections *objectdetection.DetectionBatch
	tracks     *TrackBatch
	fallback   *PoseList
}

// selectSource snapshots the cached batches and decides which path runs. A new cycle cancels the
// one before it.
func (e *Engine) selectSource(ctx context.Context) selection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelCycle != nil {
		e.cancelCycle()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	e.cycle++
	e.cancelCycle = cancel
	sel := selection{ctx: cycleCtx, cancel: cancel, cycle: e.cycle, source: SourceNone}

	dets := e.detections.Load()
	tracks := e.tracks.Load()

	detectionsFresh := !dets.Empty() && dets.Timestamp.After(e.lastDetection)
	if detectionsFresh {
		e.lastDetection = dets.Timestamp
	}
	// detections take priority even when the tracks are newer
	tracksFresh := !detectionsFresh && !tracks.Empty() && tracks.Timestamp.After(e.lastTrack)
	if tracksFresh {
		e.lastTrack = tracks.Timestamp
	}

	switch {
	case detectionsFresh && e.cfg.DetectionFirst():
		sel.source = SourceDetections
		sel.detections = dets
	case tracksFresh && e.cfg.TrackFeedback():
		sel.source = SourceTracks
		sel.tracks = tracks
	case e.fallback != nil:
		sel.source = SourceFallback
		sel.fallback = e.fallback.Clone()
	}
	return sel
}

// finishCycle records the result of a cycle unless a newer cycle has started since.
func (e *Engine) finishCycle(sel selection, res pathResult) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sel.cycle != e.cycle {
		return Outcome{Source: sel.source, Superseded: true}, nil
	}
	e.cancelCycle = nil

	out := Outcome{Source: sel.source}
	switch sel.source {
	case SourceDetections:
		e.state = StateUsingDetections
	case SourceTracks:
		e.state = StateUsingTracks
	case SourceFallback:
		e.state = StateUsingFallback
	case SourceNone:
		e.state = StateSuppressed
	}
	if res.err != nil {
		return out, res.err
	}
	if res.poses.Len() == 0 {
		return out, nil
	}
	out.Poses = res.poses
	if sel.source == SourceDetections {
		e.fallback = res.poses.Clone()
	}
	return out, nil
}
