// Package main replays recorded bags through the pose fusion engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"google.golang.org/protobuf/encoding/protojson"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/posefusion/logging"
	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/ros"
	"go.viam.com/posefusion/services/posefusion"
)

const (
	// Flags.
	flagBag        = "bag"
	flagConfig     = "config"
	flagDebug      = "debug"
	flagLogFile    = "log-file"
	flagLogLevel   = "log-level"
	flagPlot       = "plot"
	flagScale      = "overlay-scale"
	flagOutput     = "output"
	flagOverlayDir = "overlay-dir"
	flagStart      = "start"
	flagEnd        = "end"
	flagTopic      = "topic"
)

func main() {
	var logger logging.Logger

	app := &cli.App{
		Name:  "posefusion",
		Usage: "fuse detections and tracks with depth images from a recorded bag",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "log at `LEVEL` and above: debug, info, warn or error",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated as it grows",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("posefusion")
			} else {
				level, err := logging.LevelFromString(c.String(flagLogLevel))
				if err != nil {
					return err
				}
				logger = logging.NewLogger("posefusion")
				logger.SetLevel(level)
			}
			if path := c.Path(flagLogFile); path != "" {
				logger.AddAppender(logging.NewWriterAppender(&lumberjack.Logger{
					Filename:   path,
					MaxSize:    100,
					MaxBackups: 2,
					Compress:   true,
				}))
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logger == nil {
				return nil
			}
			return logger.Sync()
		},
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "run every depth frame of a bag through the engine",
				UsageText: "posefusion replay --bag <bag> --config <config> [--output <file>] [--overlay-dir <dir>]",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagBag, Required: true, Usage: "bag to replay"},
					&cli.PathFlag{Name: flagConfig, Aliases: []string{"c"}, Required: true, Usage: "load configuration from `FILE`"},
					&cli.PathFlag{Name: flagOutput, Usage: "write published poses as JSON lines to `FILE`, - for stdout"},
					&cli.PathFlag{Name: flagOverlayDir, Usage: "write annotated images to `DIR`"},
					&cli.Float64Flag{Name: flagScale, Value: 1, Usage: "resize annotated images by `FACTOR`"},
					&cli.PathFlag{Name: flagPlot, Usage: "plot published positions to `FILE` (png or svg)"},
					&cli.Int64Flag{Name: flagStart, Usage: "first second of the bag to replay"},
					&cli.Int64Flag{Name: flagEnd, Usage: "last second of the bag to replay"},
				},
				Action: func(c *cli.Context) error {
					return replayAction(c, logger)
				},
			},
			{
				Name:      "dump",
				Usage:     "print the messages of one topic as JSON lines",
				UsageText: "posefusion dump --bag <bag> --topic <topic>",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagBag, Required: true, Usage: "bag to read"},
					&cli.StringFlag{Name: flagTopic, Required: true, Usage: "topic to print"},
				},
				Action: func(c *cli.Context) error {
					return dumpAction(c)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replayAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	cfg, err := readReplayConfig(c.Path(flagConfig))
	if err != nil {
		return err
	}
	rb, err := ros.ReadBag(c.Path(flagBag))
	if err != nil {
		return err
	}
	events, err := ros.LoadEvents(rb, cfg.Topics, ros.TimeWindow{Start: c.Int64(flagStart), End: c.Int64(flagEnd)})
	if err != nil {
		return err
	}
	logger.Infow("loaded bag", "events", len(events), "frames", cfg.Frames.FrameNames())
	logger.Debugf("static frames:\n%s", cfg.Frames)

	var opts []posefusion.Option
	if dir := c.Path(flagOverlayDir); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrap(err, "cannot create overlay directory")
		}
		cfg.Fusion.PublishProcessedImages = true
		scale := c.Float64(flagScale)
		if scale <= 0 {
			return errors.Errorf("%s must be positive, got %v", flagScale, scale)
		}
		opts = append(opts, posefusion.WithOverlaySink(&pngSink{dir: dir, scale: scale}))
	}
	if path := c.Path(flagOutput); path != "" {
		out, openErr := openOutput(path)
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = multierr.Combine(err, out.Close())
		}()
		opts = append(opts, posefusion.WithPublisher(&jsonLinesPublisher{w: out}))
	}

	engine, err := posefusion.New(cfg.Fusion, cfg.Frames, logger, opts...)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(engine.Close)

	trajectory := newTrajectoryPlotter()
	stats, err := ros.Replay(ctx, events, engine, logger, func(frame *rimage.DepthFrame, out posefusion.Outcome) {
		if out.Published() {
			logger.Debugw("published", "stamp", frame.Timestamp, "source", out.Source, "poses", out.Poses.Len())
		}
		trajectory.add(out)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, statsTable(stats))
	if path := c.Path(flagPlot); path != "" {
		if err := trajectory.save(path); err != nil {
			return err
		}
		logger.Infow("wrote trajectory plot", "path", path, "positions", trajectory.count())
	}
	return nil
}

func statsTable(stats ros.ReplayStats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Messages", "Depth frames", "Published", "Failed"})
	t.AppendRow(table.Row{stats.Messages, stats.Frames, stats.Published, stats.Failed})
	return t.Render()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing, with - meaning stdout.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create output file")
	}
	return f, nil
}

func dumpAction(c *cli.Context) error {
	rb, err := ros.ReadBag(c.Path(flagBag))
	if err != nil {
		return err
	}
	msgs, err := ros.AllMessagesForTopic(rb, c.String(flagTopic))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

// jsonLinesPublisher writes one JSON object per published pose list.
type jsonLinesPublisher struct {
	mu sync.Mutex
	w  io.Writer
}

type poseLine struct {
	Stamp time.Time         `json:"stamp"`
	Frame string            `json:"frame"`
	Poses []json.RawMessage `json:"poses"`
}

func (p *jsonLinesPublisher) PublishPoses(ctx context.Context, poses *posefusion.PoseList) error {
	line := poseLine{Stamp: poses.Timestamp, Frame: poses.FrameID, Poses: []json.RawMessage{}}
	for _, pif := range poses.ToProto() {
		raw, err := protojson.Marshal(pif)
		if err != nil {
			return err
		}
		line.Poses = append(line.Poses, raw)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.NewEncoder(p.w).Encode(line)
}

// pngSink writes every overlay to its own file.
type pngSink struct {
	dir   string
	scale float64
}

func (s *pngSink) PublishOverlay(ctx context.Context, overlay *posefusion.Overlay) (err error) {
	name := fmt.Sprintf("%s_%d.png", overlay.Source, overlay.Timestamp.UnixNano())
	//nolint:gosec
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	img := overlay.Image
	if s.scale > 0 && s.scale != 1 {
		b := img.Bounds()
		img = imaging.Resize(img, int(float64(b.Dx())*s.scale), int(float64(b.Dy())*s.scale), imaging.Lanczos)
	}
	return png.Encode(f, img)
}
