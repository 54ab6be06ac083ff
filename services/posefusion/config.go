package posefusion

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/posefusion/vision/segmentation"
)

const (
	defaultSearchEllipseScale = 5.0
	defaultDepthBandSigma     = 5.0
	defaultTransformTimeout   = time.Second
)

// Config describes how to configure the fusion engine.
type Config struct {
	// ReferenceFrame is the frame every published pose is expressed in.
	ReferenceFrame string `json:"reference_frame" yaml:"reference_frame"`
	// SensorFrame is the frame tracks are moved into before being projected onto the depth image.
	SensorFrame string `json:"sensor_frame,omitempty" yaml:"sensor_frame,omitempty"`

	DetectionPrimary     *bool `json:"detection_primary,omitempty" yaml:"detection_primary,omitempty"`
	TrackFeedbackEnabled *bool `json:"track_feedback_enabled,omitempty" yaml:"track_feedback_enabled,omitempty"`

	// SearchEllipseScale multiplies the square roots of the pixel covariance eigenvalues. An
	// explicit zero collapses the search ellipse onto the predicted pixel.
	SearchEllipseScale *float64 `json:"search_ellipse_scale,omitempty" yaml:"search_ellipse_scale,omitempty"`
	// DepthBandSigma is k in the track depth band. An explicit zero only accepts the predicted depth.
	DepthBandSigma *float64 `json:"depth_band_sigma,omitempty" yaml:"depth_band_sigma,omitempty"`

	DebugLogging       bool `json:"debug_logging,omitempty" yaml:"debug_logging,omitempty"`
	TransformTimeoutMs int  `json:"transform_timeout_ms,omitempty" yaml:"transform_timeout_ms,omitempty"`

	// SmoothingSigma of the mask smoothing kernel. Zero disables smoothing.
	SmoothingSigma *float64 `json:"smoothing_sigma,omitempty" yaml:"smoothing_sigma,omitempty"`

	MinDetectionConfidence float64 `json:"min_detection_confidence,omitempty" yaml:"min_detection_confidence,omitempty"`
	MinDetectionAreaPx     int     `json:"min_detection_area_px,omitempty" yaml:"min_detection_area_px,omitempty"`

	PublishProcessedImages bool `json:"publish_processed_images,omitempty" yaml:"publish_processed_images,omitempty"`
}

// NewConfigFromAttributes decodes a generic attribute map, such as one read from a JSON or YAML
// file, into a Config.
func NewConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "cannot decode pose fusion config")
	}
	return &conf, nil
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.ReferenceFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "reference_frame")
	}
	if config.TrackFeedback() && config.SensorFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "sensor_frame")
	}
	if config.SearchEllipseScale != nil && *config.SearchEllipseScale < 0 {
		return utils.NewConfigValidationError(path, errors.New("search_ellipse_scale cannot be negative"))
	}
	if config.DepthBandSigma != nil && *config.DepthBandSigma < 0 {
		return utils.NewConfigValidationError(path, errors.New("depth_band_sigma cannot be negative"))
	}
	if config.TransformTimeoutMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("transform_timeout_ms cannot be negative"))
	}
	if config.SmoothingSigma != nil && *config.SmoothingSigma < 0 {
		return utils.NewConfigValidationError(path, errors.New("smoothing_sigma cannot be negative"))
	}
	if config.MinDetectionConfidence < 0 || config.MinDetectionConfidence > 1 {
		return utils.NewConfigValidationError(path, errors.New("min_detection_confidence must be between 0 and 1"))
	}
	if config.MinDetectionAreaPx < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_detection_area_px cannot be negative"))
	}
	return nil
}

// DetectionFirst reports whether fresh detections take priority. Defaults to true.
func (config *Config) DetectionFirst() bool {
	return config.DetectionPrimary == nil || *config.DetectionPrimary
}

// TrackFeedback reports whether tracks may be used when detections are stale. Defaults to true.
func (config *Config) TrackFeedback() bool {
	return config.TrackFeedbackEnabled == nil || *config.TrackFeedbackEnabled
}

// EllipseScale returns the search ellipse multiplier, defaulting to 5.
func (config *Config) EllipseScale() float64 {
	if config.SearchEllipseScale == nil {
		return defaultSearchEllipseScale
	}
	return *config.SearchEllipseScale
}

// BandSigma returns k in the track depth band [z - k·σz, z + k·σz], defaulting to 5.
func (config *Config) BandSigma() float64 {
	if config.DepthBandSigma == nil {
		return defaultDepthBandSigma
	}
	return *config.DepthBandSigma
}

// TransformTimeout returns how long a single frame lookup may take, defaulting to one second.
func (config *Config) TransformTimeout() time.Duration {
	if config.TransformTimeoutMs == 0 {
		return defaultTransformTimeout
	}
	return time.Duration(config.TransformTimeoutMs) * time.Millisecond
}

// Smoothing returns the mask smoothing sigma. An explicit zero disables smoothing.
func (config *Config) Smoothing() float64 {
	if config.SmoothingSigma == nil {
		return segmentation.DefaultSmoothingSigma
	}
	return *config.SmoothingSigma
}
