package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/posefusion/referenceframe"
	"go.viam.com/posefusion/ros"
	"go.viam.com/posefusion/services/posefusion"
)

// replayConfig is everything a replay needs besides the bag itself.
type replayConfig struct {
	Fusion *posefusion.Config
	Frames *referenceframe.StaticFrameSystem
	Topics ros.Topics
}

// cli only keys; everything else configures the engine.
const (
	framesKey = "frames"
	topicsKey = "topics"
)

// readReplayConfig reads a JSON or YAML file. Static frames go under "frames" and topic names
// under "topics"; all other keys are engine attributes.
func readReplayConfig(path string) (*replayConfig, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	return parseReplayConfig(data)
}

func parseReplayConfig(data []byte) (*replayConfig, error) {
	attrs := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}

	var links []referenceframe.LinkConfig
	if err := extract(attrs, framesKey, &links); err != nil {
		return nil, err
	}
	topics := ros.DefaultTopics()
	if err := extract(attrs, topicsKey, &topics); err != nil {
		return nil, err
	}

	fusion, err := posefusion.NewConfigFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	if err := fusion.Validate("posefusion"); err != nil {
		return nil, err
	}
	frames, err := referenceframe.NewStaticFrameSystemFromConfig("replay", links)
	if err != nil {
		return nil, errors.Wrap(err, "bad frames")
	}
	return &replayConfig{Fusion: fusion, Frames: frames, Topics: topics}, nil
}

// extract removes key from attrs and decodes it into out, leaving out untouched when absent.
func extract(attrs map[string]interface{}, key string, out interface{}) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	delete(attrs, key)
	raw, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return errors.Wrapf(yaml.Unmarshal(raw, out), "bad %q section", key)
}
