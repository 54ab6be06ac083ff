// Package ros reads recorded ROS bags and replays their messages into the fusion engine.
package ros

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// TopicKey returns the key gobag files a topic's messages under: no leading slash, remaining
// slashes replaced by underscores, lower case.
func TopicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// TimeWindow limits parsing to messages recorded between Start and End, in whole seconds since
// the epoch. A zero bound disables the window.
type TimeWindow struct {
	Start int64
	End   int64
}

func (w TimeWindow) filter() func(int64) bool {
	if w.Start == 0 || w.End == 0 {
		return func(int64) bool { return true }
	}
	return func(timestamp int64) bool {
		return timestamp >= w.Start && timestamp <= w.End
	}
}

func topicFilter(topics []string) func(string) bool {
	if len(topics) == 0 {
		return func(string) bool { return true }
	}
	keys := make(map[string]bool, len(topics))
	for _, topic := range topics {
		keys[TopicKey(topic)] = true
	}
	return func(topic string) bool {
		return keys[TopicKey(topic)]
	}
}

// ParseTopics decodes the messages of the given topics into the bag's per-topic JSON buffers.
// An empty topic list parses everything.
func ParseTopics(rb *rosbag.RosBag, window TimeWindow, topics []string) error {
	if err := rb.ParseTopicsToJSON("", window.filter(), topicFilter(topics), false); err != nil {
		return errors.Wrapf(err, "error while parsing bag to JSON")
	}
	return nil
}

// Meta is the record time gobag attaches to every message.
type Meta struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Time returns the record time.
func (m Meta) Time() time.Time {
	return time.Unix(m.Secs, m.Nsecs)
}

// RawMessage is one parsed bag message whose payload has not been decoded yet.
type RawMessage struct {
	Topic string          `json:"-"`
	Meta  Meta            `json:"meta"`
	Data  json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v.
func (m *RawMessage) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return errors.Errorf("message on %s at %v has no data", m.Topic, m.Meta.Time())
	}
	return errors.Wrapf(json.Unmarshal(m.Data, v), "cannot decode message on %s", m.Topic)
}

type lineReader interface {
	ReadBytes(delim byte) ([]byte, error)
}

// readMessages splits a buffer of JSON lines into messages.
func readMessages(topic string, lines lineReader) ([]RawMessage, error) {
	var all []RawMessage
	for {
		data, err := lines.ReadBytes('\n')
		if len(strings.TrimSpace(string(data))) > 0 {
			msg := RawMessage{Topic: topic}
			if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
				return nil, errors.Wrapf(jsonErr, "bad message line on %s", topic)
			}
			all = append(all, msg)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return all, nil
}

// MessagesForTopic returns the already parsed messages of one topic, in record order.
func MessagesForTopic(rb *rosbag.RosBag, topic string) ([]RawMessage, error) {
	msgs := rb.TopicsAsJSON[TopicKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}
	return readMessages(topic, msgs)
}

// AllMessagesForTopic parses and returns all messages for a specific topic in the ros bag as
// generic JSON objects.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	if err := ParseTopics(rb, TimeWindow{}, []string{topic}); err != nil {
		return nil, err
	}
	raw, err := MessagesForTopic(rb, topic)
	if err != nil {
		return nil, err
	}

	all := make([]map[string]interface{}, 0, len(raw))
	for i := range raw {
		message := map[string]interface{}{}
		if err := json.Unmarshal(raw[i].Data, &message); err != nil {
			return nil, err
		}
		all = append(all, map[string]interface{}{
			"meta": map[string]interface{}{"secs": raw[i].Meta.Secs, "nsecs": raw[i].Meta.Nsecs},
			"data": message,
		})
	}
	return all, nil
}
