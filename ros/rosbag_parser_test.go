package ros

import (
	"bytes"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestTopicKey(t *testing.T) {
	test.That(t, TopicKey("/observer/depth_image"), test.ShouldEqual, "observer_depth_image")
	test.That(t, TopicKey("kf/good_tracks"), test.ShouldEqual, "kf_good_tracks")
	test.That(t, TopicKey("/Detections"), test.ShouldEqual, "detections")
}

func TestFilters(t *testing.T) {
	all := TimeWindow{}.filter()
	test.That(t, all(0), test.ShouldBeTrue)
	test.That(t, all(1<<40), test.ShouldBeTrue)

	window := TimeWindow{Start: 10, End: 20}.filter()
	test.That(t, window(9), test.ShouldBeFalse)
	test.That(t, window(10), test.ShouldBeTrue)
	test.That(t, window(20), test.ShouldBeTrue)
	test.That(t, window(21), test.ShouldBeFalse)

	topics := topicFilter([]string{"observer/depth_image"})
	test.That(t, topics("/observer/depth_image"), test.ShouldBeTrue)
	test.That(t, topics("observer/depth_image"), test.ShouldBeTrue)
	test.That(t, topics("/detections"), test.ShouldBeFalse)
	test.That(t, topicFilter(nil)("/anything"), test.ShouldBeTrue)
}

func TestReadMessages(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"meta": {"secs":1,"nsecs":5}, "data":{"a": 1}}` + "\n")
	buf.WriteString(`{"meta": {"secs":2,"nsecs":0}, "data":{"a": 2}}` + "\n")

	msgs, err := readMessages("topic", &buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msgs, test.ShouldHaveLength, 2)
	test.That(t, msgs[0].Topic, test.ShouldEqual, "topic")
	test.That(t, msgs[0].Meta.Time(), test.ShouldEqual, time.Unix(1, 5))

	var payload struct{ A int }
	test.That(t, msgs[1].Decode(&payload), test.ShouldBeNil)
	test.That(t, payload.A, test.ShouldEqual, 2)

	empty := RawMessage{Topic: "topic"}
	test.That(t, empty.Decode(&payload), test.ShouldNotBeNil)

	_, err = readMessages("topic", bytes.NewBufferString("{not json}\n"))
	test.That(t, err, test.ShouldNotBeNil)
}
