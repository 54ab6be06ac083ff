package ros

import (
	"encoding/json"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/services/posefusion"
	"go.viam.com/posefusion/vision/objectdetection"
)

// Stamp is a ROS time. ROS 1 bags name the fields secs/nsecs and ROS 2 bags sec/nanosec.
type Stamp struct {
	Secs    int64 `json:"secs"`
	Nsecs   int64 `json:"nsecs"`
	Sec     int64 `json:"sec"`
	Nanosec int64 `json:"nanosec"`
}

// Time returns the stamp as a time.
func (s Stamp) Time() time.Time {
	return time.Unix(s.Secs+s.Sec, s.Nsecs+s.Nanosec)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     int    `json:"seq"`
	Stamp   Stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// ByteArray is a uint8[] field. gobag writes these either as base64 strings or as arrays of
// numbers depending on the message definition.
type ByteArray []byte

// UnmarshalJSON accepts both encodings.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var raw []byte
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = raw
		return nil
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	raw = make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return errors.Errorf("byte %d out of range: %d", i, n)
		}
		raw[i] = byte(n)
	}
	*b = raw
	return nil
}

// ImageMessage is sensor_msgs/Image.
type ImageMessage struct {
	Header      Header    `json:"header"`
	Height      int       `json:"height"`
	Width       int       `json:"width"`
	Encoding    string    `json:"encoding"`
	IsBigendian int       `json:"is_bigendian"`
	Step        int       `json:"step"`
	Data        ByteArray `json:"data"`
}

// DepthFrame decodes the image into a depth frame in metres.
func (m *ImageMessage) DepthFrame() (*rimage.DepthFrame, error) {
	dm, err := rimage.DecodeDepthImage(rimage.RawDepthImage{
		Width:     m.Width,
		Height:    m.Height,
		Encoding:  m.Encoding,
		BigEndian: m.IsBigendian != 0,
		Step:      m.Step,
		Data:      m.Data,
	})
	if err != nil {
		return nil, err
	}
	return &rimage.DepthFrame{DepthMap: dm, Timestamp: m.Header.Stamp.Time(), FrameID: m.Header.FrameID}, nil
}

// CameraInfoMessage is the part of sensor_msgs/CameraInfo the engine needs. The camera matrix
// field is K in ROS 1 and k in ROS 2; json field matching is case insensitive so both decode.
type CameraInfoMessage struct {
	Header Header    `json:"header"`
	Height int       `json:"height"`
	Width  int       `json:"width"`
	K      []float64 `json:"k"`
}

// Point2D is a pixel position.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose2D is a box center. Newer vision_msgs nest the position, older ones inline it.
type Pose2D struct {
	Position *Point2D `json:"position,omitempty"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Theta    float64  `json:"theta"`
}

// Point returns the center position.
func (p Pose2D) Point() Point2D {
	if p.Position != nil {
		return *p.Position
	}
	return Point2D{X: p.X, Y: p.Y}
}

// BoundingBox2D is a center+size pixel box. Detectors publish the size either as size.{x,y} or
// as size_x/size_y.
type BoundingBox2D struct {
	Center Pose2D   `json:"center"`
	Size   *Point2D `json:"size,omitempty"`
	SizeX  float64  `json:"size_x"`
	SizeY  float64  `json:"size_y"`
}

// Dimensions returns the box width and height.
func (b BoundingBox2D) Dimensions() (float64, float64) {
	if b.Size != nil {
		return b.Size.X, b.Size.Y
	}
	return b.SizeX, b.SizeY
}

// DetectionMessage is one detected object.
type DetectionMessage struct {
	ClassName string        `json:"class_name"`
	Score     float64       `json:"score"`
	BBox      BoundingBox2D `json:"bbox"`
}

// DetectionArrayMessage is a list of detections for one image.
type DetectionArrayMessage struct {
	Header     Header             `json:"header"`
	Detections []DetectionMessage `json:"detections"`
}

// DetectionBatch converts the message.
func (m *DetectionArrayMessage) DetectionBatch() *objectdetection.DetectionBatch {
	batch := &objectdetection.DetectionBatch{
		Timestamp:  m.Header.Stamp.Time(),
		FrameID:    m.Header.FrameID,
		Detections: make([]objectdetection.Detection2D, 0, len(m.Detections)),
	}
	for _, d := range m.Detections {
		c := d.BBox.Center.Point()
		w, h := d.BBox.Dimensions()
		det := objectdetection.NewDetection2D(c.X, c.Y, w, h)
		det.Score = d.Score
		det.Label = d.ClassName
		batch.Detections = append(batch.Detections, det)
	}
	return batch
}

// Vector3 is geometry_msgs/Point.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseWithCovariance is geometry_msgs/PoseWithCovariance without the orientation, which the
// engine never uses.
type PoseWithCovariance struct {
	Pose struct {
		Position Vector3 `json:"position"`
	} `json:"pose"`
	Covariance []float64 `json:"covariance"`
}

// KFTrackMessage is one filtered track.
type KFTrackMessage struct {
	ID   int                `json:"id"`
	Pose PoseWithCovariance `json:"pose"`
}

// KFTracksMessage is every track the filter reported at one time.
type KFTracksMessage struct {
	Header Header           `json:"header"`
	Tracks []KFTrackMessage `json:"tracks"`
}

// TrackBatch converts the message.
func (m *KFTracksMessage) TrackBatch() *posefusion.TrackBatch {
	batch := &posefusion.TrackBatch{
		Timestamp: m.Header.Stamp.Time(),
		FrameID:   m.Header.FrameID,
		Tracks:    make([]posefusion.Track, 0, len(m.Tracks)),
	}
	for _, tr := range m.Tracks {
		p := tr.Pose.Pose.Position
		batch.Tracks = append(batch.Tracks, posefusion.Track{
			ID:         tr.ID,
			Position:   r3.Vector{X: p.X, Y: p.Y, Z: p.Z},
			Covariance: tr.Pose.Covariance,
		})
	}
	return batch
}
