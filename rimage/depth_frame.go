package rimage

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// ErrFrameConversion is returned when a raw depth image cannot be turned into a DepthMap.
var ErrFrameConversion = errors.New("depth frame conversion failed")

// Raw depth encodings understood by DecodeDepthImage.
const (
	// Encoding32FC1 is one little or big endian float32 per pixel, in metres.
	Encoding32FC1 = "32FC1"
	// Encoding16UC1 is one uint16 per pixel, in millimetres.
	Encoding16UC1 = "16UC1"
	// EncodingMono16 is an alias of 16UC1 used by some drivers.
	EncodingMono16 = "mono16"
)

const millimetresPerMetre = 1000.

// DepthFrame is one depth image together with the time it was captured and the coordinate
// frame of the sensor that produced it.
type DepthFrame struct {
	*DepthMap
	Timestamp time.Time
	FrameID   string
}

// RawDepthImage is an undecoded depth image as it arrives on the wire.
type RawDepthImage struct {
	Width     int
	Height    int
	Encoding  string
	BigEndian bool
	// Step is the length of one row in bytes.
	Step int
	Data []byte
}

// DecodeDepthImage converts a raw image into a DepthMap in metres. Any inconsistency between
// the header and the payload is reported as ErrFrameConversion.
func DecodeDepthImage(raw RawDepthImage) (*DepthMap, error) {
	var bytesPerPixel int
	switch raw.Encoding {
	case Encoding32FC1:
		bytesPerPixel = 4
	case Encoding16UC1, EncodingMono16:
		bytesPerPixel = 2
	default:
		return nil, errors.Wrapf(ErrFrameConversion, "unsupported depth encoding %q", raw.Encoding)
	}
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, errors.Wrapf(ErrFrameConversion, "bad width or height for depth image %v %v", raw.Width, raw.Height)
	}
	step := raw.Step
	if step == 0 {
		step = raw.Width * bytesPerPixel
	}
	if step < raw.Width*bytesPerPixel {
		return nil, errors.Wrapf(ErrFrameConversion, "row step %d too small for %d pixels of %d bytes",
			step, raw.Width, bytesPerPixel)
	}
	if len(raw.Data) < step*(raw.Height-1)+raw.Width*bytesPerPixel {
		return nil, errors.Wrapf(ErrFrameConversion, "depth payload of %d bytes too short for %dx%d (step %d)",
			len(raw.Data), raw.Width, raw.Height, step)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if raw.BigEndian {
		order = binary.BigEndian
	}

	dm := NewEmptyDepthMap(raw.Width, raw.Height)
	for y := 0; y < raw.Height; y++ {
		row := raw.Data[y*step:]
		for x := 0; x < raw.Width; x++ {
			px := row[x*bytesPerPixel:]
			var d float64
			if bytesPerPixel == 4 {
				d = float64(math.Float32frombits(order.Uint32(px)))
			} else {
				d = float64(order.Uint16(px)) / millimetresPerMetre
			}
			dm.Set(x, y, d)
		}
	}
	return dm, nil
}
