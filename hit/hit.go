// Package hit defines the on-disk hit record: one quantized feature
// occurrence, binding a visual word to an image together with the feature's
// quantized pose.
//
// Records are fixed-size little-endian and appended to a per-image file
// named <imageID>.dat. The format has no header and no checksum; a file's
// record count is its size divided by RecordSize, and downstream index
// loaders stream records straight into memory.
package hit

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the serialized byte length of one Hit: two uint32 fields
// and three uint16 fields, packed without padding.
const RecordSize = 14

// ErrTruncated is returned by ValidateFile when a file's size is not a
// whole number of records.
var ErrTruncated = errors.New("hit: truncated record")

// Hit is one quantized feature occurrence.
type Hit struct {
	WordID  uint32
	ImageID uint32
	Angle   uint16 // Fixed-point orientation, full circle mapped to [0, 65536).
	X       uint16 // Fixed-point horizontal position, image width mapped to [0, 65536).
	Y       uint16 // Fixed-point vertical position, image height mapped to [0, 65536).
}

// AppendBinary appends the little-endian encoding of h to b.
func (h Hit) AppendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, h.WordID)
	b = binary.LittleEndian.AppendUint32(b, h.ImageID)
	b = binary.LittleEndian.AppendUint16(b, h.Angle)
	b = binary.LittleEndian.AppendUint16(b, h.X)
	b = binary.LittleEndian.AppendUint16(b, h.Y)
	return b
}

// DecodeRecord decodes one record from b, which must hold at least
// RecordSize bytes.
func DecodeRecord(b []byte) (Hit, error) {
	if len(b) < RecordSize {
		return Hit{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	return Hit{
		WordID:  binary.LittleEndian.Uint32(b[0:]),
		ImageID: binary.LittleEndian.Uint32(b[4:]),
		Angle:   binary.LittleEndian.Uint16(b[8:]),
		X:       binary.LittleEndian.Uint16(b[10:]),
		Y:       binary.LittleEndian.Uint16(b[12:]),
	}, nil
}

// QuantizeAngle maps an orientation in degrees to fixed point: the value is
// scaled by 65536/360 and truncated. Inputs at or beyond 360 clamp to the
// maximum rather than wrapping.
func QuantizeAngle(deg float32) uint16 {
	return quantize(deg, 360)
}

// QuantizeCoord maps a pixel position to fixed point relative to the image
// extent (width for x, height for y).
func QuantizeCoord(pos, extent float32) uint16 {
	return quantize(pos, extent)
}

func quantize(value, rng float32) uint16 {
	if rng <= 0 || value <= 0 {
		return 0
	}
	q := int64(float64(value) / float64(rng) * 65536)
	if q > 65535 {
		return 65535
	}
	return uint16(q)
}
