// Package feature provides image decoding and local feature extraction for
// the quantization pipeline.
//
// Extraction is pluggable behind the Extractor interface so deployments can
// swap detector implementations without touching the pipeline. The built-in
// GridExtractor computes gradient-histogram descriptors on a dense grid; it
// produces the same descriptor shape as classic scale-invariant detectors
// (128 dimensions) and is deterministic, which the tests rely on.
package feature

import (
	"bytes"
	"errors"
	"image"
	"image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// DescriptorSize is the dimensionality of every descriptor an Extractor
// produces.
const DescriptorSize = 128

// ErrNotDecoded is returned when the input bytes cannot be decoded into an
// image.
var ErrNotDecoded = errors.New("feature: image not decoded")

// Keypoint is one detected local feature: its position and orientation in
// image space plus the descriptor vector used for quantization.
type Keypoint struct {
	// X and Y are pixel coordinates in the decoded image.
	X float32
	Y float32

	// Angle is the dominant orientation in degrees, in [0, 360).
	Angle float32

	// Descriptor has DescriptorSize elements.
	Descriptor []float32
}

// Extractor detects keypoints and computes their descriptors on a grayscale
// image. Implementations must be safe for concurrent use.
type Extractor interface {
	Detect(img *image.Gray) ([]Keypoint, error)
}

// DecodeGray decodes compressed image bytes into a grayscale image. Any
// format registered with the image package is accepted; color inputs are
// converted. Undecodable input returns ErrNotDecoded.
func DecodeGray(data []byte) (*image.Gray, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotDecoded
	}

	if gray, ok := src.(*image.Gray); ok {
		return gray, nil
	}

	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)
	return gray, nil
}
