package feature

import (
	"image"
	"math"
)

const (
	// patchSize is the side length of the square patch a descriptor is
	// computed from. 16 pixels split into 4x4 cells of 4x4 pixels, with 8
	// orientation bins per cell: 4*4*8 = DescriptorSize.
	patchSize = 16
	cellSize  = 4
	numBins   = 8

	orientationBins = 36
)

// GridOptions configures the dense-grid extractor.
type GridOptions struct {
	// Step is the grid spacing in pixels between keypoint centers.
	Step int
}

// DefaultGridOptions contains the default extractor configuration.
var DefaultGridOptions = GridOptions{
	Step: 16,
}

// GridExtractor detects keypoints on a regular grid and describes each with
// an L2-normalized gradient-orientation histogram. It holds no mutable
// state, so a single instance serves concurrent pipelines.
type GridExtractor struct {
	step int
}

// NewGridExtractor creates a dense-grid extractor.
func NewGridExtractor(optFns ...func(o *GridOptions)) *GridExtractor {
	opts := DefaultGridOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Step <= 0 {
		opts.Step = DefaultGridOptions.Step
	}
	return &GridExtractor{step: opts.Step}
}

// Detect places keypoints on a grid with the configured spacing, skipping a
// border wide enough for the descriptor patch. Images too small to fit a
// single patch yield no keypoints and no error.
func (e *GridExtractor) Detect(img *image.Gray) ([]Keypoint, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	margin := patchSize/2 + 1
	if w < 2*margin || h < 2*margin {
		return nil, nil
	}

	gx, gy := gradients(img)

	var kps []Keypoint
	for y := margin; y < h-margin; y += e.step {
		for x := margin; x < w-margin; x += e.step {
			angle := dominantOrientation(gx, gy, w, x, y)
			desc := describePatch(gx, gy, w, x, y, angle)
			kps = append(kps, Keypoint{
				X:          float32(x),
				Y:          float32(y),
				Angle:      angle,
				Descriptor: desc,
			})
		}
	}
	return kps, nil
}

// gradients computes central-difference image gradients. Border pixels use
// their inner neighbor, which keeps the arrays the same size as the image.
func gradients(img *image.Gray) (gx, gy []float32) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	gx = make([]float32, w*h)
	gy = make([]float32, w*h)

	at := func(x, y int) float32 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return float32(img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx[y*w+x] = at(x+1, y) - at(x-1, y)
			gy[y*w+x] = at(x, y+1) - at(x, y-1)
		}
	}
	return gx, gy
}

// dominantOrientation returns the patch's strongest gradient direction in
// degrees, computed from a 36-bin magnitude-weighted histogram.
func dominantOrientation(gx, gy []float32, w, cx, cy int) float32 {
	var hist [orientationBins]float32
	half := patchSize / 2

	for dy := -half; dy < half; dy++ {
		for dx := -half; dx < half; dx++ {
			i := (cy+dy)*w + (cx + dx)
			mag := float32(math.Hypot(float64(gx[i]), float64(gy[i])))
			if mag == 0 {
				continue
			}
			theta := math.Atan2(float64(gy[i]), float64(gx[i]))
			deg := theta * 180 / math.Pi
			if deg < 0 {
				deg += 360
			}
			bin := int(deg/360*orientationBins) % orientationBins
			hist[bin] += mag
		}
	}

	best := 0
	for i := 1; i < orientationBins; i++ {
		if hist[i] > hist[best] {
			best = i
		}
	}
	return (float32(best) + 0.5) * 360 / orientationBins
}

// describePatch builds the 128-dim descriptor: the patch is divided into
// 4x4 cells, each contributing an 8-bin orientation histogram of gradient
// magnitudes with orientations taken relative to the keypoint angle. The
// result is L2-normalized; an all-zero patch stays all-zero.
func describePatch(gx, gy []float32, w, cx, cy int, angle float32) []float32 {
	desc := make([]float32, DescriptorSize)
	half := patchSize / 2
	ref := float64(angle) * math.Pi / 180

	for dy := -half; dy < half; dy++ {
		for dx := -half; dx < half; dx++ {
			i := (cy+dy)*w + (cx + dx)
			mag := math.Hypot(float64(gx[i]), float64(gy[i]))
			if mag == 0 {
				continue
			}
			theta := math.Atan2(float64(gy[i]), float64(gx[i])) - ref
			for theta < 0 {
				theta += 2 * math.Pi
			}
			for theta >= 2*math.Pi {
				theta -= 2 * math.Pi
			}

			cellX := (dx + half) / cellSize
			cellY := (dy + half) / cellSize
			bin := int(theta/(2*math.Pi)*numBins) % numBins

			desc[(cellY*cellSize+cellX)*numBins+bin] += float32(mag)
		}
	}

	var sum float64
	for _, v := range desc {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range desc {
			desc[i] *= inv
		}
	}
	return desc
}
