package bovw

import (
	"errors"
	"fmt"

	"github.com/openbovw/bovw/feature"
)

var (
	// ErrImageNotDecoded is returned when request bytes cannot be decoded.
	ErrImageNotDecoded = errors.New("bovw: image not decoded")

	// ErrFileUnwritable is returned when the hit file cannot be created or
	// written.
	ErrFileUnwritable = errors.New("bovw: hit file unwritable")

	// ErrDuplicateImage is returned when an image identifier has already
	// been processed by this service instance.
	ErrDuplicateImage = errors.New("bovw: image already processed")

	// ErrClosed is returned for requests arriving after Close.
	ErrClosed = errors.New("bovw: service closed")
)

// ErrImageTooLarge indicates the decoded image exceeds the maximum side
// length.
type ErrImageTooLarge struct {
	Width  int
	Height int
}

func (e *ErrImageTooLarge) Error() string {
	return fmt.Sprintf("bovw: image %dx%d exceeds maximum side %d", e.Width, e.Height, MaxImageSide)
}

// ErrImageTooSmall indicates the decoded image is under the minimum side
// length.
type ErrImageTooSmall struct {
	Width  int
	Height int
}

func (e *ErrImageTooSmall) Error() string {
	return fmt.Sprintf("bovw: image %dx%d under minimum side %d", e.Width, e.Height, MinImageSide)
}

// outcomeForError maps a pipeline error onto the closed outcome set.
func outcomeForError(err error) Outcome {
	if err == nil {
		return OutcomeOk
	}

	if errors.Is(err, ErrImageNotDecoded) || errors.Is(err, feature.ErrNotDecoded) {
		return OutcomeImageNotDecoded
	}

	var tooLarge *ErrImageTooLarge
	if errors.As(err, &tooLarge) {
		return OutcomeImageTooLarge
	}
	var tooSmall *ErrImageTooSmall
	if errors.As(err, &tooSmall) {
		return OutcomeImageTooSmall
	}

	return OutcomeGenericError
}
