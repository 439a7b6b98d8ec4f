package bovw

// Outcome is the closed set of per-request results the pipeline reports.
// Every processed image yields exactly one Outcome.
type Outcome int

const (
	// OutcomeOk means the image was quantized and its hit file persisted.
	OutcomeOk Outcome = iota

	// OutcomeImageNotDecoded means the request bytes were not a decodable image.
	OutcomeImageNotDecoded

	// OutcomeImageTooLarge means a side exceeded the maximum dimension.
	OutcomeImageTooLarge

	// OutcomeImageTooSmall means a side was under the minimum dimension.
	OutcomeImageTooSmall

	// OutcomeGenericError covers every other failure: persistence errors,
	// duplicate identifiers, extraction faults, shutdown.
	OutcomeGenericError
)

var outcomeNames = map[Outcome]string{
	OutcomeOk:              "ok",
	OutcomeImageNotDecoded: "image_not_decoded",
	OutcomeImageTooLarge:   "image_too_large",
	OutcomeImageTooSmall:   "image_too_small",
	OutcomeGenericError:    "generic_error",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}
