// Package bovw implements the quantization stage of a bag-of-visual-words
// image retrieval pipeline.
//
// A Service maps every local feature of an incoming image onto its nearest
// visual words from a fixed vocabulary and persists the result as fixed-size
// hit records, one binary file per image. Downstream index builders consume
// those files; this package never reads them back except to validate.
//
// # Quick Start
//
//	svc, err := bovw.Open(bovw.Config{
//	    VocabularyPath: "visualWordsORB.dat",
//	    IndexPath:      "visualWordsORB.idx",
//	    OutputDir:      "imageHits",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	outcome, err := svc.Process(ctx, bovw.ImageRequest{
//	    ImageID: 42,
//	    Data:    jpegBytes,
//	})
//
// Every request yields exactly one Outcome: Ok, ImageNotDecoded,
// ImageTooLarge, ImageTooSmall or GenericError.
//
// # Pipeline
//
// Each request moves through a fixed sequence: decode to grayscale, validate
// dimensions, extract keypoints, quantize each descriptor to its
// WordsPerKeypoint nearest visual words, append the hits to the image's
// file. Zero keypoints is a valid outcome and produces an empty file. A
// failure mid-write leaves the truncated file in place; hit.ValidateFile
// detects it.
//
// # Replication
//
// With WithShipper configured, finished hit files are uploaded to a
// blobstore.Store (local directory, S3, MinIO) and optionally recorded in a
// DynamoDB commit log for exactly-once tracking across hosts.
package bovw
