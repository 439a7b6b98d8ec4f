package bovw

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/openbovw/bovw/ann"
	"github.com/openbovw/bovw/feature"
	"github.com/openbovw/bovw/hit"
	"github.com/openbovw/bovw/resource"
	"github.com/openbovw/bovw/vocabulary"
)

const (
	// MaxImageSide is the largest accepted width or height in pixels.
	MaxImageSide = 1000

	// MinImageSide is the smallest accepted width or height in pixels.
	MinImageSide = 200

	// WordsPerKeypoint is the number of nearest visual words persisted for
	// each keypoint.
	WordsPerKeypoint = 4
)

// Config holds the startup configuration for a Service.
type Config struct {
	// VocabularyPath is the visual-word vocabulary file. Compressed
	// artifacts (.zst, .lz4) are decompressed transparently.
	VocabularyPath string

	// IndexPath is the persisted nearest-neighbor index built from the
	// same vocabulary.
	IndexPath string

	// OutputDir receives one hit file per processed image.
	OutputDir string

	// VocabularySize is the expected word count. Zero means the standard
	// production size. A vocabulary with any other row count fails Open.
	VocabularySize int
}

// ImageRequest is one image to quantize.
type ImageRequest struct {
	ImageID uint32
	Data    []byte
}

// Result is the per-image outcome of a batch run.
type Result struct {
	ImageID uint32
	Outcome Outcome
	Records int
	Err     error
}

// Service is the quantization pipeline: it decodes images, extracts local
// features, maps each descriptor to its nearest visual words and persists
// the resulting hit records. Safe for concurrent use.
type Service struct {
	vocab *vocabulary.Vocabulary
	index *ann.Index
	opts  options
	cfg   Config

	mu        sync.Mutex
	processed *roaring.Bitmap

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Open loads the vocabulary and index and prepares the output directory.
// A vocabulary whose row count differs from the configured size is a fatal
// misconfiguration and fails here, before any request is accepted.
func Open(cfg Config, optFns ...Option) (*Service, error) {
	opts := applyOptions(optFns)

	expected := cfg.VocabularySize
	if expected == 0 {
		expected = vocabulary.DefaultSize
	}

	vocab, err := vocabulary.Load(cfg.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("bovw: load vocabulary: %w", err)
	}
	if err := vocab.CheckCount(expected); err != nil {
		return nil, fmt.Errorf("bovw: vocabulary: %w", err)
	}

	var annOpts []func(o *ann.Options)
	if opts.efSearch > 0 {
		annOpts = append(annOpts, func(o *ann.Options) { o.EFSearch = opts.efSearch })
	}
	index, err := ann.Load(vocab, cfg.IndexPath, annOpts...)
	if err != nil {
		return nil, fmt.Errorf("bovw: load index: %w", err)
	}

	if err := opts.fileSystem.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("bovw: output dir: %w", err)
	}

	if opts.shipper != nil && opts.resources != nil {
		opts.shipper.SetThrottle(opts.resources)
	}

	s := &Service{
		vocab:     vocab,
		index:     index,
		opts:      opts,
		cfg:       cfg,
		processed: roaring.New(),
	}
	opts.logger.LogStartup(vocab.Count(), cfg.IndexPath, cfg.OutputDir)
	return s, nil
}

// Process runs one image through the pipeline and reports its outcome. The
// returned error carries the failure detail behind the outcome; it is nil
// exactly when the outcome is OutcomeOk.
func (s *Service) Process(ctx context.Context, req ImageRequest) (Outcome, error) {
	outcome, _, err := s.processTimed(ctx, req)
	return outcome, err
}

func (s *Service) processTimed(ctx context.Context, req ImageRequest) (Outcome, int, error) {
	start := time.Now()

	records, err := s.process(ctx, req)
	outcome := outcomeForError(err)

	s.opts.metricsCollector.RecordProcess(outcome, records, time.Since(start))
	s.opts.logger.LogProcess(ctx, req.ImageID, outcome, records, time.Since(start), err)
	return outcome, records, err
}

func (s *Service) process(ctx context.Context, req ImageRequest) (int, error) {
	// Register before checking closed: Close sets the flag and then waits,
	// so a request that passes the check is always covered by the wait.
	s.wg.Add(1)
	defer s.wg.Done()
	if s.closed.Load() {
		return 0, ErrClosed
	}

	if err := s.opts.resources.AcquireWorker(ctx); err != nil {
		return 0, err
	}
	defer s.opts.resources.ReleaseWorker()

	if err := s.claim(req.ImageID); err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			s.release(req.ImageID)
		}
	}()

	img, err := feature.DecodeGray(req.Data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrImageNotDecoded, err)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w > MaxImageSide || h > MaxImageSide {
		return 0, &ErrImageTooLarge{Width: w, Height: h}
	}
	if w < MinImageSide || h < MinImageSide {
		return 0, &ErrImageTooSmall{Width: w, Height: h}
	}

	pixels := int64(w) * int64(h)
	if err := s.opts.resources.AcquirePixels(ctx, pixels); err != nil {
		return 0, err
	}
	defer s.opts.resources.ReleasePixels(pixels)

	keypoints, err := s.opts.extractor.Detect(img)
	if err != nil {
		return 0, fmt.Errorf("bovw: extract: %w", err)
	}

	// The hit file exists from here on, even if quantization fails mid-way.
	writer, err := hit.NewWriter(s.opts.fileSystem, s.cfg.OutputDir, req.ImageID, func(o *hit.WriterOptions) {
		o.WrapWriter = func(w io.Writer) io.Writer {
			return resource.NewLimitedWriter(ctx, s.opts.resources, w)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFileUnwritable, err)
	}

	if err := s.quantize(writer, req.ImageID, keypoints, float32(w), float32(h)); err != nil {
		_ = writer.Close()
		return writer.Count(), err
	}
	if err := writer.Close(); err != nil {
		return writer.Count(), fmt.Errorf("%w: %w", ErrFileUnwritable, err)
	}

	committed = true

	if s.opts.shipper != nil {
		if err := s.ship(ctx, req.ImageID, writer.Path(), writer.Count()); err != nil {
			return writer.Count(), err
		}
	}
	return writer.Count(), nil
}

// quantize maps every keypoint to its nearest visual words and appends one
// hit per word, in keypoint-then-rank order.
func (s *Service) quantize(writer *hit.Writer, imageID uint32, keypoints []feature.Keypoint, w, h float32) error {
	for _, kp := range keypoints {
		results, err := s.index.Search(kp.Descriptor, WordsPerKeypoint)
		if err != nil {
			return fmt.Errorf("bovw: quantize: %w", err)
		}

		angle := hit.QuantizeAngle(kp.Angle)
		x := hit.QuantizeCoord(kp.X, w)
		y := hit.QuantizeCoord(kp.Y, h)

		for _, r := range results {
			record := hit.Hit{
				WordID:  r.WordID,
				ImageID: imageID,
				Angle:   angle,
				X:       x,
				Y:       y,
			}
			if err := writer.Append(record); err != nil {
				return fmt.Errorf("%w: %w", ErrFileUnwritable, err)
			}
		}
	}
	return nil
}

func (s *Service) ship(ctx context.Context, imageID uint32, path string, records int) error {
	start := time.Now()
	key, err := s.opts.shipper.Ship(ctx, imageID, path, records)
	s.opts.metricsCollector.RecordShip(time.Since(start), err)
	s.opts.logger.LogShip(ctx, imageID, key, err)
	return err
}

// claim reserves an image identifier for this request. Without the
// reprocessing option a previously committed identifier is rejected.
func (s *Service) claim(imageID uint32) error {
	if s.opts.reprocessing {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed.Contains(imageID) {
		return fmt.Errorf("%w: %d", ErrDuplicateImage, imageID)
	}
	s.processed.Add(imageID)
	return nil
}

// release drops a claim after a failed request so the image can be retried.
func (s *Service) release(imageID uint32) {
	if s.opts.reprocessing {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed.Remove(imageID)
}

// ProcessBatch runs many requests concurrently, bounded by the configured
// worker limit, and returns one Result per request in input order.
func (s *Service) ProcessBatch(ctx context.Context, reqs []ImageRequest) []Result {
	start := time.Now()
	results := make([]Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			outcome, records, err := s.processTimed(ctx, req)
			results[i] = Result{ImageID: req.ImageID, Outcome: outcome, Records: records, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range results {
		if results[i].Outcome != OutcomeOk {
			failed++
		}
	}
	s.opts.metricsCollector.RecordBatch(len(reqs), failed, time.Since(start))
	s.opts.logger.LogBatch(ctx, len(reqs), failed)
	return results
}

// Vocabulary returns the loaded vocabulary.
func (s *Service) Vocabulary() *vocabulary.Vocabulary { return s.vocab }

// Close drains in-flight requests and releases the index. Requests arriving
// after Close fail with ErrClosed.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.wg.Wait()
	return s.index.Close()
}
