package resource

import (
	"context"
	"io"
)

// LimitedWriter wraps an io.Writer so every write first waits on the
// controller's IO budget. Used on the hit-file and upload paths.
type LimitedWriter struct {
	w   io.Writer
	rc  *Controller
	ctx context.Context
}

// NewLimitedWriter creates a rate-limited writer. A nil controller passes
// writes through untouched.
func NewLimitedWriter(ctx context.Context, rc *Controller, w io.Writer) *LimitedWriter {
	return &LimitedWriter{w: w, rc: rc, ctx: ctx}
}

func (w *LimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// LimitedReader wraps an io.Reader with the same budget. The wait is for
// len(p), the largest amount the read can return.
type LimitedReader struct {
	r   io.Reader
	rc  *Controller
	ctx context.Context
}

// NewLimitedReader creates a rate-limited reader.
func NewLimitedReader(ctx context.Context, rc *Controller, r io.Reader) *LimitedReader {
	return &LimitedReader{r: r, rc: rc, ctx: ctx}
}

func (r *LimitedReader) Read(p []byte) (int, error) {
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
