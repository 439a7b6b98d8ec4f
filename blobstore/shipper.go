package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
)

// Commit describes one shipped hit file for the commit log.
type Commit struct {
	ImageID     uint32
	Key         string
	RecordCount int
}

// CommitLog durably records which images have been shipped. Implementations
// may reject duplicate image identifiers (see s3.ErrAlreadyCommitted).
type CommitLog interface {
	Record(ctx context.Context, c Commit) error
}

// WriteThrottle bounds upload throughput. *resource.Controller implements it.
type WriteThrottle interface {
	AcquireIO(ctx context.Context, bytes int) error
}

// ShipperOptions configures a Shipper.
type ShipperOptions struct {
	// Prefix is prepended to every blob key.
	Prefix string

	// CommitLog, when set, receives a Commit after each successful upload.
	CommitLog CommitLog

	// Throttle, when set, paces the upload copy.
	Throttle WriteThrottle
}

// DefaultShipperOptions contains the default shipper configuration.
var DefaultShipperOptions = ShipperOptions{
	Prefix: "hits",
}

// Shipper replicates finished hit files into a blob store and records each
// upload in an optional commit log. Upload and commit are not atomic: a
// crash between the two leaves the blob present but uncommitted, and the
// image is re-shipped on retry.
type Shipper struct {
	store    Store
	prefix   string
	log      CommitLog
	throttle WriteThrottle
}

// NewShipper creates a Shipper on top of a store.
func NewShipper(store Store, optFns ...func(o *ShipperOptions)) *Shipper {
	opts := DefaultShipperOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Shipper{
		store:    store,
		prefix:   opts.Prefix,
		log:      opts.CommitLog,
		throttle: opts.Throttle,
	}
}

// SetThrottle installs an upload throttle unless one was configured at
// construction. The service shares its IO budget with shipping this way.
func (s *Shipper) SetThrottle(t WriteThrottle) {
	if s.throttle == nil {
		s.throttle = t
	}
}

// Key returns the blob key a given image ships under.
func (s *Shipper) Key(imageID uint32) string {
	return path.Join(s.prefix, strconv.FormatUint(uint64(imageID), 10)+".dat")
}

// Ship streams the local file at filename into the store and records the
// commit. It returns the blob key.
func (s *Shipper) Ship(ctx context.Context, imageID uint32, filename string, recordCount int) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("blobstore: open %s: %w", filename, err)
	}
	defer f.Close()

	key := s.Key(imageID)

	w, err := s.store.Create(ctx, key)
	if err != nil {
		return "", fmt.Errorf("blobstore: create %s: %w", key, err)
	}
	var dst io.Writer = w
	if s.throttle != nil {
		dst = &throttledWriter{ctx: ctx, throttle: s.throttle, w: w}
	}
	if _, err := io.Copy(dst, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("blobstore: upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("blobstore: upload %s: %w", key, err)
	}

	if s.log != nil {
		c := Commit{ImageID: imageID, Key: key, RecordCount: recordCount}
		if err := s.log.Record(ctx, c); err != nil {
			return "", fmt.Errorf("blobstore: commit %d: %w", imageID, err)
		}
	}
	return key, nil
}

type throttledWriter struct {
	ctx      context.Context
	throttle WriteThrottle
	w        io.Writer
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.throttle.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}
