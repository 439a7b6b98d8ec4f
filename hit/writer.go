package hit

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openbovw/bovw/internal/fs"
)

// FilePath returns the hit file path for an image identifier inside dir.
func FilePath(dir string, imageID uint32) string {
	return filepath.Join(dir, strconv.FormatUint(uint64(imageID), 10)+".dat")
}

// Writer appends hit records to a single image's file. It is owned by one
// pipeline invocation and is not safe for concurrent use.
//
// A write failure leaves whatever bytes reached the file in place; callers
// decide whether a truncated file is worth cleaning up. ValidateFile
// detects the truncation afterwards.
type Writer struct {
	file fs.File
	buf  *bufio.Writer
	path string

	scratch []byte
	count   int
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// WrapWriter, when set, wraps the file between the record buffer and
	// the disk. The pipeline applies its IO budget here.
	WrapWriter func(w io.Writer) io.Writer
}

// NewWriter creates (or truncates) the hit file for imageID inside dir.
func NewWriter(fsys fs.FileSystem, dir string, imageID uint32, optFns ...func(o *WriterOptions)) (*Writer, error) {
	if fsys == nil {
		fsys = fs.Default
	}

	var opts WriterOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	path := FilePath(dir, imageID)
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	var sink io.Writer = f
	if opts.WrapWriter != nil {
		sink = opts.WrapWriter(sink)
	}

	return &Writer{
		file:    f,
		buf:     bufio.NewWriterSize(sink, 32*1024),
		path:    path,
		scratch: make([]byte, 0, RecordSize),
	}, nil
}

// Append writes one record.
func (w *Writer) Append(h Hit) error {
	w.scratch = h.AppendBinary(w.scratch[:0])
	if _, err := w.buf.Write(w.scratch); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int { return w.count }

// Path returns the hit file's path.
func (w *Writer) Path() string { return w.path }

// Close flushes buffered records, syncs and closes the file. It must be
// called exactly once, including after a failed Append.
func (w *Writer) Close() error {
	flushErr := w.buf.Flush()
	syncErr := w.file.Sync()
	closeErr := w.file.Close()

	if flushErr != nil {
		return flushErr
	}
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// ValidateFile checks that the file at path holds a whole number of
// records and returns that count. A size not divisible by RecordSize
// returns ErrTruncated alongside the count of complete records.
func ValidateFile(fsys fs.FileSystem, path string) (int, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return 0, err
	}
	n := int(info.Size() / RecordSize)
	if info.Size()%RecordSize != 0 {
		return n, ErrTruncated
	}
	return n, nil
}
