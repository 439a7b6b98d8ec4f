// Command quantized maps image files onto a visual-word vocabulary and
// writes one hit file per image.
//
// Each argument is an image file whose basename (without extension) is a
// numeric image identifier, e.g. input/42.jpg writes imageHits/42.dat.
// One outcome is printed per file.
//
// Usage:
//
//	quantized --vocabulary words.dat --index words.idx [flags] <image>...
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/pflag"

	"github.com/openbovw/bovw"
	"github.com/openbovw/bovw/blobstore"
	s3store "github.com/openbovw/bovw/blobstore/s3"
	"github.com/openbovw/bovw/resource"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "quantized:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	files := pflag.Args()
	if len(files) == 0 {
		return fmt.Errorf("no image files given")
	}

	ctx := context.Background()

	opts, err := serviceOptions(ctx, cfg)
	if err != nil {
		return err
	}

	svc, err := bovw.Open(bovw.Config{
		VocabularyPath: cfg.Vocabulary,
		IndexPath:      cfg.Index,
		OutputDir:      cfg.OutputDir,
		VocabularySize: cfg.VocabularySize,
	}, opts...)
	if err != nil {
		return err
	}
	return quantizeFiles(ctx, svc, files)
}

type batchService interface {
	ProcessBatch(ctx context.Context, reqs []bovw.ImageRequest) []bovw.Result
	Close() error
}

// quantizeFiles runs the given image files through the service and closes
// it. A close failure (a failed unmap, an unflushed file) is reported, not
// swallowed, though a processing failure takes precedence.
func quantizeFiles(ctx context.Context, svc batchService, files []string) (err error) {
	defer func() {
		if cerr := svc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	reqs := make([]bovw.ImageRequest, 0, len(files))
	for _, file := range files {
		id, idErr := imageID(file)
		if idErr != nil {
			return idErr
		}
		data, readErr := os.ReadFile(file)
		if readErr != nil {
			return readErr
		}
		reqs = append(reqs, bovw.ImageRequest{ImageID: id, Data: data})
	}

	results := svc.ProcessBatch(ctx, reqs)

	failed := 0
	for i, r := range results {
		fmt.Printf("%s: %s\n", files[i], r.Outcome)
		if r.Outcome != bovw.OutcomeOk {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

func serviceOptions(ctx context.Context, cfg Config) ([]bovw.Option, error) {
	logger := buildLogger(cfg)
	opts := []bovw.Option{bovw.WithLogger(logger)}

	if cfg.Workers > 0 {
		opts = append(opts, bovw.WithResourceLimits(resource.Config{
			MaxWorkers: int64(cfg.Workers),
		}))
	}
	if cfg.EFSearch > 0 {
		opts = append(opts, bovw.WithEFSearch(cfg.EFSearch))
	}
	if cfg.Reprocess {
		opts = append(opts, bovw.WithReprocessing())
	}

	if cfg.S3Bucket != "" {
		store, err := s3store.New(ctx, cfg.S3Bucket,
			s3store.WithRegion(cfg.S3Region),
		)
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}

		var shipperOpts []func(o *blobstore.ShipperOptions)
		shipperOpts = append(shipperOpts, func(o *blobstore.ShipperOptions) {
			o.Prefix = cfg.S3Prefix
		})
		if cfg.CommitTable != "" {
			awsCfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("aws config: %w", err)
			}
			log := s3store.NewCommitLog(dynamodb.NewFromConfig(awsCfg), cfg.CommitTable, func(o *s3store.CommitLogOptions) {
				o.Overwrite = cfg.Reprocess
			})
			shipperOpts = append(shipperOpts, func(o *blobstore.ShipperOptions) {
				o.CommitLog = log
			})
		}
		opts = append(opts, bovw.WithShipper(blobstore.NewShipper(store, shipperOpts...)))
	}

	return opts, nil
}

func buildLogger(cfg Config) *bovw.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.LogJSON {
		return bovw.NewJSONLogger(level)
	}
	return bovw.NewTextLogger(level)
}

// imageID derives the numeric image identifier from a file path: the
// basename without extension must be a decimal uint32.
func imageID(file string) (uint32, error) {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	id, err := strconv.ParseUint(stem, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("cannot derive image id from %q: base name must be numeric", file)
	}
	return uint32(id), nil
}
