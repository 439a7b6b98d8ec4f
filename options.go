package bovw

import (
	"log/slog"

	"github.com/openbovw/bovw/blobstore"
	"github.com/openbovw/bovw/feature"
	"github.com/openbovw/bovw/internal/fs"
	"github.com/openbovw/bovw/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	fileSystem       fs.FileSystem
	extractor        feature.Extractor
	shipper          *blobstore.Shipper
	resources        *resource.Controller
	efSearch         int
	reprocessing     bool
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bovw.NewJSONLogger(slog.LevelInfo)
//	svc, _ := bovw.Open(cfg, bovw.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bovw.BasicMetricsCollector{}
//	svc, _ := bovw.Open(cfg, bovw.WithMetricsCollector(metrics))
//	// ... process images ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithFileSystem overrides the filesystem used for hit files. Tests inject
// fs.FaultyFS here to exercise persistence failures.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fileSystem = fsys
	}
}

// WithExtractor overrides the feature extractor. The default is a dense
// grid extractor; deployments with a native detector plug it in here.
func WithExtractor(e feature.Extractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// WithShipper configures replication of finished hit files to a blob store.
func WithShipper(s *blobstore.Shipper) Option {
	return func(o *options) {
		o.shipper = s
	}
}

// WithResourceLimits bounds concurrent requests, decoded-pixel memory and
// write throughput.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = resource.NewController(cfg)
	}
}

// WithEFSearch overrides the index's candidate list size during search.
func WithEFSearch(ef int) Option {
	return func(o *options) {
		o.efSearch = ef
	}
}

// WithReprocessing allows an image identifier to be processed again,
// overwriting its previous hit file instead of failing.
func WithReprocessing() Option {
	return func(o *options) {
		o.reprocessing = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fileSystem:       fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.extractor == nil {
		o.extractor = feature.NewGridExtractor()
	}
	return o
}
