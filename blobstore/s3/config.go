package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewOptions configures the New convenience constructor.
type NewOptions struct {
	// Prefix is prepended to all blob keys.
	Prefix string

	// Region overrides the region from the default credential chain.
	Region string
}

// New creates an S3 store from the default AWS configuration chain
// (environment, shared config, instance metadata).
func New(ctx context.Context, bucket string, optFns ...func(o *NewOptions)) (*Store, error) {
	opts := NewOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return NewStore(s3.NewFromConfig(cfg), bucket, opts.Prefix), nil
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) func(o *NewOptions) {
	return func(o *NewOptions) { o.Prefix = prefix }
}

// WithRegion sets the AWS region.
func WithRegion(region string) func(o *NewOptions) {
	return func(o *NewOptions) { o.Region = region }
}
