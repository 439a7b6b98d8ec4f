// Package s3 provides an Amazon S3 implementation of blobstore.Store plus a
// DynamoDB-backed commit log.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("hits/"))
//
//	shipper := blobstore.NewShipper(store, func(o *blobstore.ShipperOptions) {
//	    o.CommitLog = s3.NewCommitLog(ddbClient, "bovw-commits")
//	})
//
// # Features
//
//   - Streaming multipart uploads for hit files
//   - Range reads for spot-checking shipped files
//   - Conditional DynamoDB writes for exactly-once commit semantics
//   - Configurable prefix for multi-tenant isolation
package s3
