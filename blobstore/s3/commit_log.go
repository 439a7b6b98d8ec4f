package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/openbovw/bovw/blobstore"
)

// ErrAlreadyCommitted is returned when an image identifier has already been
// recorded in the commit log.
var ErrAlreadyCommitted = errors.New("s3: image already committed")

// DDBClient is the subset of the DynamoDB API the commit log uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// CommitLog implements blobstore.CommitLog on a DynamoDB table. Each shipped
// image becomes one item keyed by its identifier; the conditional write
// gives the exactly-once guarantee S3 alone cannot.
//
// Table schema:
//   - Partition key: image_id (number)
//
// Create with:
//
//	aws dynamodb create-table \
//	  --table-name bovw-commits \
//	  --attribute-definitions AttributeName=image_id,AttributeType=N \
//	  --key-schema AttributeName=image_id,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type CommitLog struct {
	client    DDBClient
	tableName string
	overwrite bool
}

// CommitLogOptions configures a CommitLog.
type CommitLogOptions struct {
	// Overwrite allows re-recording an already committed image instead of
	// failing with ErrAlreadyCommitted. Used by reprocessing runs.
	Overwrite bool
}

// NewCommitLog creates a DynamoDB-backed commit log.
func NewCommitLog(client DDBClient, tableName string, optFns ...func(o *CommitLogOptions)) *CommitLog {
	opts := CommitLogOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CommitLog{
		client:    client,
		tableName: tableName,
		overwrite: opts.Overwrite,
	}
}

// Record writes one commit item. Without the overwrite option, committing
// the same image twice fails with ErrAlreadyCommitted.
func (l *CommitLog) Record(ctx context.Context, c blobstore.Commit) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"image_id":     &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(c.ImageID), 10)},
			"key":          &types.AttributeValueMemberS{Value: c.Key},
			"record_count": &types.AttributeValueMemberN{Value: strconv.Itoa(c.RecordCount)},
		},
	}
	if !l.overwrite {
		input.ConditionExpression = aws.String("attribute_not_exists(image_id)")
	}

	if _, err := l.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %d", ErrAlreadyCommitted, c.ImageID)
		}
		return fmt.Errorf("s3: commit %d: %w", c.ImageID, err)
	}
	return nil
}

// Lookup fetches a commit item, returning blobstore.ErrNotFound when the
// image has not been committed.
func (l *CommitLog) Lookup(ctx context.Context, imageID uint32) (blobstore.Commit, error) {
	resp, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"image_id": &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(imageID), 10)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return blobstore.Commit{}, err
	}
	if len(resp.Item) == 0 {
		return blobstore.Commit{}, blobstore.ErrNotFound
	}

	c := blobstore.Commit{ImageID: imageID}
	if attr, ok := resp.Item["key"].(*types.AttributeValueMemberS); ok {
		c.Key = attr.Value
	}
	if attr, ok := resp.Item["record_count"].(*types.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(attr.Value)
		if err != nil {
			return blobstore.Commit{}, fmt.Errorf("s3: invalid record_count attribute: %w", err)
		}
		c.RecordCount = n
	}
	return c, nil
}
