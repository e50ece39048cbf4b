package cliploader

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gesture-sequencer/internal/sequencer"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// durationMetaKey is the user metadata key (x-amz-meta-duration) holding a
// clip's length in seconds.
const durationMetaKey = "duration"

// HeadObjectAPI is the subset of the S3 client the loader needs.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Loader resolves gestures to {prefix}{gesture}.glb objects in a bucket,
// reading the duration from object metadata.
type S3Loader struct {
	client HeadObjectAPI
	bucket string
	prefix string
}

// NewS3Loader returns a loader over bucket.
func NewS3Loader(client HeadObjectAPI, bucket, prefix string) *S3Loader {
	return &S3Loader{client: client, bucket: bucket, prefix: prefix}
}

// Load implements sequencer.ClipLoader.
func (l *S3Loader) Load(ctx context.Context, id sequencer.GestureID) (sequencer.Clip, error) {
	key := l.prefix + assetName(id)

	out, err := l.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return sequencer.Clip{}, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, l.bucket, key)
		}
		return sequencer.Clip{}, fmt.Errorf("head s3://%s/%s: %w", l.bucket, key, err)
	}

	raw, ok := out.Metadata[durationMetaKey]
	if !ok {
		return sequencer.Clip{}, fmt.Errorf("s3://%s/%s: missing %s metadata", l.bucket, key, durationMetaKey)
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return sequencer.Clip{}, fmt.Errorf("s3://%s/%s: invalid duration %q", l.bucket, key, raw)
	}

	return sequencer.Clip{
		ID:       id,
		Duration: sequencer.DurationFromSeconds(secs),
		Asset:    fmt.Sprintf("s3://%s/%s", l.bucket, key),
	}, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
