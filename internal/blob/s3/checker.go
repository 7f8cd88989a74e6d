package s3blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pulsedelta/backend/internal/domain"
)

// Checker implements domain.BlobChecker with HeadObject.
type Checker struct {
	client *s3.Client
	bucket string
}

var _ domain.BlobChecker = (*Checker)(nil)

// NewChecker creates a Checker for c's bucket.
func NewChecker(c *Client) *Checker {
	return &Checker{client: c.s3, bucket: c.bucket}
}

// Exists reports whether an object is stored at path.
func (r *Checker) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: head object %s: %w", path, err)
	}
	return true, nil
}

// isNotFound matches the typed SDK errors and, for providers that answer
// HeadObject with a bare 404, the HTTP status.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
