package deploy

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AWSS3Client implements S3Client using the AWS SDK.
type AWSS3Client struct {
	client *s3.Client
	bucket string
}

// NewAWSS3Client creates an S3 client for the given bucket.
func NewAWSS3Client(client *s3.Client, bucket string) *AWSS3Client {
	return &AWSS3Client{client: client, bucket: bucket}
}

func (c *AWSS3Client) PutObject(ctx context.Context, key string, body io.Reader, contentType, cacheControl string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", key, err)
	}
	return nil
}

func (c *AWSS3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// ListObjects returns key -> hash for every object under prefix. The hash
// is the object's ETag with quotes stripped, which for single-part uploads
// is the MD5 of the content and so directly comparable to FileEntry.Hash.
// Multipart ETags never match a plain MD5, which simply means those
// objects re-upload.
func (c *AWSS3Client) ListObjects(ctx context.Context, prefix string) (map[string]string, error) {
	hashes := make(map[string]string)

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			etag := ""
			if obj.ETag != nil {
				etag = strings.Trim(*obj.ETag, `"`)
			}
			hashes[*obj.Key] = etag
		}
	}

	return hashes, nil
}

// AWSCloudFrontClient implements CloudFrontClient using the AWS SDK.
type AWSCloudFrontClient struct {
	client *cloudfront.Client
}

// NewAWSCloudFrontClient creates a CloudFront client.
func NewAWSCloudFrontClient(client *cloudfront.Client) *AWSCloudFrontClient {
	return &AWSCloudFrontClient{client: client}
}

func (c *AWSCloudFrontClient) CreateInvalidation(ctx context.Context, distributionID string, paths []string) error {
	items := make([]string, len(paths))
	copy(items, paths)

	_, err := c.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(fmt.Sprintf("gallium-%d", time.Now().Unix())),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(items))),
				Items:    items,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating invalidation: %w", err)
	}
	return nil
}
