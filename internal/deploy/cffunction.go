package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// cfFunctionAPI is the subset of the CloudFront SDK used for function
// management.
type cfFunctionAPI interface {
	DescribeFunction(ctx context.Context, params *cloudfront.DescribeFunctionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.DescribeFunctionOutput, error)
	CreateFunction(ctx context.Context, params *cloudfront.CreateFunctionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateFunctionOutput, error)
	UpdateFunction(ctx context.Context, params *cloudfront.UpdateFunctionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateFunctionOutput, error)
	PublishFunction(ctx context.Context, params *cloudfront.PublishFunctionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.PublishFunctionOutput, error)
	GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error)
	UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error)
}

// AWSCloudFrontFunctionClient implements CloudFrontFunctionClient using the
// AWS SDK v2.
type AWSCloudFrontFunctionClient struct {
	client cfFunctionAPI
}

// NewAWSCloudFrontFunctionClient creates a new AWSCloudFrontFunctionClient.
func NewAWSCloudFrontFunctionClient(client cfFunctionAPI) *AWSCloudFrontFunctionClient {
	return &AWSCloudFrontFunctionClient{client: client}
}

// EnsureURLRewriteFunction creates or updates the rewrite function, publishes
// it to LIVE, and attaches it to the distribution's default cache behavior as
// a viewer-request function. Re-running with the same inputs is a no-op.
func (c *AWSCloudFrontFunctionClient) EnsureURLRewriteFunction(
	ctx context.Context, distributionID, functionName, functionCode string,
) (string, error) {
	arn, etag, err := c.upsertFunction(ctx, functionName, functionCode)
	if err != nil {
		return "", fmt.Errorf("ensuring function %q: %w", functionName, err)
	}

	if _, err := c.client.PublishFunction(ctx, &cloudfront.PublishFunctionInput{
		Name:    aws.String(functionName),
		IfMatch: aws.String(etag),
	}); err != nil {
		return "", fmt.Errorf("publishing function %q: %w", functionName, err)
	}

	if err := c.attachToDistribution(ctx, distributionID, arn); err != nil {
		return "", fmt.Errorf("associating function with distribution %q: %w", distributionID, err)
	}

	return arn, nil
}

// upsertFunction creates the function if it does not exist, or updates its
// code if it does. Returns the function ARN and the ETag needed to publish.
func (c *AWSCloudFrontFunctionClient) upsertFunction(ctx context.Context, name, code string) (arn, etag string, err error) {
	cfg := &cftypes.FunctionConfig{
		Comment: aws.String("Gallium URL rewrite: appends index.html for clean URLs"),
		Runtime: cftypes.FunctionRuntimeCloudfrontJs20,
	}

	descOut, descErr := c.client.DescribeFunction(ctx, &cloudfront.DescribeFunctionInput{
		Name:  aws.String(name),
		Stage: cftypes.FunctionStageDevelopment,
	})

	var notFound *cftypes.NoSuchFunctionExists
	switch {
	case descErr == nil:
		out, err := c.client.UpdateFunction(ctx, &cloudfront.UpdateFunctionInput{
			Name:           aws.String(name),
			FunctionCode:   []byte(code),
			FunctionConfig: cfg,
			IfMatch:        descOut.ETag,
		})
		if err != nil {
			return "", "", fmt.Errorf("updating function: %w", err)
		}
		return aws.ToString(out.FunctionSummary.FunctionMetadata.FunctionARN),
			aws.ToString(out.ETag), nil

	case errors.As(descErr, &notFound):
		out, err := c.client.CreateFunction(ctx, &cloudfront.CreateFunctionInput{
			Name:           aws.String(name),
			FunctionCode:   []byte(code),
			FunctionConfig: cfg,
		})
		if err != nil {
			return "", "", fmt.Errorf("creating function: %w", err)
		}
		return aws.ToString(out.FunctionSummary.FunctionMetadata.FunctionARN),
			aws.ToString(out.ETag), nil

	default:
		return "", "", fmt.Errorf("describing function: %w", descErr)
	}
}

// attachToDistribution sets the function as the viewer-request function on
// the distribution's default cache behavior. Any existing viewer-request
// function is replaced; associations for other event types are preserved.
func (c *AWSCloudFrontFunctionClient) attachToDistribution(ctx context.Context, distributionID, functionARN string) error {
	getOut, err := c.client.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: aws.String(distributionID),
	})
	if err != nil {
		return fmt.Errorf("getting distribution config: %w", err)
	}

	distConfig := getOut.DistributionConfig
	behavior := distConfig.DefaultCacheBehavior

	var kept []cftypes.FunctionAssociation
	if behavior.FunctionAssociations != nil {
		for _, assoc := range behavior.FunctionAssociations.Items {
			if assoc.EventType == cftypes.EventTypeViewerRequest {
				if aws.ToString(assoc.FunctionARN) == functionARN {
					// Already attached.
					return nil
				}
				continue
			}
			kept = append(kept, assoc)
		}
	}

	kept = append(kept, cftypes.FunctionAssociation{
		EventType:   cftypes.EventTypeViewerRequest,
		FunctionARN: aws.String(functionARN),
	})

	qty := int32(len(kept))
	behavior.FunctionAssociations = &cftypes.FunctionAssociations{
		Quantity: &qty,
		Items:    kept,
	}

	if _, err := c.client.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(distributionID),
		DistributionConfig: distConfig,
		IfMatch:            getOut.ETag,
	}); err != nil {
		return fmt.Errorf("updating distribution: %w", err)
	}

	return nil
}
