package main

import (
	"fmt"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/smercer/gallium/internal/config"
	"github.com/smercer/gallium/internal/deploy"
)

var deployDryRun bool

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the built site to S3",
	Long: `Deploy syncs the output directory to the configured S3 bucket: new and
changed files are uploaded, files no longer present locally are deleted.
If a CloudFront distribution is configured it is invalidated afterwards,
and the clean-URL rewrite function is installed when urlRewrite is set.

Run "gallium build" first; deploy ships whatever is in the output
directory. AWS credentials come from the standard SDK chain (environment,
shared config, instance role).`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "show what would be uploaded/deleted without doing it")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Deploy.S3.Bucket == "" {
		return fmt.Errorf("no deploy target: set deploy.s3.bucket in %s", configPath)
	}

	projectRoot := filepath.Dir(configPath)
	outDir := cfg.OutputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(projectRoot, outDir)
	}

	ctx := cmd.Context()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Deploy.S3.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	s3Client := deploy.NewAWSS3Client(s3.NewFromConfig(awsCfg), cfg.Deploy.S3.Bucket)
	cfClient := deploy.NewAWSCloudFrontClient(cloudfront.NewFromConfig(awsCfg))
	cfFuncClient := deploy.NewAWSCloudFrontFunctionClient(cloudfront.NewFromConfig(awsCfg))

	opts := deploy.Options{
		Bucket:       cfg.Deploy.S3.Bucket,
		Region:       cfg.Deploy.S3.Region,
		Distribution: cfg.Deploy.CloudFront.DistributionID,
		URLRewrite:   cfg.Deploy.CloudFront.URLRewrite,
		DryRun:       deployDryRun,
		Verbose:      verbose,
	}

	result, err := deploy.Deploy(ctx, opts, outDir, s3Client, cfClient, cfFuncClient)
	if err != nil {
		return err
	}

	label := ""
	if deployDryRun {
		label = " (dry run)"
	}
	fmt.Printf("Deploy%s: %d uploaded, %d deleted, %d unchanged\n",
		label, result.Uploaded, result.Deleted, result.Skipped)
	for _, derr := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", derr)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("deploy finished with %d errors", len(result.Errors))
	}
	return nil
}
