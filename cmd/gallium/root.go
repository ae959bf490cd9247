package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gallium",
	Short: "A static photo gallery generator",
	Long: `Gallium builds static photo gallery sites from a directory of images.

Collections live under photos/<year>/<slug>/; gallium generates responsive
image variants, assembles a manifest, renders HTML pages, and can serve the
result locally or deploy it to S3 with CloudFront.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gallium.yaml", "path to site config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
