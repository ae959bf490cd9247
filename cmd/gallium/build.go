package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smercer/gallium/internal/build"
	"github.com/smercer/gallium/internal/config"
)

var (
	buildOutput  string
	buildBaseURL string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the gallery site",
	Long: `Build discovers photo collections under the source directory, generates
responsive image variants (reusing cached variants where possible), and
writes the manifest, HTML pages, and feeds to the output directory.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output directory (overrides config)")
	buildCmd.Flags().StringVar(&buildBaseURL, "base-url", "", "base URL for absolute links (overrides config)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	projectRoot := filepath.Dir(configPath)
	result, err := buildSite(cfg, projectRoot)
	if err != nil {
		return err
	}

	fmt.Printf("Built %d collections (%d photos) in %s\n",
		result.Collections, result.Photos, result.Duration.Round(time.Millisecond))
	fmt.Printf("  %d cache hits, %d variants generated, %d fallbacks\n",
		result.CacheHits, result.VariantsGenerated, result.Fallbacks)
	fmt.Printf("  %d files written (%.1f MB) to %s\n",
		result.FilesWritten, float64(result.OutputSize)/(1024*1024), outputDir(cfg, projectRoot))
	return nil
}

// buildSite runs a full build with the current command-line overrides
// applied. Shared with the serve command's rebuild path.
func buildSite(cfg *config.SiteConfig, projectRoot string) (*build.BuildResult, error) {
	opts := build.BuildOptions{
		OutputDir:   buildOutput,
		BaseURL:     buildBaseURL,
		ProjectRoot: projectRoot,
		Verbose:     verbose,
	}
	return build.NewBuilder(cfg, opts).Build()
}

func outputDir(cfg *config.SiteConfig, projectRoot string) string {
	dir := cfg.OutputDir
	if buildOutput != "" {
		dir = buildOutput
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, dir); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return dir
}
