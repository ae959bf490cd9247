package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smercer/gallium/internal/config"
	"github.com/smercer/gallium/internal/server"
)

var (
	servePort         int
	serveBind         string
	serveNoLiveReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the site and serve it locally with live reload",
	Long: `Serve runs a full build, starts a local HTTP server for the output
directory, and watches the photo tree, layouts, and config for changes.
On change it rebuilds and tells connected browsers to reload.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "address to bind to (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoLiveReload, "no-livereload", false, "disable live reload")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	projectRoot := filepath.Dir(configPath)

	result, err := buildSite(cfg, projectRoot)
	if err != nil {
		return err
	}
	fmt.Printf("Built %d collections (%d photos)\n", result.Collections, result.Photos)

	overrides := map[string]any{}
	if servePort != 0 {
		overrides["port"] = servePort
	}
	if serveBind != "" {
		overrides["host"] = serveBind
	}
	if serveNoLiveReload {
		overrides["livereload"] = false
	}
	cfg.WithOverrides(overrides)

	port := cfg.Server.Port
	bind := cfg.Server.Host
	noLiveReload := !cfg.Server.LiveReload

	srv := server.NewServer(server.ServeOptions{
		Port:         port,
		Bind:         bind,
		OutputDir:    outputDir(cfg, projectRoot),
		NoLiveReload: noLiveReload,
		Verbose:      verbose,
	})

	watchPaths := watchablePaths(cfg, projectRoot)
	watcher := server.NewWatcher(watchPaths, 300*time.Millisecond, func() {
		fmt.Println("Change detected, rebuilding...")
		// Reload config so sidecar and site changes picked up from disk.
		freshCfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: reloading config: %v\n", err)
			freshCfg = cfg
		}
		if _, err := buildSite(freshCfg, projectRoot); err != nil {
			fmt.Fprintf(os.Stderr, "warning: rebuild failed: %v\n", err)
			return
		}
		srv.NotifyReload()
	})
	// The server owns the watcher lifecycle: Start runs it in the
	// background, Stop tears it down.
	srv.SetWatcher(watcher)
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Serving at http://%s:%d/ (Ctrl+C to stop)\n", displayHost(bind), port)
	return srv.Start(ctx)
}

// watchablePaths returns the project paths worth watching, skipping any
// that do not exist.
func watchablePaths(cfg *config.SiteConfig, projectRoot string) []string {
	candidates := []string{
		filepath.Join(projectRoot, cfg.SourceDir),
		filepath.Join(projectRoot, "layouts"),
		filepath.Join(projectRoot, "static"),
		configPath,
	}
	var paths []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

func displayHost(bind string) string {
	if bind == "" || bind == "0.0.0.0" {
		return "localhost"
	}
	return bind
}
