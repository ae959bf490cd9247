package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.SourceDir != "photos" {
		t.Errorf("SourceDir = %q; want %q", cfg.SourceDir, "photos")
	}
	if cfg.OutputDir != "public" {
		t.Errorf("OutputDir = %q; want %q", cfg.OutputDir, "public")
	}
	if cfg.Images.Quality != 80 || cfg.Images.Format != "jpeg" {
		t.Errorf("Images = %+v", cfg.Images)
	}
	if cfg.Server.Port != 1414 || !cfg.Server.LiveReload {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "gallium.yaml", `
title: "Dunes and Light"
baseURL: "https://example.com"
images:
  quality: 72
  format: webp
  widths: [480, 960]
deploy:
  s3:
    bucket: my-gallery
    region: eu-west-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Title != "Dunes and Light" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Images.Quality != 72 || cfg.Images.Format != "webp" {
		t.Errorf("Images = %+v", cfg.Images)
	}
	if !reflect.DeepEqual(cfg.Images.Widths, []int{480, 960}) {
		t.Errorf("Widths = %v", cfg.Images.Widths)
	}
	// Defaults survive where the file is silent.
	if cfg.SourceDir != "photos" {
		t.Errorf("SourceDir = %q; want default", cfg.SourceDir)
	}
	if cfg.Deploy.S3.Bucket != "my-gallery" {
		t.Errorf("Deploy.S3.Bucket = %q", cfg.Deploy.S3.Bucket)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "gallium.toml", `
title = "Field Notes"

[images]
quality = 85
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Title != "Field Notes" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Images.Quality != 85 {
		t.Errorf("Quality = %d", cfg.Images.Quality)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SiteConfig)
		wantErr string
	}{
		{"valid", func(c *SiteConfig) {}, ""},
		{"missing title", func(c *SiteConfig) { c.Title = "  " }, "title"},
		{"trailing slash", func(c *SiteConfig) { c.BaseURL = "https://example.com/" }, "trailing slash"},
		{"quality too low", func(c *SiteConfig) { c.Images.Quality = 0 }, "quality"},
		{"quality too high", func(c *SiteConfig) { c.Images.Quality = 101 }, "quality"},
		{"bad format", func(c *SiteConfig) { c.Images.Format = "avif" }, "format"},
		{"no widths", func(c *SiteConfig) { c.Images.Widths = nil }, "widths"},
		{"negative width", func(c *SiteConfig) { c.Images.Widths = []int{640, -1} }, "positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Title = "Test Site"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q; want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSortedWidths(t *testing.T) {
	cfg := Default()
	cfg.Images.Widths = []int{1920, 640, 1280, 640}
	got := cfg.SortedWidths()
	if !reflect.DeepEqual(got, []int{640, 1280, 1920}) {
		t.Errorf("SortedWidths = %v", got)
	}
}

func TestWithOverrides(t *testing.T) {
	cfg := Default()
	cfg.Title = "Original"

	cfg.WithOverrides(map[string]any{
		"baseURL":   "https://photos.example.com",
		"port":      8080,
		"quality":   60,
		"unrelated": "ignored",
	})

	if cfg.BaseURL != "https://photos.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Images.Quality != 60 {
		t.Errorf("Quality = %d", cfg.Images.Quality)
	}
	if cfg.Title != "Original" {
		t.Errorf("Title = %q; want unchanged", cfg.Title)
	}
}
