package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smercer/gallium/internal/config"
)

func TestDisplayHost(t *testing.T) {
	tests := []struct{ bind, want string }{
		{"", "localhost"},
		{"0.0.0.0", "localhost"},
		{"127.0.0.1", "127.0.0.1"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		if got := displayHost(tt.bind); got != tt.want {
			t.Errorf("displayHost(%q) = %q; want %q", tt.bind, got, tt.want)
		}
	}
}

func TestWatchablePaths_SkipsMissing(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "photos"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfgFile := filepath.Join(root, "gallium.yaml")
	if err := os.WriteFile(cfgFile, []byte("title: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	oldConfigPath := configPath
	configPath = cfgFile
	defer func() { configPath = oldConfigPath }()

	cfg := config.Default()
	paths := watchablePaths(cfg, root)

	// photos/ and the config file exist; layouts/ and static/ do not.
	if len(paths) != 2 {
		t.Fatalf("paths = %v; want photos dir and config file only", paths)
	}
	if paths[0] != filepath.Join(root, "photos") || paths[1] != cfgFile {
		t.Errorf("paths = %v", paths)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"build": false, "serve": false, "deploy": false, "new": false, "version": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
