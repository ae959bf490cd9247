package deploy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// mockS3Client records uploads and deletes and serves a fixed remote
// listing.
type mockS3Client struct {
	remote   map[string]string
	uploads  []string
	deletes  []string
	putBytes map[string][]byte
}

func newMockS3(remote map[string]string) *mockS3Client {
	if remote == nil {
		remote = map[string]string{}
	}
	return &mockS3Client{remote: remote, putBytes: map[string][]byte{}}
}

func (m *mockS3Client) PutObject(ctx context.Context, key string, body io.Reader, contentType, cacheControl string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.uploads = append(m.uploads, key)
	m.putBytes[key] = data
	return nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	return nil
}

func (m *mockS3Client) ListObjects(ctx context.Context, prefix string) (map[string]string, error) {
	return m.remote, nil
}

type mockCloudFrontClient struct {
	invalidations [][]string
}

func (m *mockCloudFrontClient) CreateInvalidation(ctx context.Context, distributionID string, paths []string) error {
	m.invalidations = append(m.invalidations, paths)
	return nil
}

func writeOutputFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestContentTypeForExt(t *testing.T) {
	tests := []struct{ ext, want string }{
		{".html", "text/html; charset=utf-8"},
		{".json", "application/json; charset=utf-8"},
		{".webp", "image/webp"},
		{".JPG", "image/jpeg"},
		{".weird", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeForExt(tt.ext); got != tt.want {
			t.Errorf("ContentTypeForExt(%q) = %q; want %q", tt.ext, got, tt.want)
		}
	}
}

func TestCacheControlForExt(t *testing.T) {
	if got := CacheControlForExt(".html"); got != "public, max-age=0, must-revalidate" {
		t.Errorf("html = %q", got)
	}
	if got := CacheControlForExt(".json"); got != "public, max-age=0, must-revalidate" {
		t.Errorf("json = %q", got)
	}
	if got := CacheControlForExt(".jpg"); got != "public, max-age=604800" {
		t.Errorf("jpg = %q", got)
	}
	if got := CacheControlForExt(".woff2"); got != "public, max-age=3600" {
		t.Errorf("other = %q", got)
	}
}

func TestScanFiles(t *testing.T) {
	dir := t.TempDir()
	writeOutputFile(t, dir, "index.html", "<html></html>")
	writeOutputFile(t, dir, "photos/2024/dunes/a-640w.jpg", "jpegbytes")

	entries, err := ScanFiles(dir)
	if err != nil {
		t.Fatalf("ScanFiles: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d; want 2", len(entries))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	if entries[0].Path != "index.html" {
		t.Errorf("path = %q; want forward slashes relative to root", entries[0].Path)
	}
	if entries[1].Path != "photos/2024/dunes/a-640w.jpg" {
		t.Errorf("path = %q", entries[1].Path)
	}
	if entries[1].ContentType != "image/jpeg" {
		t.Errorf("content type = %q", entries[1].ContentType)
	}
	if entries[0].Hash == "" || entries[0].Hash == entries[1].Hash {
		t.Error("hashes missing or not content-derived")
	}
}

func TestDiffFiles(t *testing.T) {
	local := []FileEntry{
		{Path: "index.html", Hash: "h-new"},
		{Path: "unchanged.css", Hash: "h-same"},
		{Path: "added.jpg", Hash: "h-add"},
	}
	remote := map[string]string{
		"index.html":    "h-old",
		"unchanged.css": "h-same",
		"removed.html":  "h-gone",
	}

	toUpload, toDelete := DiffFiles(local, remote)

	uploadPaths := make([]string, len(toUpload))
	for i, e := range toUpload {
		uploadPaths[i] = e.Path
	}
	sort.Strings(uploadPaths)
	if len(uploadPaths) != 2 || uploadPaths[0] != "added.jpg" || uploadPaths[1] != "index.html" {
		t.Errorf("toUpload = %v; want changed + new", uploadPaths)
	}
	if len(toDelete) != 1 || toDelete[0] != "removed.html" {
		t.Errorf("toDelete = %v; want [removed.html]", toDelete)
	}
}

func TestDeploy(t *testing.T) {
	dir := t.TempDir()
	writeOutputFile(t, dir, "index.html", "<html>v2</html>")
	writeOutputFile(t, dir, "style.css", "body{}")

	cssHash, err := HashFile(filepath.Join(dir, "style.css"))
	if err != nil {
		t.Fatal(err)
	}

	s3 := newMockS3(map[string]string{
		"style.css":  cssHash, // unchanged
		"stale.html": "h-old", // remote only
	})
	cf := &mockCloudFrontClient{}

	opts := Options{Bucket: "b", Distribution: "DIST123"}
	result, err := Deploy(context.Background(), opts, dir, s3, cf, nil)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if result.Uploaded != 1 || result.Deleted != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v; want 1 uploaded, 1 deleted, 1 skipped", result)
	}
	if len(s3.uploads) != 1 || s3.uploads[0] != "index.html" {
		t.Errorf("uploads = %v", s3.uploads)
	}
	if string(s3.putBytes["index.html"]) != "<html>v2</html>" {
		t.Error("uploaded content does not match local file")
	}
	if len(s3.deletes) != 1 || s3.deletes[0] != "stale.html" {
		t.Errorf("deletes = %v", s3.deletes)
	}
	if len(cf.invalidations) != 1 || cf.invalidations[0][0] != "/*" {
		t.Errorf("invalidations = %v", cf.invalidations)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestDeploy_DryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	writeOutputFile(t, dir, "index.html", "<html></html>")

	s3 := newMockS3(map[string]string{"stale.html": "h"})
	cf := &mockCloudFrontClient{}

	opts := Options{Bucket: "b", Distribution: "DIST123", DryRun: true}
	result, err := Deploy(context.Background(), opts, dir, s3, cf, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Uploaded != 1 || result.Deleted != 1 {
		t.Errorf("plan = %+v; want 1 upload, 1 delete", result)
	}
	if len(s3.uploads) != 0 || len(s3.deletes) != 0 || len(cf.invalidations) != 0 {
		t.Error("dry run performed remote mutations")
	}
}

func TestDeploy_NoDistributionSkipsInvalidation(t *testing.T) {
	dir := t.TempDir()
	writeOutputFile(t, dir, "index.html", "<html></html>")

	s3 := newMockS3(nil)
	cf := &mockCloudFrontClient{}

	if _, err := Deploy(context.Background(), Options{Bucket: "b"}, dir, s3, cf, nil); err != nil {
		t.Fatal(err)
	}
	if len(cf.invalidations) != 0 {
		t.Error("invalidation created without a configured distribution")
	}
}
