// Package deploy synchronises the built site with an S3 bucket and
// optionally invalidates a CloudFront distribution in front of it.
package deploy

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// URLRewriteFunctionCode is the CloudFront Function (cloudfront-js-2.0)
// source that rewrites viewer-request URIs to append index.html, matching
// the clean URLs the build writes.
const URLRewriteFunctionCode = `function handler(event) {
    var request = event.request;
    var uri = request.uri;

    // Paths with a file extension pass through untouched.
    if (uri.match(/\.[a-zA-Z0-9]+$/)) {
        return request;
    }
    if (uri.endsWith('/')) {
        request.uri = uri + 'index.html';
        return request;
    }
    request.uri = uri + '/index.html';
    return request;
}
`

// Options holds deployment configuration.
type Options struct {
	Bucket       string
	Region       string
	Distribution string // CloudFront distribution ID (optional)
	URLRewrite   bool   // whether to manage a CloudFront URL rewrite function
	DryRun       bool
	Verbose      bool
}

// Result holds the results of a deployment.
type Result struct {
	Uploaded int
	Deleted  int
	Skipped  int
	Errors   []error
}

// FileEntry represents a local file to deploy.
type FileEntry struct {
	Path         string // relative path from the output dir (e.g. "2024/dunes/index.html")
	ContentType  string // MIME type
	CacheControl string // Cache-Control header value
	Hash         string // hex-encoded MD5, comparable to single-part S3 ETags
}

// S3Client is an interface for S3 operations used during deployment.
type S3Client interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType, cacheControl string) error
	DeleteObject(ctx context.Context, key string) error
	// ListObjects returns key -> content hash for every remote object.
	ListObjects(ctx context.Context, prefix string) (map[string]string, error)
}

// CloudFrontClient is an interface for CloudFront invalidation.
type CloudFrontClient interface {
	CreateInvalidation(ctx context.Context, distributionID string, paths []string) error
}

// CloudFrontFunctionClient manages the clean-URL rewrite function.
type CloudFrontFunctionClient interface {
	// EnsureURLRewriteFunction creates or updates the rewrite function and
	// associates it with the distribution's default cache behavior as a
	// viewer-request function. Returns the function ARN.
	EnsureURLRewriteFunction(ctx context.Context, distributionID, functionName, functionCode string) (string, error)
}

// ContentTypeForExt returns the MIME type for a file extension. The ext
// parameter should include the leading dot (e.g. ".html").
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".xml":
		return "application/xml; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".ico":
		return "image/x-icon"
	}

	if ct := mime.TypeByExtension(strings.ToLower(ext)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// CacheControlForExt returns the Cache-Control header for a file extension.
//
// Policy:
//   - HTML and manifest/feed documents: "public, max-age=0, must-revalidate"
//   - Image variants: "public, max-age=604800" (regenerated names change
//     rarely; a week keeps the CDN warm without risking stale covers)
//   - Other files: "public, max-age=3600"
func CacheControlForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".html", ".htm", ".json", ".xml", ".txt":
		return "public, max-age=0, must-revalidate"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico":
		return "public, max-age=604800"
	default:
		return "public, max-age=3600"
	}
}

// HashFile computes the MD5 hash of a file as a hex string. MD5 is used for
// change detection only: it is directly comparable to the ETag S3 reports
// for single-part uploads.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ScanFiles walks the output directory and returns a FileEntry for every
// file, with Content-Type and Cache-Control derived from the extension.
func ScanFiles(outputDir string) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(outputDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		ext := filepath.Ext(path)
		hash, err := HashFile(path)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{
			Path:         relPath,
			ContentType:  ContentTypeForExt(ext),
			CacheControl: CacheControlForExt(ext),
			Hash:         hash,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning files: %w", err)
	}

	return entries, nil
}

// DiffFiles compares local files against remote object hashes and returns
// the files to upload (new or changed) and the keys to delete (remote
// only).
func DiffFiles(local []FileEntry, remoteHashes map[string]string) (toUpload []FileEntry, toDelete []string) {
	localMap := make(map[string]FileEntry, len(local))
	for _, entry := range local {
		localMap[entry.Path] = entry
	}

	for _, entry := range local {
		remoteHash, exists := remoteHashes[entry.Path]
		if !exists || remoteHash != entry.Hash {
			toUpload = append(toUpload, entry)
		}
	}

	for key := range remoteHashes {
		if _, exists := localMap[key]; !exists {
			toDelete = append(toDelete, key)
		}
	}

	return toUpload, toDelete
}

// Deploy executes the deployment using the provided clients.
//
// Steps:
//  1. Scan local files
//  2. List remote objects via S3Client
//  3. Diff to find uploads and deletes
//  4. If DryRun, print plan and return
//  5. Upload new/changed files, delete removed files
//  6. If URLRewrite enabled, ensure the CloudFront rewrite function
//  7. If Distribution is set, invalidate CloudFront with "/*"
func Deploy(ctx context.Context, opts Options, outputDir string, s3 S3Client, cf CloudFrontClient, cfFunc CloudFrontFunctionClient) (*Result, error) {
	result := &Result{}

	localFiles, err := ScanFiles(outputDir)
	if err != nil {
		return nil, fmt.Errorf("scanning local files: %w", err)
	}

	remoteHashes, err := s3.ListObjects(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing remote objects: %w", err)
	}

	toUpload, toDelete := DiffFiles(localFiles, remoteHashes)
	result.Skipped = len(localFiles) - len(toUpload)

	if opts.DryRun {
		if opts.Verbose {
			for _, f := range toUpload {
				fmt.Printf("[dry-run] upload: %s (%s)\n", f.Path, f.ContentType)
			}
			for _, key := range toDelete {
				fmt.Printf("[dry-run] delete: %s\n", key)
			}
		}
		if opts.URLRewrite && opts.Distribution != "" {
			fmt.Println("[dry-run] ensure CloudFront URL rewrite function: gallium-url-rewrite")
		}
		if opts.Distribution != "" {
			fmt.Printf("[dry-run] invalidate CloudFront distribution: %s\n", opts.Distribution)
		}
		result.Uploaded = len(toUpload)
		result.Deleted = len(toDelete)
		return result, nil
	}

	for _, entry := range toUpload {
		fullPath := filepath.Join(outputDir, filepath.FromSlash(entry.Path))
		f, err := os.Open(fullPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("opening %s: %w", entry.Path, err))
			continue
		}

		err = s3.PutObject(ctx, entry.Path, f, entry.ContentType, entry.CacheControl)
		f.Close()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("uploading %s: %w", entry.Path, err))
			continue
		}
		result.Uploaded++
		if opts.Verbose {
			fmt.Printf("uploaded: %s\n", entry.Path)
		}
	}

	for _, key := range toDelete {
		if err := s3.DeleteObject(ctx, key); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("deleting %s: %w", key, err))
			continue
		}
		result.Deleted++
		if opts.Verbose {
			fmt.Printf("deleted: %s\n", key)
		}
	}

	if opts.URLRewrite && opts.Distribution != "" && cfFunc != nil {
		arn, err := cfFunc.EnsureURLRewriteFunction(ctx, opts.Distribution,
			"gallium-url-rewrite", URLRewriteFunctionCode)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("CloudFront URL rewrite function: %w", err))
		} else if opts.Verbose {
			fmt.Printf("ensured CloudFront URL rewrite function: %s\n", arn)
		}
	}

	if opts.Distribution != "" && cf != nil {
		if err := cf.CreateInvalidation(ctx, opts.Distribution, []string{"/*"}); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("CloudFront invalidation: %w", err))
		} else if opts.Verbose {
			fmt.Printf("invalidated CloudFront distribution: %s\n", opts.Distribution)
		}
	}

	return result, nil
}
