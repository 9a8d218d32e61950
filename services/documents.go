package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dhc_scraper/storage"
)

const maxDocumentBytes = 50 * 1024 * 1024

// DocumentService downloads court order PDFs into a local cache and
// optionally archives them to S3-compatible storage. The cache file
// name is derived from the source URL, so repeated requests for the
// same document hit the same file.
type DocumentService struct {
	dir        string
	httpClient *http.Client
	uploader   storage.Uploader
}

func NewDocumentService(dir string, uploader storage.Uploader) (*DocumentService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &DocumentService{
		dir:        dir,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		uploader:   uploader,
	}, nil
}

// Fetch returns the local path of the document at rawURL, downloading
// it on first request.
func (s *DocumentService) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unsupported document url %q", rawURL)
	}

	dest := filepath.Join(s.dir, cacheName(rawURL))
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := s.download(ctx, rawURL, dest); err != nil {
		return "", err
	}
	s.archive(ctx, dest)
	return dest, nil
}

func (s *DocumentService) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/pdf,*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "pdf") {
		log.Printf("[documents] %s served content-type %q, caching anyway", rawURL, ct)
	}

	// Download to a temp file first so readers never see a partial
	// document under the cache name.
	tmp, err := os.CreateTemp(s.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDocumentBytes)); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func (s *DocumentService) archive(ctx context.Context, path string) {
	if s.uploader == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("[documents] archive open %s: %v", path, err)
		return
	}
	defer f.Close()

	key := "documents/" + filepath.Base(path)
	if err := s.uploader.Upload(ctx, key, f, "application/pdf"); err != nil {
		log.Printf("[documents] archive upload %s: %v", key, err)
	}
}

// CleanupOlderThan removes cached documents whose modification time is
// past the retention window. Returns how many files were removed.
func (s *DocumentService) CleanupOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func cacheName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:12]) + ".pdf"
}
