// Package fetch retrieves a remote PDF to a local temp file for the demo
// client.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

type DownloadedFile struct {
	TempDir  string
	Path     string
	MIMEType string
	Size     int64
}

func (d DownloadedFile) Cleanup() {
	if d.TempDir != "" {
		_ = os.RemoveAll(d.TempDir)
	}
}

// DownloadToTemp fetches rawURL into a fresh temp directory, capped at
// maxBytes, and sniffs the MIME type of what actually arrived.
func DownloadToTemp(ctx context.Context, rawURL string, maxBytes int64, timeout time.Duration) (DownloadedFile, error) {
	if err := validateURL(rawURL); err != nil {
		return DownloadedFile{}, err
	}

	tmpDir, err := os.MkdirTemp("", "paperfetch-*")
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("temp dir: %w", err)
	}
	outPath := filepath.Join(tmpDir, "paper.pdf")

	req, _ := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	req.Header.Set("User-Agent", "paperfetch/1.0")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return DownloadedFile{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_ = os.RemoveAll(tmpDir)
		return DownloadedFile{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(outPath)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return DownloadedFile{}, fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	lr := &io.LimitedReader{R: resp.Body, N: maxBytes + 1}
	n, err := io.Copy(f, lr)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return DownloadedFile{}, fmt.Errorf("write: %w", err)
	}
	if n > maxBytes {
		_ = os.RemoveAll(tmpDir)
		return DownloadedFile{}, fmt.Errorf("file exceeds %dMB limit", maxBytes/(1<<20))
	}

	if err := f.Sync(); err != nil {
		_ = os.RemoveAll(tmpDir)
		return DownloadedFile{}, fmt.Errorf("sync: %w", err)
	}

	mt := ""
	if detected, err := mimetype.DetectFile(outPath); err == nil {
		mt = detected.String()
	}
	if mt == "" {
		mt = strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
		if i := strings.Index(mt, ";"); i > 0 {
			mt = strings.TrimSpace(mt[:i])
		}
	}

	return DownloadedFile{
		TempDir:  tmpDir,
		Path:     outPath,
		MIMEType: mt,
		Size:     n,
	}, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url missing host")
	}
	return nil
}
