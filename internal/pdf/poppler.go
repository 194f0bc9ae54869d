// Package pdf wraps the poppler command-line tools as the PDF decode
// capability: pdftotext for full plain-text extraction and pdfinfo for the
// document-information dictionary.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Sentinel is stored in place of every metadata field when the
// document-information read fails.
const Sentinel = "not identified"

// Cap extracted text to 50 MiB so a cursed PDF can't OOM the process.
const maxTextBytes = 50<<20 + 1

// Metadata is the four-field bibliographic batch read from a document's
// info dictionary.
type Metadata struct {
	Author           string
	CreationDate     string
	ModificationDate string
	Creator          string
}

// SentinelMetadata returns the batch with every field downgraded.
func SentinelMetadata() Metadata {
	return Metadata{
		Author:           Sentinel,
		CreationDate:     Sentinel,
		ModificationDate: Sentinel,
		Creator:          Sentinel,
	}
}

type Config struct {
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.PDFInfoTimeout <= 0 {
		out.PDFInfoTimeout = 5 * time.Second
	}
	if out.PDFToTextTimeout <= 0 {
		out.PDFToTextTimeout = 30 * time.Second
	}
	return out
}

// Extractor shells out to poppler. The zero value uses default timeouts.
type Extractor struct {
	cfg Config
}

func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg.withDefaults()}
}

// Text extracts the full plain text of the PDF at path. There is no
// fallback here: any failure is fatal to the ingestion request.
func (e *Extractor) Text(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PDFToTextTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		"pdftotext",
		"-nopgbrk",
		"-enc", "UTF-8",
		path,
		"-",
	)

	text, stderrStr, err := runCommandCaptureLimited(cmd, maxTextBytes)
	if err != nil {
		return "", classifyPopplerErr("pdftotext", err, ctx, stderrStr)
	}
	if len(text) >= maxTextBytes-1 {
		return "", fmt.Errorf("extracted text too large: %d bytes", len(text))
	}
	return text, nil
}

// Metadata reads the info dictionary of the PDF at path via pdfinfo.
//
// The read is best-effort and all-or-nothing: all four fields come back
// verbatim only when every expected info key is present; a pdfinfo failure
// or any single missing key downgrades the whole batch to sentinel values.
func (e *Extractor) Metadata(ctx context.Context, path string) Metadata {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PDFInfoTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdfinfo", path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logPopplerErr("pdfinfo", stderr.String())
		return SentinelMetadata()
	}

	meta, ok := metadataFromInfo(parseInfoFields(stdout.String()))
	if !ok {
		return SentinelMetadata()
	}
	return meta
}

// parseInfoFields splits pdfinfo's "Key: value" output lines into a map.
func parseInfoFields(out string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if _, dup := fields[key]; dup {
			continue
		}
		fields[key] = value
	}
	return fields
}

// metadataFromInfo maps info keys onto the metadata batch. The author field
// reads the Producer key, matching what the rest of the system has always
// stored for it. Any missing key fails the whole batch.
func metadataFromInfo(fields map[string]string) (Metadata, bool) {
	producer, okP := fields["Producer"]
	created, okCd := fields["CreationDate"]
	modified, okM := fields["ModDate"]
	creator, okCr := fields["Creator"]
	if !okP || !okCd || !okM || !okCr {
		return Metadata{}, false
	}
	return Metadata{
		Author:           producer,
		CreationDate:     created,
		ModificationDate: modified,
		Creator:          creator,
	}, true
}

// runCommandCaptureLimited runs cmd and captures stdout up to maxBytes.
// stderr is captured fully (usually small) for error reporting.
func runCommandCaptureLimited(cmd *exec.Cmd, maxBytes int64) (stdoutText, stderrText string, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("start: %w", err)
	}

	lr := io.LimitReader(stdoutPipe, maxBytes)
	outBytes, readErr := io.ReadAll(lr)

	waitErr := cmd.Wait()
	stderrStr := strings.TrimSpace(stderr.String())

	if readErr != nil {
		return "", stderrStr, fmt.Errorf("read stdout: %w", readErr)
	}
	if waitErr != nil {
		return "", stderrStr, waitErr
	}
	return string(outBytes), stderrStr, nil
}

func classifyPopplerErr(tool string, err error, ctx context.Context, stderr string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timeout: %w", tool, ctx.Err())
	}
	stderr = strings.TrimSpace(stderr)
	if stderr != "" {
		if containsAny(stderr,
			"Incorrect password",
			"Command Line Error: Incorrect password",
		) {
			logPopplerErr(tool, stderr)
			return fmt.Errorf("PDF is password protected")
		}
		if containsAny(stderr,
			"PDF file is damaged",
			"Syntax Error",
			"Couldn't find trailer dictionary",
			"May not be a PDF file",
		) {
			logPopplerErr(tool, stderr)
			return fmt.Errorf("PDF appears to be damaged or invalid")
		}
		if strings.Contains(stderr, "I/O Error") && strings.Contains(stderr, "Couldn't open file") {
			logPopplerErr(tool, stderr)
			return fmt.Errorf("unable to open PDF")
		}
		return fmt.Errorf("%s failed: %s", tool, truncate(stderr, 200))
	}
	return fmt.Errorf("%s failed: %w", tool, err)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func logPopplerErr(tool, stderr string) {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "%s error: %s\n", tool, truncate(msg, 500))
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
