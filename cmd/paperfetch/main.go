// Command paperfetch demonstrates the ingestion service end to end: it
// retrieves a remote PDF, submits it for ingestion, then reads back the
// extracted text and the filtered person entities.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/toricodesthings/paper-ingestion-service/internal/fetch"
)

const defaultPaperURL = "https://arxiv.org/pdf/cs/9308101v1.pdf"

func main() {
	paperURL := flag.String("url", defaultPaperURL, "URL of the PDF to fetch and ingest")
	server := flag.String("server", "http://localhost:8080", "base URL of the ingestion service")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Printf("Fetching %s", *paperURL)
	dl, err := fetch.DownloadToTemp(ctx, *paperURL, 50<<20, *timeout)
	if err != nil {
		log.Fatal("fetch failed: ", err)
	}
	defer dl.Cleanup()
	log.Printf("Downloaded %d bytes (%s)", dl.Size, dl.MIMEType)

	id, err := submitPDF(ctx, *server, dl.Path)
	if err != nil {
		log.Fatal("submit failed: ", err)
	}
	log.Printf("Ingested as document %d", id)

	text, err := fetchText(ctx, *server, id)
	if err != nil {
		log.Fatal("fetch text failed: ", err)
	}
	log.Printf("Extracted text: %d characters", len(text))

	entities, err := fetchEntities(ctx, *server, id)
	if err != nil {
		log.Fatal("fetch entities failed: ", err)
	}

	fmt.Printf("Person entities (%d):\n", len(entities))
	for _, name := range entities {
		fmt.Println("  -", name)
	}
}

// submitPDF uploads the file at path as a multipart form and returns the
// assigned document id.
func submitPDF(ctx context.Context, server, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "paper.pdf")
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", server+"/documents", &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, readErrBody(resp.Body))
	}

	var out struct {
		ID     int64  `json:"id"`
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func fetchText(ctx context.Context, server string, id int64) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := getJSON(ctx, fmt.Sprintf("%s/text/%d.txt", server, id), &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func fetchEntities(ctx context.Context, server string, id int64) ([]string, error) {
	var out struct {
		NamedEntities []string `json:"namedEntities"`
	}
	if err := getJSON(ctx, fmt.Sprintf("%s/documents/%d", server, id), &out); err != nil {
		return nil, err
	}
	return out.NamedEntities, nil
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d: %s", url, resp.StatusCode, readErrBody(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func readErrBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(bytes.TrimSpace(b))
}
