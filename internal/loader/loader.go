// Package loader reads the document corpus from disk. Plain-text and
// markdown files are read as-is apart from trimming, keeping their newlines
// available as sentence boundaries for chunking; PDFs are validated locally
// with pdfcpu and sent to an external extraction service for text
// conversion, since government scheme PDFs mix Devanagari and Latin scripts
// in layouts that local text extraction handles poorly. Only extracted PDF
// text passes through CleanText.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/gramin-sahayak/sahayak-go/internal/logging"
	"github.com/gramin-sahayak/sahayak-go/internal/rag"
)

// FileLoader implements rag.DocumentLoader over a directory of .txt, .md,
// and .pdf files.
type FileLoader struct {
	// dir is the corpus directory.
	dir string
	// extractorURL is the PDF extraction endpoint. PDFs are skipped with a
	// warning when empty.
	extractorURL string
	// client is the shared HTTP client for extraction requests.
	client *http.Client
}

// Config holds the settings for constructing a FileLoader.
type Config struct {
	// Dir is the directory scanned for documents.
	Dir string
	// ExtractorURL is the PDF extraction service endpoint
	// (e.g. "http://localhost:5001/v1/convert/file").
	ExtractorURL string
}

// New constructs a FileLoader from the given config.
func New(cfg Config) *FileLoader {
	return &FileLoader{
		dir:          cfg.Dir,
		extractorURL: cfg.ExtractorURL,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
}

// LoadAll reads every supported document in the directory, sorted by name.
// Unreadable files are skipped with a warning. A missing directory is not
// an error; it returns an empty corpus.
func (l *FileLoader) LoadAll(ctx context.Context) ([]rag.Document, error) {
	log := logging.FromContext(ctx)

	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		log.Warn("loader: document directory not found", slog.String("dir", l.dir))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loader: failed to read %s: %w", l.dir, err)
	}

	var docs []rag.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.dir, entry.Name())
		var (
			doc     rag.Document
			loadErr error
		)
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
			doc, loadErr = l.loadText(path)
		case ".pdf":
			doc, loadErr = l.loadPDF(ctx, path)
		default:
			continue
		}
		if loadErr != nil {
			log.Warn("loader: skipping file",
				slog.String("path", path),
				slog.String("error", loadErr.Error()),
			)
			continue
		}

		log.Info("loader: document loaded",
			slog.String("filename", doc.Filename),
			slog.Int("chars", len([]rune(doc.Text))),
			slog.Int("pages", doc.PageCount),
		)
		docs = append(docs, doc)
	}

	log.Info("loader: corpus loaded", slog.Int("documents", len(docs)))
	return docs, nil
}

// loadText reads a .txt or .md file. The content keeps its internal
// newlines; only surrounding whitespace is trimmed.
func (l *FileLoader) loadText(path string) (rag.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rag.Document{}, err
	}
	return rag.Document{
		Filename:   filepath.Base(path),
		Text:       strings.TrimSpace(string(data)),
		SourcePath: path,
	}, nil
}

func (l *FileLoader) loadPDF(ctx context.Context, path string) (rag.Document, error) {
	if l.extractorURL == "" {
		return rag.Document{}, fmt.Errorf("no PDF extractor configured (set EXTRACTOR_URL)")
	}

	// Validate and count pages locally before shipping the file out.
	if err := api.ValidateFile(path, nil); err != nil {
		return rag.Document{}, fmt.Errorf("invalid PDF: %w", err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return rag.Document{}, fmt.Errorf("page count failed: %w", err)
	}

	text, err := l.extractText(ctx, path)
	if err != nil {
		return rag.Document{}, fmt.Errorf("extraction failed: %w", err)
	}

	return rag.Document{
		Filename:   filepath.Base(path),
		Text:       CleanText(text),
		PageCount:  pages,
		SourcePath: path,
	}, nil
}

// extractorResponse is the JSON body returned by the extraction service.
type extractorResponse struct {
	Document struct {
		MdContent string `json:"md_content"`
	} `json:"document"`
}

// extractText uploads the PDF to the extraction service as a multipart
// form and returns the converted markdown text.
func (l *FileLoader) extractText(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.extractorURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("extractor returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var result extractorResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode extractor response: %w", err)
	}
	return result.Document.MdContent, nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// allowedRe matches everything except word characters, whitespace,
	// Devanagari, and common punctuation.
	allowedRe    = regexp.MustCompile(`[^\w\s` + "ऀ-ॿ" + `.,;:!?()\-'"/]`)
	pageNumberRe = regexp.MustCompile(`Page \d+`)
)

// CleanText normalizes extracted PDF text: collapses whitespace runs,
// strips characters outside the Hindi/English/punctuation repertoire, and
// removes page-number artifacts.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = allowedRe.ReplaceAllString(text, "")
	text = pageNumberRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
