package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// supportedExtensions maps file extensions to the document type recorded on
// chunks and processing logs.
var supportedExtensions = map[string]string{
	".pdf":  "pdf",
	".xlsx": "xlsx",
	".html": "html",
	".htm":  "html",
	".txt":  "text",
	".md":   "text",
}

// DocumentStorage reads source documents from a local directory and extracts
// their plain text for chunking.
type DocumentStorage struct {
	dir         string
	maxFileSize int64
}

func NewDocumentStorage(dir string, maxFileSize int64) (*DocumentStorage, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage path %q is not a directory", dir)
	}
	return &DocumentStorage{dir: dir, maxFileSize: maxFileSize}, nil
}

// ListDocuments returns the supported files in the storage directory, sorted
// by name for deterministic batch runs.
func (s *DocumentStorage) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FetchText extracts the plain text of a stored document and returns it with
// the md5 hash of the raw file.
func (s *DocumentStorage) FetchText(ctx context.Context, name string) (string, string, error) {
	if filepath.Base(name) != name {
		return "", "", fmt.Errorf("invalid document name %q", name)
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat %q: %w", name, err)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return "", "", fmt.Errorf("%q is %d bytes, above the %d byte limit", name, info.Size(), s.maxFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %q: %w", name, err)
	}
	hash := utils.FileHash(raw)

	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	var text string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		text, err = extractPDF(raw)
	case ".xlsx":
		text, err = extractXLSX(raw)
	case ".html", ".htm":
		text, err = extractHTML(raw)
	default:
		text = string(raw)
	}
	if err != nil {
		return "", "", fmt.Errorf("extract text from %q: %w", name, err)
	}
	return strings.TrimSpace(text), hash, nil
}

// DocumentTypeFor returns the document type recorded for a file name.
func DocumentTypeFor(name string) string {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// TitleFromFileName derives the document title from a file name: the base
// name without its extension, underscores replaced with spaces.
func TitleFromFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ReplaceAll(base, "_", " ")
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with broken font tables are skipped, not fatal.
			logger.Warn("Failed to extract PDF page", "page", i, "error", err)
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractXLSX(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func extractHTML(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		sb.WriteString(sel.Text())
	})
	if sb.Len() == 0 {
		return doc.Text(), nil
	}
	return sb.String(), nil
}
