// Package parser extracts plain text from supported source documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrUnsupportedFormat reports a file extension the loader does not ingest.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var supportedExt = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
	".md":   true,
}

// Supported reports whether files with the given extension are ingested.
func Supported(ext string) bool {
	return supportedExt[strings.ToLower(ext)]
}

// ExtractText returns the plain text of the document at path, dispatching
// on the file extension.
func ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".md":
		return extractMarkdown(path)
	case ".txt":
		return extractText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(pageText)
	}
	return text.String(), nil
}

func extractDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	doc := r.Editable()
	content := doc.GetContent()

	var text strings.Builder
	for _, paragraph := range strings.Split(content, "\n") {
		paragraph = stripTags(paragraph)
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(paragraph)
	}
	return text.String(), nil
}

// extractMarkdown renders the markdown to HTML, matching how ingested
// markdown has always been indexed.
func extractMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(data, &buf); err != nil {
		return "", err
	}
	return strings.Trim(buf.String(), " \t\n\r"), nil
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// stripTags drops XML markup the docx library leaves in paragraph content.
func stripTags(s string) string {
	var text strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			text.WriteRune(r)
		}
	}
	return text.String()
}
