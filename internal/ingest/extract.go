// Package ingest turns uploaded source files into plain text ready for
// chunking and embedding.
package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/replyforge/replyforge/internal/domain"
)

// ExtractText extracts the plain text of an uploaded document based on
// its file extension.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return normalizeWhitespace(string(data)), nil
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".html", ".htm":
		return ExtractHTML(data)
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("unsupported file format: %s", ext))
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read PDF page %d: %w", i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	return normalizeWhitespace(sb.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return normalizeWhitespace(docxXMLToText(content)), nil
}

// docxXMLToText pulls the run text out of word/document.xml. Paragraph
// ends become newlines so chunk boundaries stay sentence-friendly.
func docxXMLToText(xmlContent string) string {
	var sb strings.Builder
	rest := xmlContent
	for {
		start := strings.Index(rest, "<w:t")
		if start < 0 {
			break
		}
		paraBreaks := strings.Count(rest[:start], "</w:p>")
		rest = rest[start:]

		closeTag := strings.Index(rest, ">")
		if closeTag < 0 {
			break
		}
		rest = rest[closeTag+1:]

		end := strings.Index(rest, "</w:t>")
		if end < 0 {
			break
		}
		if paraBreaks > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(rest[:end])
		rest = rest[end:]
	}
	return sb.String()
}

// ExtractHTML extracts the readable text of an HTML page, dropping
// script, style and navigation noise.
func ExtractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, header").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return normalizeWhitespace(text), nil
}

// normalizeWhitespace collapses runs of spaces and caps consecutive
// blank lines at one, keeping the text compact for embedding.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, strings.Join(fields, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
