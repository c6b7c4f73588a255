package knowledge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxChunkLen caps imported chunk size so a single chunk cannot dominate
// a retrieval-augmented prompt.
const maxChunkLen = 1200

// ExtractText reads a local .pdf, .html/.htm, .md, or .txt file and
// returns its plain-text content.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return ExtractHTMLText(data)
	case ".txt", ".md", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", path)
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d of %s: %w", i, path, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// ExtractHTMLText strips tags from an HTML document, skipping script and
// style contents, and returns the visible text.
func ExtractHTMLText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String()), nil
}

// SplitChunks breaks extracted text into knowledge chunks on paragraph
// boundaries, merging short paragraphs and splitting oversized ones. The
// idPrefix seeds chunk IDs ("anxiety-guide" yields "anxiety-guide-1", ...).
func SplitChunks(text, idPrefix string) []Chunk {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var merged []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > maxChunkLen {
			merged = append(merged, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(p)
		// Oversized single paragraph: flush in maxChunkLen slices.
		for current.Len() > maxChunkLen {
			s := current.String()
			cut := strings.LastIndex(s[:maxChunkLen], " ")
			if cut <= 0 {
				cut = maxChunkLen
			}
			merged = append(merged, strings.TrimSpace(s[:cut]))
			current.Reset()
			current.WriteString(strings.TrimSpace(s[cut:]))
		}
	}
	if current.Len() > 0 {
		merged = append(merged, current.String())
	}

	chunks := make([]Chunk, len(merged))
	for i, content := range merged {
		chunks[i] = Chunk{
			ID:      fmt.Sprintf("%s-%d", idPrefix, i+1),
			Content: content,
		}
	}
	return chunks
}
