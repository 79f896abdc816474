package extract

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	appErr "github.com/localrag/localrag/internal/pkg/errors"
)

// Text pulls indexable plain text out of an uploaded file. Markdown is
// parsed and flattened so formatting noise never reaches the embedder,
// PDFs are run through the pdf text extractor, and anything that is not
// utf-8 text is rejected.
func Text(filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return markdownText(raw), nil
	case ".pdf":
		return pdfText(raw)
	case ".txt", ".log", "":
		return plainText(raw)
	default:
		contentType := http.DetectContentType(raw)
		if strings.HasPrefix(contentType, "text/") {
			return plainText(raw)
		}
		return "", fmt.Errorf("%w: unsupported file type %q (%s)", appErr.ErrInvalid, ext, contentType)
	}
}

// pdfText extracts the text content of every page. The pdf package
// panics on some malformed inputs, so the whole call runs behind a
// recover and a corrupt upload reports as invalid instead of crashing
// the ingest pipeline.
func pdfText(raw []byte) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("%w: malformed pdf: %v", appErr.ErrInvalid, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: malformed pdf: %v", appErr.ErrInvalid, err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text extraction failed: %v", appErr.ErrInvalid, err)
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("%w: pdf text extraction failed: %v", appErr.ErrInvalid, err)
	}
	return string(data), nil
}

func plainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: file is not valid utf-8 text", appErr.ErrInvalid)
	}
	return string(raw), nil
}

func markdownText(raw []byte) string {
	md := goldmark.New()
	reader := text.NewReader(raw)
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(raw))
			}
			if code := strings.TrimSpace(sb.String()); code != "" {
				parts = append(parts, code)
			}
		default:
			if txt := flattenNode(node, raw); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

func flattenNode(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).HardLineBreak() || node.(*ast.Text).SoftLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
