package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"code.sajari.com/docconv/v2"

	"rfp/internal/domain"
)

func (e *Extractor) extractDOCX(doc domain.Document, log *slog.Logger) string {
	text, err := docxParagraphs(doc.Content)
	if err != nil {
		log.Error("error reading docx", slog.String("error", err.Error()))
		return ""
	}
	return text
}

// extractDOC converts legacy Word files; docconv shells out to antiword.
func (e *Extractor) extractDOC(doc domain.Document, log *slog.Logger) string {
	res, err := docconv.Convert(bytes.NewReader(doc.Content), "application/msword", false)
	if err != nil {
		log.Error("error reading doc", slog.String("error", err.Error()))
		return ""
	}
	return res.Body
}

// docxParagraphs returns the text of each top-level body paragraph joined by "\n".
// Runs keep their tabs and line breaks.
func docxParagraphs(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: opening docx archive: %w", domain.ErrExtraction, err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening document.xml: %w", domain.ErrExtraction, err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return "", fmt.Errorf("%w: word/document.xml not found", domain.ErrExtraction)
}

func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		stack     []string
		paras     []string
		cur       strings.Builder
		paraDepth = -1
	)
	parent := func() string {
		if len(stack) < 2 {
			return ""
		}
		return stack[len(stack)-2]
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parsing document.xml: %w", domain.ErrExtraction, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			name := t.Name.Local
			switch {
			case name == "p" && parent() == "body":
				paraDepth = len(stack)
				cur.Reset()
			case paraDepth < 0 || parent() != "r":
			case name == "tab":
				cur.WriteByte('\t')
			case name == "br" || name == "cr":
				cur.WriteByte('\n')
			}
		case xml.CharData:
			if paraDepth >= 0 && len(stack) > 0 && stack[len(stack)-1] == "t" && parent() == "r" {
				cur.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" && len(stack) == paraDepth {
				paras = append(paras, cur.String())
				paraDepth = -1
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}
