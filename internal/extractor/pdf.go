package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"rfp/internal/domain"
)

// PageText is the text of one PDF page, numbered from 1.
type PageText struct {
	Number int
	Text   string
}

// PDFReader returns the embedded text of every readable page.
// Pages that cannot be decoded are omitted.
type PDFReader interface {
	ReadPages(ctx context.Context, data []byte) ([]PageText, error)
}

// NativePDFReader reads embedded PDF text with github.com/ledongthuc/pdf.
type NativePDFReader struct {
	logger *slog.Logger
}

func NewNativePDFReader(logger *slog.Logger) *NativePDFReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativePDFReader{logger: logger}
}

func (r *NativePDFReader) ReadPages(ctx context.Context, data []byte) (pages []PageText, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", domain.ErrExtraction, rec)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	total := reader.NumPage()
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		text, err := r.readPage(reader, n)
		if err != nil {
			r.logger.Warn("error extracting page", slog.Int("page_number", n), slog.String("error", err.Error()))
			continue
		}
		pages = append(pages, PageText{Number: n, Text: text})
	}
	return pages, nil
}

func (r *NativePDFReader) readPage(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", n)
	}
	return page.GetPlainText(nil)
}

type pdfState int

const (
	stateNative pdfState = iota
	stateOCR
	stateDone
)

// pageBuilder accumulates page texts separated by provenance markers.
type pageBuilder struct {
	sb    strings.Builder
	pages []domain.PageMarker
	ocr   bool
	runes int
	// content counts page characters, markers excluded.
	content int
}

func (b *pageBuilder) add(number int, text string) {
	marker := fmt.Sprintf("\n\n--- Page %d ---\n\n", number)
	if b.ocr {
		marker = fmt.Sprintf("\n\n--- Page %d (OCR) ---\n\n", number)
	}
	b.sb.WriteString(marker)
	b.runes += utf8.RuneCountInString(marker)
	b.pages = append(b.pages, domain.PageMarker{Number: number, Offset: b.runes, OCR: b.ocr})
	b.sb.WriteString(text)
	b.runes += utf8.RuneCountInString(text)
	b.content += utf8.RuneCountInString(strings.TrimSpace(text))
}

func (b *pageBuilder) result() domain.ExtractedText {
	return domain.ExtractedText{Text: b.sb.String(), Pages: b.pages, OCRUsed: b.ocr}
}

// shouldOCR is the native -> ocr transition guard.
func (e *Extractor) shouldOCR(force bool, nativeChars int) bool {
	return force || (e.cfg.OCREnabled && nativeChars < e.cfg.Threshold)
}

// extractPDF runs the native -> ocr state machine. When OCR recognises no
// page the native text is kept; under force it is read only at that point.
func (e *Extractor) extractPDF(ctx context.Context, doc domain.Document, force bool, log *slog.Logger) domain.ExtractedText {
	var native *pageBuilder
	state := stateNative
	if force {
		state = stateOCR
	}
	var out domain.ExtractedText
	for state != stateDone {
		switch state {
		case stateNative:
			native = e.nativePDF(ctx, doc, log)
			out = native.result()
			if e.shouldOCR(false, native.content) {
				log.Info("text extraction insufficient, using ocr", slog.Int("characters", native.content), slog.Int("threshold", e.cfg.Threshold))
				state = stateOCR
			} else {
				state = stateDone
			}
		case stateOCR:
			if res, ok := e.ocrPDF(ctx, doc, log); ok {
				out = res
			} else if native == nil {
				out = e.nativePDF(ctx, doc, log).result()
			}
			state = stateDone
		}
	}
	return out
}

func (e *Extractor) nativePDF(ctx context.Context, doc domain.Document, log *slog.Logger) *pageBuilder {
	b := &pageBuilder{}
	pages, err := e.pdf.ReadPages(ctx, doc.Content)
	if err != nil {
		log.Error("error reading pdf", slog.String("error", err.Error()))
	}
	for _, p := range pages {
		b.add(p.Number, p.Text)
	}
	return b
}

// ocrPDF reports false when no page could be recognised.
func (e *Extractor) ocrPDF(ctx context.Context, doc domain.Document, log *slog.Logger) (domain.ExtractedText, bool) {
	if e.rasterizer == nil || e.engine == nil {
		logOCRHint(log, domain.ErrOCRUnavailable)
		return domain.ExtractedText{}, false
	}
	images, err := e.rasterizer.Rasterize(ctx, doc.Content, e.cfg.DPI)
	if err != nil {
		logOCRHint(log, err)
		return domain.ExtractedText{}, false
	}
	b := &pageBuilder{ocr: true}
	for i, img := range images {
		log.Info("running ocr on page", slog.Int("page", i+1), slog.Int("pages", len(images)))
		text, err := e.engine.Recognize(ctx, img, e.cfg.Language)
		if err != nil {
			logOCRHint(log, err)
			break
		}
		b.add(i+1, text)
	}
	if len(b.pages) == 0 {
		return domain.ExtractedText{}, false
	}
	return b.result(), true
}
