// Package extractor recovers plain text from documents. Extraction never
// fails: decode problems are logged and produce empty text.
package extractor

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"rfp/internal/domain"
	"rfp/internal/ocr"
)

// Config controls the OCR fallback.
type Config struct {
	// OCREnabled allows the scanned-PDF fallback. Images are always sent to
	// the engine when one is configured.
	OCREnabled bool
	// Threshold is the minimum number of native characters below which OCR runs.
	Threshold int
	DPI       int
	Language  string
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{OCREnabled: true, Threshold: 100, DPI: 300, Language: "eng"}
}

// Options are per-call extraction switches.
type Options struct {
	// ForceOCR skips native PDF text and goes straight to OCR.
	ForceOCR bool
}

// Extractor dispatches on document kind.
type Extractor struct {
	cfg        Config
	pdf        PDFReader
	rasterizer ocr.Rasterizer
	engine     ocr.Engine
	logger     *slog.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithPDFReader replaces the native PDF text reader.
func WithPDFReader(r PDFReader) Option { return func(e *Extractor) { e.pdf = r } }

// WithRasterizer sets the PDF page renderer used for OCR.
func WithRasterizer(r ocr.Rasterizer) Option { return func(e *Extractor) { e.rasterizer = r } }

// WithEngine sets the OCR engine.
func WithEngine(en ocr.Engine) Option { return func(e *Extractor) { e.engine = en } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Extractor) { e.logger = l } }

// New creates an Extractor. Without explicit options it reads PDFs natively
// and has no OCR capability.
func New(cfg Config, opts ...Option) *Extractor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 100
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	e := &Extractor{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.pdf == nil {
		e.pdf = NewNativePDFReader(e.logger)
	}
	return e
}

// Extract returns the text of doc.
func (e *Extractor) Extract(ctx context.Context, doc domain.Document, opts Options) domain.ExtractedText {
	kind := doc.Kind
	if kind == "" {
		kind = domain.KindFromPath(doc.Path)
	}
	log := e.logger.With(slog.String("file", doc.Path), slog.String("kind", string(kind)))

	var out domain.ExtractedText
	switch kind {
	case domain.KindPDF:
		out = e.extractPDF(ctx, doc, opts.ForceOCR, log)
	case domain.KindDOCX:
		out = domain.ExtractedText{Text: e.extractDOCX(doc, log)}
	case domain.KindDOC:
		out = domain.ExtractedText{Text: e.extractDOC(doc, log)}
	case domain.KindText:
		out = domain.ExtractedText{Text: extractTXT(doc, log)}
	case domain.KindImage:
		out = e.extractImage(ctx, doc, log)
	default:
		log.Warn("unsupported file format")
		return domain.ExtractedText{Kind: kind}
	}
	out.Kind = kind
	log.Info("extracted text", slog.Int("characters", out.Length()), slog.Bool("ocr_used", out.OCRUsed))
	return out
}

func extractTXT(doc domain.Document, log *slog.Logger) string {
	if !utf8.Valid(doc.Content) {
		log.Error("text file is not valid UTF-8", slog.String("error", domain.ErrExtraction.Error()))
		return ""
	}
	return string(doc.Content)
}

func (e *Extractor) extractImage(ctx context.Context, doc domain.Document, log *slog.Logger) domain.ExtractedText {
	if e.engine == nil {
		logOCRHint(log, domain.ErrOCRUnavailable)
		return domain.ExtractedText{}
	}
	text, err := e.engine.Recognize(ctx, doc.Content, e.cfg.Language)
	if err != nil {
		logOCRHint(log, err)
		return domain.ExtractedText{}
	}
	return domain.ExtractedText{Text: text, OCRUsed: true}
}

func logOCRHint(log *slog.Logger, err error) {
	log.Error("ocr failed", slog.String("error", err.Error()))
	log.Error("make sure tesseract-ocr is installed: sudo apt-get install tesseract-ocr")
	log.Error("and poppler-utils: sudo apt-get install poppler-utils")
}
