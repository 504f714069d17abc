package domain

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind identifies the format of a source document.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
	KindDOC     Kind = "doc"
	KindText    Kind = "txt"
	KindImage   Kind = "image"
	KindRecord  Kind = "record"
	KindUnknown Kind = "unknown"
)

var extensionKinds = map[string]Kind{
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".doc":  KindDOC,
	".txt":  KindText,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".tiff": KindImage,
	".tif":  KindImage,
	".bmp":  KindImage,
}

// KindFromPath maps a file extension (case-insensitive) to a Kind.
func KindFromPath(path string) Kind {
	if k, ok := extensionKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return KindUnknown
}

// Document is a source file read into memory. It is not modified after loading.
type Document struct {
	ID      string
	Path    string
	Kind    Kind
	Content []byte
}

// PageMarker records where a page starts inside ExtractedText.Text.
type PageMarker struct {
	Number int
	Offset int
	OCR    bool
}

// ExtractedText is the plain text recovered from a Document.
type ExtractedText struct {
	Text    string
	Kind    Kind
	OCRUsed bool
	Pages   []PageMarker
}

// Length returns the text length in characters.
func (e ExtractedText) Length() int { return utf8.RuneCountInString(e.Text) }

// Chunk is a bounded segment of extracted text.
type Chunk struct {
	Text  string
	Index int
}

// Metadata is a flat map of scalar values attached to an index entry.
type Metadata map[string]any

// Clone returns a shallow copy of m; a nil map yields an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IndexEntry is a stored chunk: identifier, text, embedding and metadata.
type IndexEntry struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata Metadata
}

// ScoredEntry is an IndexEntry returned from a similarity query.
// Distance is the cosine distance to the query (lower is closer).
type ScoredEntry struct {
	IndexEntry
	Distance float64
}

// Embedder converts free text into a numeric vector representation.
// The same embedder must be used for indexing and querying a collection.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits extracted text into bounded, overlapping segments.
type Chunker interface {
	Split(text string) []string
}

// VectorStore persists index entries and answers nearest-neighbour queries.
// Upsert overwrites entries with the same ID and applies a batch atomically.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []IndexEntry) error
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]ScoredEntry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Drop(ctx context.Context) error
	Location() string
	Close() error
}
