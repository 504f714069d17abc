package domain

import "errors"

// Sentinel errors shared across packages. Wrap them with fmt.Errorf("...: %w").
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not available in this build.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidChunkConfig indicates a chunk overlap that is not smaller than the chunk size.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	// ErrExtraction indicates a document could not be decoded.
	// Extractors log it and return empty text instead of failing.
	ErrExtraction = errors.New("text extraction failed")

	// ErrOCR indicates page rendering or character recognition failed.
	ErrOCR = errors.New("ocr failed")

	// ErrOCRUnavailable indicates no OCR engine or rasterizer is installed.
	ErrOCRUnavailable = errors.New("ocr unavailable")

	// ErrEmbedding indicates the embedding service failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndex indicates the vector store rejected an operation.
	ErrIndex = errors.New("index operation failed")

	// ErrIngestionItem marks a single failed item inside a batch ingestion.
	ErrIngestionItem = errors.New("ingestion item failed")
)
