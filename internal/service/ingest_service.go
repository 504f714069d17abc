package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rfp/internal/domain"
	"rfp/internal/extractor"
	"rfp/internal/index"
	"rfp/internal/records"
)

// TextExtractor is the extraction port used by the pipeline.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document, opts extractor.Options) domain.ExtractedText
}

// Indexer is the subset of *index.Index the pipeline writes to.
type Indexer interface {
	AddDocuments(ctx context.Context, chunks []string, metadatas []domain.Metadata, ids []string) (int, error)
	Stats(ctx context.Context) (index.Stats, error)
}

// Reserved metadata keys set by the pipeline; caller metadata cannot override them.
const (
	KeySourceFile = "source_file"
	KeyChunkIndex = "chunk_index"
)

// DefaultPatterns are the file globs ingested from a directory by default.
var DefaultPatterns = []string{"*.pdf", "*.docx", "*.txt"}

// IngestService turns files and structured records into indexed chunks.
type IngestService struct {
	extractor TextExtractor
	chunker   domain.Chunker
	index     Indexer
	logger    *slog.Logger
}

func NewIngestService(ex TextExtractor, chunker domain.Chunker, ix Indexer, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{extractor: ex, chunker: chunker, index: ix, logger: logger}
}

// FileOption adjusts a single file ingestion.
type FileOption func(*extractor.Options)

// WithForceOCR sends PDFs straight to OCR.
func WithForceOCR() FileOption { return func(o *extractor.Options) { o.ForceOCR = true } }

// IngestFile extracts, chunks and indexes one file and returns the number of chunks stored.
// A file without extractable text returns 0 without touching the index.
func (s *IngestService) IngestFile(ctx context.Context, path string, metadata domain.Metadata, opts ...FileOption) (int, error) {
	var eo extractor.Options
	for _, opt := range opts {
		opt(&eo)
	}
	name := filepath.Base(path)
	log := s.logger.With(slog.String("file", name))
	log.Info("ingesting file")

	doc, err := loadDocument(path)
	if err != nil {
		return 0, err
	}
	extracted := s.extractor.Extract(ctx, doc, eo)
	chunks := s.chunker.Split(extracted.Text)
	if len(chunks) == 0 {
		log.Warn("no chunks extracted")
		return 0, nil
	}

	base := domain.Metadata{
		"file_name":   name,
		"file_type":   filepath.Ext(name),
		"file_size":   len(doc.Content),
		"num_chunks":  len(chunks),
		"text_length": extracted.Length(),
		"ocr_used":    extracted.OCRUsed,
		"source_kind": string(extracted.Kind),
	}
	for k, v := range metadata {
		if k == KeySourceFile || k == KeyChunkIndex {
			continue
		}
		base[k] = v
	}
	base[KeySourceFile] = name

	stem := strings.ReplaceAll(strings.TrimSuffix(name, filepath.Ext(name)), " ", "_")
	ids := make([]string, len(chunks))
	metas := make([]domain.Metadata, len(chunks))
	for i := range chunks {
		ids[i] = fmt.Sprintf("%s_chunk_%d", stem, i)
		md := base.Clone()
		md[KeyChunkIndex] = i
		metas[i] = md
	}

	n, err := s.index.AddDocuments(ctx, chunks, metas, ids)
	if err != nil {
		return 0, err
	}
	log.Info("ingested chunks", slog.Int("chunks", n))
	return n, nil
}

// DirectoryOptions controls IngestDirectory.
type DirectoryOptions struct {
	// Patterns are matched against file names; DefaultPatterns when empty.
	Patterns  []string
	Recursive bool
	Metadata  domain.Metadata
	ForceOCR  bool
}

// IngestDirectory ingests every matching file under dir. Per-file failures are
// collected in the result; the error is reserved for an unreadable directory
// or a cancelled context. Extraction logs rather than returns errors, so a
// file with no extractable text, a corrupt PDF included, counts as Skipped
// and not as a failure.
func (s *IngestService) IngestDirectory(ctx context.Context, dir string, opts DirectoryOptions) (BatchResult, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	files, err := findFiles(dir, patterns, opts.Recursive)
	if err != nil {
		return BatchResult{}, err
	}
	var res BatchResult
	if len(files) == 0 {
		s.logger.Warn("no files found", slog.String("dir", dir), slog.String("patterns", strings.Join(patterns, ",")))
		return res, nil
	}
	s.logger.Info("found files to ingest", slog.Int("files", len(files)))

	var fileOpts []FileOption
	if opts.ForceOCR {
		fileOpts = append(fileOpts, WithForceOCR())
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Items++
		n, err := s.IngestFile(ctx, f, opts.Metadata, fileOpts...)
		if err != nil {
			s.logger.Error("error ingesting file", slog.String("file", f), slog.String("error", err.Error()))
			res.fail(f, err)
			continue
		}
		if n == 0 {
			res.Skipped++
		}
		res.Chunks += n
	}
	s.logger.Info("ingestion complete", slog.Int("chunks", res.Chunks), slog.Int("files", res.Items), slog.Int("failed", res.Failed()))
	return res, nil
}

// RecordOptions controls how structured records become text.
type RecordOptions struct {
	// SourcePrefix prefixes chunk ids and names the source; "sam" by default.
	SourcePrefix       string
	IncludeDescription bool
	IncludeFullText    bool
}

// DefaultRecordOptions includes title and description but not full text.
func DefaultRecordOptions() RecordOptions {
	return RecordOptions{SourcePrefix: "sam", IncludeDescription: true}
}

// IngestRecords indexes each record's title, description and optional full text.
// Records with no text are counted as skipped.
func (s *IngestService) IngestRecords(ctx context.Context, recs []records.Record, opts RecordOptions) (BatchResult, error) {
	if opts.SourcePrefix == "" {
		opts.SourcePrefix = "sam"
	}
	var res BatchResult
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Items++
		id := rec.First("noticeId", "notice_id", "id")
		if id == "" {
			id = "unknown"
		}
		text := recordText(rec, opts)
		if text == "" {
			res.Skipped++
			continue
		}
		chunks := s.chunker.Split(text)
		if len(chunks) == 0 {
			res.Skipped++
			continue
		}
		base := domain.Metadata{
			"source":      opts.SourcePrefix + "_gov",
			"notice_id":   id,
			"title":       rec.String("title"),
			"type":        rec.String("type"),
			"posted_date": rec.String("postedDate"),
			"department":  firstNonEmpty(rec.String("department", "name"), rec.String("department")),
			"office":      firstNonEmpty(rec.String("officeAddress", "city"), rec.String("office", "name")),
			"source_kind": string(domain.KindRecord),
		}
		ids := make([]string, len(chunks))
		metas := make([]domain.Metadata, len(chunks))
		for j := range chunks {
			ids[j] = fmt.Sprintf("%s_%s_chunk_%d", opts.SourcePrefix, id, j)
			md := base.Clone()
			md[KeyChunkIndex] = j
			metas[j] = md
		}
		n, err := s.index.AddDocuments(ctx, chunks, metas, ids)
		if err != nil {
			s.logger.Error("error processing record", slog.String("notice_id", id), slog.String("error", err.Error()))
			res.fail(fmt.Sprintf("record[%d] %s", i, id), err)
			continue
		}
		res.Chunks += n
	}
	s.logger.Info("ingested records", slog.Int("chunks", res.Chunks), slog.Int("records", res.Items), slog.Int("failed", res.Failed()))
	return res, nil
}

// IngestRecordsFile loads a JSON records file and ingests it.
func (s *IngestService) IngestRecordsFile(ctx context.Context, path string, opts RecordOptions) (BatchResult, error) {
	recs, err := records.Load(path)
	if err != nil {
		return BatchResult{}, err
	}
	s.logger.Info("loaded records", slog.String("file", filepath.Base(path)), slog.Int("records", len(recs)))
	return s.IngestRecords(ctx, recs, opts)
}

// Stats returns the index statistics.
func (s *IngestService) Stats(ctx context.Context) (index.Stats, error) {
	return s.index.Stats(ctx)
}

func recordText(rec records.Record, opts RecordOptions) string {
	var parts []string
	if title := strings.TrimSpace(rec.String("title")); title != "" {
		parts = append(parts, "Title: "+title)
	}
	if opts.IncludeDescription {
		if desc := strings.TrimSpace(rec.String("description")); desc != "" {
			parts = append(parts, "Description: "+desc)
		}
	}
	if opts.IncludeFullText {
		if full := rec.First("fullText", "full_text"); full != "" {
			parts = append(parts, full)
		}
	}
	return strings.Join(parts, "\n\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func loadDocument(path string) (domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, err
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:      hashString(path),
		Path:    path,
		Kind:    domain.KindFromPath(path),
		Content: data,
	}, nil
}

// findFiles returns the sorted, de-duplicated files under dir whose names match any pattern.
func findFiles(dir string, patterns []string, recursive bool) ([]string, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", domain.ErrInvalidInput, p)
		}
	}
	seen := make(map[string]struct{})
	var files []string
	match := func(path string, d fs.DirEntry) {
		if d.IsDir() {
			return
		}
		for _, p := range patterns {
			if ok, _ := filepath.Match(p, d.Name()); ok {
				if _, dup := seen[path]; !dup {
					seen[path] = struct{}{}
					files = append(files, path)
				}
				return
			}
		}
	}
	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			match(path, d)
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			match(filepath.Join(dir, e.Name()), e)
		}
	}
	sort.Strings(files)
	return files, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}
