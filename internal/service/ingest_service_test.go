package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfp/internal/chunker"
	"rfp/internal/domain"
	"rfp/internal/embedding/hashing"
	"rfp/internal/extractor"
	"rfp/internal/index"
	"rfp/internal/records"
	"rfp/internal/vectorstore/memory"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type addCall struct {
	chunks []string
	metas  []domain.Metadata
	ids    []string
}

// recordingIndexer captures AddDocuments calls and optionally fails them.
type recordingIndexer struct {
	calls []addCall
	err   error
}

func (r *recordingIndexer) AddDocuments(_ context.Context, chunks []string, metas []domain.Metadata, ids []string) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.calls = append(r.calls, addCall{chunks, metas, ids})
	return len(chunks), nil
}

func (r *recordingIndexer) Stats(context.Context) (index.Stats, error) {
	total := 0
	for _, c := range r.calls {
		total += len(c.chunks)
	}
	return index.Stats{TotalChunks: total}, nil
}

func newService(t *testing.T, ix Indexer) *IngestService {
	t.Helper()
	c, err := chunker.New(100, 20)
	require.NoError(t, err)
	ex := extractor.New(extractor.Config{}, extractor.WithLogger(quietLogger()))
	return NewIngestService(ex, c, ix, quietLogger())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const proposal = "The contractor shall deliver monthly status reports. " +
	"The proposed timeline is 6 months with monthly deliverables. " +
	"Budget estimate: $500,000 including all phases of development. " +
	"Our team has 10+ years of experience in software development."

func TestIngestFile_MetadataAndIDs(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	path := writeFile(t, t.TempDir(), "Past Proposal.txt", proposal)

	n, err := svc.IngestFile(context.Background(), path, domain.Metadata{"client": "GSA"})
	require.NoError(t, err)
	require.Len(t, ix.calls, 1)
	call := ix.calls[0]
	assert.Equal(t, len(call.chunks), n)
	assert.Greater(t, n, 1)

	for i, id := range call.ids {
		assert.Equal(t, fmt.Sprintf("Past_Proposal_chunk_%d", i), id)
		md := call.metas[i]
		assert.Equal(t, i, md[KeyChunkIndex])
		assert.Equal(t, "Past Proposal.txt", md[KeySourceFile])
		assert.Equal(t, "Past Proposal.txt", md["file_name"])
		assert.Equal(t, ".txt", md["file_type"])
		assert.Equal(t, len(proposal), md["file_size"])
		assert.Equal(t, n, md["num_chunks"])
		assert.Equal(t, false, md["ocr_used"])
		assert.Equal(t, "GSA", md["client"])
	}
}

func TestIngestFile_ReservedKeysWin(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	path := writeFile(t, t.TempDir(), "a.txt", "Short proposal text.")

	_, err := svc.IngestFile(context.Background(), path, domain.Metadata{
		KeySourceFile: "spoofed.pdf",
		KeyChunkIndex: 42,
		"file_type":   ".custom",
	})
	require.NoError(t, err)
	require.Len(t, ix.calls, 1)

	md := ix.calls[0].metas[0]
	assert.Equal(t, "a.txt", md[KeySourceFile])
	assert.Equal(t, 0, md[KeyChunkIndex])
	assert.Equal(t, ".custom", md["file_type"])
}

func TestIngestFile_EmptyTextSkipsIndex(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	path := writeFile(t, t.TempDir(), "blank.txt", "   \n\n  ")

	n, err := svc.IngestFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, ix.calls)
}

func TestIngestFile_MissingFile(t *testing.T) {
	svc := newService(t, &recordingIndexer{})

	_, err := svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIngestFile_IndexErrorPropagates(t *testing.T) {
	svc := newService(t, &recordingIndexer{err: domain.ErrIndex})
	path := writeFile(t, t.TempDir(), "a.txt", proposal)

	_, err := svc.IngestFile(context.Background(), path, nil)
	assert.ErrorIs(t, err, domain.ErrIndex)
}

func TestIngestFile_ReingestIsIdempotent(t *testing.T) {
	ix := index.New(hashing.New("", hashing.DefaultDimension), memory.NewStorage(), index.WithLogger(quietLogger()))
	svc := newService(t, ix)
	path := writeFile(t, t.TempDir(), "rfp.txt", proposal)
	ctx := context.Background()

	first, err := svc.IngestFile(ctx, path, nil)
	require.NoError(t, err)
	_, err = svc.IngestFile(ctx, path, nil)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, stats.TotalChunks)
}

func TestIngestDirectory_PatternsAndPartialFailure(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", proposal)
	writeFile(t, dir, "two.txt", "Second response document.")
	writeFile(t, dir, "notes.md", "ignored by pattern")
	writeFile(t, dir, "empty.txt", "")
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing-target"), filepath.Join(dir, "bad.txt")))

	res, err := svc.IngestDirectory(context.Background(), dir, DirectoryOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Items)
	assert.Equal(t, 1, res.Skipped)
	require.Equal(t, 1, res.Failed())
	assert.Equal(t, filepath.Join(dir, "bad.txt"), res.Failures[0].Item)
	assert.ErrorIs(t, res.Failures[0], domain.ErrIngestionItem)
	assert.ErrorIs(t, res.Err(), domain.ErrIngestionItem)
	assert.Len(t, ix.calls, 2)

	total := 0
	for _, c := range ix.calls {
		total += len(c.chunks)
	}
	assert.Equal(t, total, res.Chunks)
}

func TestIngestDirectory_CorruptPDFIsSkipped(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", proposal)
	writeFile(t, dir, "broken.pdf", "not a pdf at all")

	res, err := svc.IngestDirectory(context.Background(), dir, DirectoryOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed())
	assert.NoError(t, res.Err())
	assert.Len(t, ix.calls, 1)
}

func TestIngestDirectory_Recursive(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	dir := t.TempDir()
	writeFile(t, dir, "top.txt", "Top level.")
	writeFile(t, dir, filepath.Join("nested", "deep.txt"), "Nested document.")

	flat, err := svc.IngestDirectory(context.Background(), dir, DirectoryOptions{Patterns: []string{"*.txt"}})
	require.NoError(t, err)
	assert.Equal(t, 1, flat.Items)

	deep, err := svc.IngestDirectory(context.Background(), dir, DirectoryOptions{Patterns: []string{"*.txt"}, Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 2, deep.Items)
}

func TestIngestDirectory_NoMatches(t *testing.T) {
	svc := newService(t, &recordingIndexer{})

	res, err := svc.IngestDirectory(context.Background(), t.TempDir(), DirectoryOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Items)
	assert.NoError(t, res.Err())
}

func TestIngestDirectory_BadPattern(t *testing.T) {
	svc := newService(t, &recordingIndexer{})

	_, err := svc.IngestDirectory(context.Background(), t.TempDir(), DirectoryOptions{Patterns: []string{"[x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestDirectory_MissingDir(t *testing.T) {
	svc := newService(t, &recordingIndexer{})

	_, err := svc.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "absent"), DirectoryOptions{})
	assert.Error(t, err)
}

func TestIngestRecords(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	recs := []records.Record{
		{
			"noticeId":      "ABC123",
			"title":         "Cloud Migration Services",
			"description":   "Agency seeks cloud migration support.",
			"type":          "Solicitation",
			"postedDate":    "2024-01-15",
			"department":    map[string]any{"name": "GSA"},
			"officeAddress": map[string]any{"city": "Washington"},
			"fullText":      "Full solicitation body.",
		},
		{"noticeId": "EMPTY"},
		{"title": "No identifier"},
	}

	res, err := svc.IngestRecords(context.Background(), recs, DefaultRecordOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, ix.calls, 2)

	first := ix.calls[0]
	assert.Equal(t, "sam_ABC123_chunk_0", first.ids[0])
	assert.Contains(t, first.chunks[0], "Title: Cloud Migration Services")
	assert.Contains(t, first.chunks[0], "Description: Agency seeks cloud migration support.")
	assert.NotContains(t, strings.Join(first.chunks, " "), "Full solicitation body.")
	md := first.metas[0]
	assert.Equal(t, "sam_gov", md["source"])
	assert.Equal(t, "ABC123", md["notice_id"])
	assert.Equal(t, "GSA", md["department"])
	assert.Equal(t, "Washington", md["office"])
	assert.Equal(t, 0, md[KeyChunkIndex])

	assert.Equal(t, "sam_unknown_chunk_0", ix.calls[1].ids[0])
}

func TestIngestRecords_FullTextAndPrefix(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	recs := []records.Record{{"id": "7", "title": "T", "full_text": "Body text."}}

	res, err := svc.IngestRecords(context.Background(), recs, RecordOptions{SourcePrefix: "state", IncludeFullText: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	require.Len(t, ix.calls, 1)
	assert.Equal(t, "state_7_chunk_0", ix.calls[0].ids[0])
	assert.Equal(t, "Title: T\n\nBody text.", ix.calls[0].chunks[0])
	assert.Equal(t, "state_gov", ix.calls[0].metas[0]["source"])
}

func TestIngestRecords_IndexFailureIsItemFailure(t *testing.T) {
	svc := newService(t, &recordingIndexer{err: errors.New("store offline")})

	res, err := svc.IngestRecords(context.Background(), []records.Record{{"noticeId": "X", "title": "T"}}, DefaultRecordOptions())
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed())
	assert.ErrorIs(t, res.Failures[0], domain.ErrIngestionItem)
}

func TestIngestRecords_CancelledContext(t *testing.T) {
	svc := newService(t, &recordingIndexer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.IngestRecords(ctx, []records.Record{{"title": "T"}}, DefaultRecordOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestRecordsFile(t *testing.T) {
	ix := &recordingIndexer{}
	svc := newService(t, ix)
	path := writeFile(t, t.TempDir(), "opps.json", `[{"noticeId":"N1","title":"Data analytics"}]`)

	res, err := svc.IngestRecordsFile(context.Background(), path, DefaultRecordOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)

	_, err = svc.IngestRecordsFile(context.Background(), writeFile(t, t.TempDir(), "bad.json", "not json"), DefaultRecordOptions())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
