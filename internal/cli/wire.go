package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"rfp/internal/chunker"
	"rfp/internal/config"
	"rfp/internal/domain"
	"rfp/internal/embedding"
	"rfp/internal/extractor"
	"rfp/internal/index"
	"rfp/internal/ocr"
	"rfp/internal/ocr/tesseract"
	"rfp/internal/retrieval"
	"rfp/internal/service"
	"rfp/internal/vectorstore"
	"rfp/internal/vectorstore/memory"
	"rfp/internal/vectorstore/pgvector"
	"rfp/internal/vectorstore/qdrant"
	"rfp/internal/vectorstore/sqlite"
)

// components is the assembled pipeline for one command.
type components struct {
	index   *index.Index
	ingest  *service.IngestService
	tool    *retrieval.Tool
	closers []io.Closer
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	return errors.Join(errs...)
}

// open assembles the store, embedder, index, extractor and pipeline from config.
func (rt *runtime) open(ctx context.Context) (*components, error) {
	cfg := rt.cfg
	c := &components{}

	store, err := openStore(ctx, cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, err
	}
	c.index = index.New(emb, store,
		index.WithLogger(rt.logger),
		index.WithCollection(cfg.VectorStore.Collection),
		index.WithStoreType(cfg.VectorStore.Type),
	)
	c.closers = append(c.closers, c.index)

	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}

	// The engine is wired even with ocr disabled so --force-ocr still works.
	opts := []extractor.Option{extractor.WithLogger(rt.logger)}
	engine, err := openEngine(cfg.OCR)
	switch {
	case err == nil:
		if cl, ok := engine.(io.Closer); ok {
			c.closers = append(c.closers, cl)
		}
		opts = append(opts, extractor.WithRasterizer(ocr.NewPoppler(nil)), extractor.WithEngine(engine))
	case cfg.OCR.Enabled:
		c.Close()
		return nil, err
	default:
		rt.logger.Debug("ocr engine unavailable", slog.String("error", err.Error()))
	}
	ex := extractor.New(extractor.Config{
		OCREnabled: cfg.OCR.Enabled,
		Threshold:  cfg.OCR.Threshold,
		DPI:        cfg.OCR.DPI,
		Language:   cfg.OCR.Language,
	}, opts...)

	c.ingest = service.NewIngestService(ex, ch, c.index, rt.logger)
	c.tool = retrieval.NewTool(c.index, rt.logger)
	return c, nil
}

func openStore(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite", "":
		return sqlite.NewStore(cfg.PersistDir, cfg.Collection)
	case "postgres", "pgvector":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("%w: postgres config missing", domain.ErrInvalidInput)
		}
		dsn := os.Getenv(cfg.Postgres.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("%w: %s is not set", domain.ErrInvalidInput, cfg.Postgres.DSNEnv)
		}
		return pgvector.NewStore(ctx, pgvector.Config{DSN: dsn, Table: cfg.Postgres.Table, Collection: cfg.Collection})
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", domain.ErrInvalidInput)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidInput, cfg.Type)
	}
}

func openEngine(cfg config.OCRConfig) (ocr.Engine, error) {
	switch cfg.Engine {
	case "tesseract", "":
		return ocr.NewTesseractCLI(nil), nil
	case "gosseract":
		return tesseract.New()
	default:
		return nil, fmt.Errorf("%w: unknown ocr engine %q", domain.ErrInvalidInput, cfg.Engine)
	}
}
