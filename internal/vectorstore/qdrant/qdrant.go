package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"rfp/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// It uses cosine distance and creates the collection if missing.
// Qdrant only accepts UUID or integer point ids, so entry ids are mapped to
// name-based UUIDs and the original id travels in the payload.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

var _ domain.VectorStore = (*Storage)(nil)

var errNotFound = errors.New("not found")

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID returns the Qdrant point id used for an entry id.
func (s *Storage) PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.collection+"/"+id)).String()
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	found, err := s.getJSON(ctx, s.collectionURL(), &info)
	if err != nil {
		return err
	}
	if found {
		if size := info.Result.Config.Params.Vectors.Size; size != 0 && size != dimension {
			return fmt.Errorf("collection %s has dimension %d, got %d", s.collection, size, dimension)
		}
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.sendJSON(ctx, http.MethodPut, s.collectionURL(), body, nil)
}

// Upsert sends all points in one request; Qdrant applies a batch atomically.
func (s *Storage) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		if len(e.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		md := e.Metadata
		if md == nil {
			md = domain.Metadata{}
		}
		points[i] = map[string]any{
			"id":     s.PointID(e.ID),
			"vector": e.Vector,
			"payload": map[string]any{
				"entry_id": e.ID,
				"document": e.Text,
				"metadata": md,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.sendJSON(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.ScoredEntry, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				EntryID  string          `json:"entry_id"`
				Document string          `json:"document"`
				Metadata domain.Metadata `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.sendJSON(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.ScoredEntry, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.ScoredEntry{
			IndexEntry: domain.IndexEntry{ID: r.Payload.EntryID, Text: r.Payload.Document, Metadata: r.Payload.Metadata},
			Distance:   1 - r.Score,
		})
	}
	return results, nil
}

func buildFilter(filter domain.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		must = append(must, map[string]any{
			"key":   "metadata." + k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.sendJSON(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Clear drops and recreates the collection with the current dimension.
func (s *Storage) Clear(ctx context.Context) error {
	dim := s.dimension
	if err := s.Drop(ctx); err != nil {
		return err
	}
	if dim == 0 {
		return nil
	}
	return s.Init(ctx, dim)
}

func (s *Storage) Drop(ctx context.Context) error {
	if err := s.sendJSON(ctx, http.MethodDelete, s.collectionURL(), nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.dimension = 0
	return nil
}

// Location returns the server URL; the collection is reported separately.
func (s *Storage) Location() string { return s.url }

func (s *Storage) Close() error { return nil }

// getJSON reports false when the resource does not exist.
func (s *Storage) getJSON(ctx context.Context, url string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("qdrant GET %s failed: %s", url, resp.Status)
	}
	return true, json.NewDecoder(resp.Body).Decode(out)
}

func (s *Storage) sendJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, url, errNotFound)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
