package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"rfp/internal/domain"
)

// LogConfig controls the slog handler built by the logging package.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Model     string                `yaml:"model"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how extracted text is split into chunks.
// Sizes are measured in characters.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// OCRConfig controls the scanned-PDF fallback.
type OCRConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Threshold int    `yaml:"threshold"`
	DPI       int    `yaml:"dpi"`
	Language  string `yaml:"language"`
	Engine    string `yaml:"engine"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string          `yaml:"type"`
	Collection string          `yaml:"collection"`
	PersistDir string          `yaml:"persist_dir"`
	Postgres   *PostgresConfig `yaml:"postgres,omitempty"`
	Qdrant     *QdrantConfig   `yaml:"qdrant,omitempty"`
}

// PostgresConfig contains connection details for a pgvector-enabled database.
type PostgresConfig struct {
	DSNEnv string `yaml:"dsn_env"`
	Table  string `yaml:"table"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IngestConfig holds defaults for file and record ingestion.
type IngestConfig struct {
	Patterns           []string `yaml:"patterns"`
	RawDir             string   `yaml:"raw_dir"`
	RecordSource       string   `yaml:"record_source"`
	IncludeDescription bool     `yaml:"include_description"`
	IncludeFullText    bool     `yaml:"include_full_text"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	OCR         OCRConfig         `yaml:"ocr"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied after the file and the result is validated.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finish(defaultConfig())
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadDefault tries ./config.yaml first, then ~/.config/rfp/config.yaml.
// If neither exists, it writes defaults to ~/.config/rfp/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := finish(defaultConfig())
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrInvalidChunkConfig, c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, %d)", domain.ErrInvalidChunkConfig, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.OCR.DPI <= 0 {
		return fmt.Errorf("%w: ocr dpi must be positive", domain.ErrInvalidInput)
	}
	return nil
}

func finish(cfg *AppConfig) (*AppConfig, error) {
	applyEnvOverrides(cfg)
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rfp", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Log:      LogConfig{Level: "info", Format: "text"},
		Embedder: EmbedderConfig{Type: "hashing", Model: "hashing-bow", Dimension: 1024},
		Chunker:  ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		OCR:      OCRConfig{Enabled: true, Threshold: 100, DPI: 300, Language: "eng", Engine: "tesseract"},
		VectorStore: VectorStoreConfig{
			Type:       "sqlite",
			Collection: "rfp_documents",
			PersistDir: "./data/vectordb",
		},
		Ingest: IngestConfig{
			Patterns:           []string{"*.pdf", "*.docx", "*.txt"},
			RawDir:             "./data/raw",
			RecordSource:       "sam",
			IncludeDescription: true,
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 && cfg.Embedder.Type == "hashing" {
		cfg.Embedder.Dimension = 1024
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = cfg.Embedder.Model
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.OCR.Threshold == 0 {
		cfg.OCR.Threshold = 100
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = 300
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.OCR.Engine == "" {
		cfg.OCR.Engine = "tesseract"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "rfp_documents"
	}
	if cfg.VectorStore.PersistDir == "" {
		cfg.VectorStore.PersistDir = "./data/vectordb"
	}
	if cfg.VectorStore.Type == "postgres" {
		if cfg.VectorStore.Postgres == nil {
			cfg.VectorStore.Postgres = &PostgresConfig{}
		}
		if cfg.VectorStore.Postgres.DSNEnv == "" {
			cfg.VectorStore.Postgres.DSNEnv = "DATABASE_URL"
		}
		if cfg.VectorStore.Postgres.Table == "" {
			cfg.VectorStore.Postgres.Table = "rfp_chunks"
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
	}
	if len(cfg.Ingest.Patterns) == 0 {
		cfg.Ingest.Patterns = []string{"*.pdf", "*.docx", "*.txt"}
	}
	if cfg.Ingest.RecordSource == "" {
		cfg.Ingest.RecordSource = "sam"
	}
}

// applyEnvOverrides lets deployment environments override file settings.
func applyEnvOverrides(cfg *AppConfig) {
	cfg.Chunker.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.Chunker.ChunkSize)
	cfg.Chunker.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.Chunker.ChunkOverlap)
	cfg.OCR.Threshold = getEnvAsInt("OCR_THRESHOLD", cfg.OCR.Threshold)
	cfg.OCR.DPI = getEnvAsInt("OCR_DPI", cfg.OCR.DPI)
	cfg.OCR.Enabled = getEnvAsBool("USE_OCR", cfg.OCR.Enabled)
	cfg.Embedder.Model = getEnv("EMBEDDING_MODEL", cfg.Embedder.Model)
	cfg.VectorStore.Type = getEnv("VECTOR_DB_TYPE", cfg.VectorStore.Type)
	cfg.VectorStore.PersistDir = getEnv("VECTOR_DB_PATH", cfg.VectorStore.PersistDir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
