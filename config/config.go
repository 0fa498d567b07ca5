// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads wrench settings from an optional YAML file, a .env
// file, and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/wrench/ai"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	IndexBadger = "badger"
	IndexQdrant = "qdrant"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	AI        AIConfig        `yaml:"ai"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int    `yaml:"port"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
	MaxUploadFiles int    `yaml:"max_upload_files"`
	WatchDir       string `yaml:"watch_dir,omitempty"`
}

// AIConfig holds provider settings. API keys are only read from the
// environment and never serialized.
type AIConfig struct {
	EmbeddingHost       string  `yaml:"embedding_host"`
	CompletionHost      string  `yaml:"completion_host"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	CompletionModel     string  `yaml:"completion_model"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions,omitempty"`
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`

	EmbeddingAPIKey  string `yaml:"-"`
	CompletionAPIKey string `yaml:"-"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Type      string       `yaml:"type"` // "badger" | "qdrant"
	Path      string       `yaml:"path"` // Badger directory; holds the equipment registry for either type
	Dimension int          `yaml:"dimension"`
	Qdrant    QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"-"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TimeoutMS int `yaml:"timeout_ms"`
}

// IngestConfig holds chunking and embedding fan-out settings.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	Concurrency  int `yaml:"concurrency"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:           8787,
			MaxUploadMB:    25,
			MaxUploadFiles: 8,
		},
		AI: AIConfig{
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			CompletionHost:  aiDefaults.CompletionHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			CompletionModel: aiDefaults.CompletionModel,
			MaxTokens:       aiDefaults.MaxTokens,
			Temperature:     aiDefaults.Temperature,
		},
		Index: IndexConfig{
			Type:      IndexBadger,
			Path:      "wrench-data",
			Dimension: 1024,
			Qdrant: QdrantConfig{
				Collection: "wrench",
			},
		},
		Retrieval: RetrievalConfig{
			TimeoutMS: 1200,
		},
		Ingest: IngestConfig{
			ChunkSize:    6000,
			ChunkOverlap: 400,
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. With no
// arguments it reads ./.env. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"EMBEDDING_HOST":     &c.AI.EmbeddingHost,
		"COMPLETION_HOST":    &c.AI.CompletionHost,
		"EMBEDDING_MODEL":    &c.AI.EmbeddingModel,
		"COMPLETION_MODEL":   &c.AI.CompletionModel,
		"EMBEDDING_API_KEY":  &c.AI.EmbeddingAPIKey,
		"COMPLETION_API_KEY": &c.AI.CompletionAPIKey,
		"INDEX_TYPE":         &c.Index.Type,
		"INDEX_PATH":         &c.Index.Path,
		"QDRANT_URL":         &c.Index.Qdrant.URL,
		"QDRANT_COLLECTION":  &c.Index.Qdrant.Collection,
		"QDRANT_API_KEY":     &c.Index.Qdrant.APIKey,
		"WATCH_DIR":          &c.Server.WatchDir,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	intVars := map[string]*int{
		"PORT":                 &c.Server.Port,
		"MAX_UPLOAD_MB":        &c.Server.MaxUploadMB,
		"INDEX_DIM":            &c.Index.Dimension,
		"EMBEDDING_DIMENSIONS": &c.AI.EmbeddingDimensions,
		"MAX_TOKENS":           &c.AI.MaxTokens,
		"RETRIEVAL_TIMEOUT_MS": &c.Retrieval.TimeoutMS,
		"CHUNK_SIZE":           &c.Ingest.ChunkSize,
		"CHUNK_OVERLAP":        &c.Ingest.ChunkOverlap,
		"EMBED_CONCURRENCY":    &c.Ingest.Concurrency,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("TEMPERATURE"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("TEMPERATURE: %w", err)
		}
		c.AI.Temperature = f
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if c.Server.MaxUploadFiles == 0 {
		c.Server.MaxUploadFiles = d.Server.MaxUploadFiles
	}
	if c.Index.Type == "" {
		c.Index.Type = d.Index.Type
	}
	c.Index.Type = strings.ToLower(c.Index.Type)
	if c.Index.Dimension == 0 {
		c.Index.Dimension = d.Index.Dimension
	}
	if c.Index.Qdrant.Collection == "" {
		c.Index.Qdrant.Collection = d.Index.Qdrant.Collection
	}
	if c.Retrieval.TimeoutMS == 0 {
		c.Retrieval.TimeoutMS = d.Retrieval.TimeoutMS
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = d.Ingest.ChunkSize
	}
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 1 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.MaxUploadFiles < 1 {
		return errors.New("server.max_upload_files must be positive")
	}
	if c.Index.Dimension < 1 {
		return errors.New("index.dimension must be positive")
	}
	if c.Index.Path == "" {
		return errors.New("index.path is required")
	}
	switch c.Index.Type {
	case IndexBadger:
	case IndexQdrant:
		if c.Index.Qdrant.URL == "" {
			return errors.New("index.qdrant.url is required for the qdrant index")
		}
		if c.Index.Qdrant.Collection == "" {
			return errors.New("index.qdrant.collection is required for the qdrant index")
		}
	default:
		return fmt.Errorf("unknown index type %q", c.Index.Type)
	}
	if c.Retrieval.TimeoutMS < 1 {
		return errors.New("retrieval.timeout_ms must be positive")
	}
	if c.Ingest.ChunkSize < 1 {
		return errors.New("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return errors.New("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Ingest.Concurrency < 0 {
		return errors.New("ingest.concurrency cannot be negative")
	}
	return c.ProviderConfig().Validate()
}

// RetrievalTimeout returns the retrieval race bound as a duration.
func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.Retrieval.TimeoutMS) * time.Millisecond
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// AIOptions converts the AI section into provider config options.
func (c *Config) AIOptions() []ai.ConfigOption {
	return []ai.ConfigOption{
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithCompletionHost(c.AI.CompletionHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithCompletionModel(c.AI.CompletionModel),
		ai.WithEmbeddingToken(c.AI.EmbeddingAPIKey),
		ai.WithCompletionToken(c.AI.CompletionAPIKey),
		ai.WithEmbeddingDimensions(c.AI.EmbeddingDimensions),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithTemperature(c.AI.Temperature),
	}
}

// ProviderConfig builds the provider configuration.
func (c *Config) ProviderConfig() *ai.Config {
	return ai.NewConfig(c.AIOptions()...)
}
