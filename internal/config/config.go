// Package config loads docsearch's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
)

// SearchConfig holds the RRF fusion and pooling constants plus the chunking
// parameters, exposed as overridable config for experimentation.
type SearchConfig struct {
	RRFConstant   int     `yaml:"rrf_constant"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SectionBoost   float64 `yaml:"section_boost"`
	ChunkMinChars  int     `yaml:"chunk_min_chars"`
	ChunkMaxChars  int     `yaml:"chunk_max_chars"`
	DefaultTopK    int     `yaml:"default_top_k"`
	NumVariations  int     `yaml:"num_variations"`
}

// EmbeddingsConfig configures the embedding client.
type EmbeddingsConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	TimeoutSec int    `yaml:"timeout_seconds"`
}

// GenerationConfig configures the generative model used by the expander.
type GenerationConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	NumPredict  int     `yaml:"num_predict"`
	TimeoutSec  int     `yaml:"timeout_seconds"`
}

// RerankConfig configures the cross-encoder reranker HTTP endpoint.
type RerankConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	TimeoutSec int    `yaml:"timeout_seconds"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ServerConfig configures the optional MCP adapter.
type ServerConfig struct {
	Transport string `yaml:"transport"` // only "stdio" is accepted by the MCP adapter
	Addr      string `yaml:"addr"`
}

// Config is the root configuration document.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Generation GenerationConfig `yaml:"generation"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Server     ServerConfig     `yaml:"server"`
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		Paths: PathsConfig{DataDir: "data"},
		Search: SearchConfig{
			RRFConstant:    60,
			SemanticWeight: 1.0,
			KeywordWeight:  1.2,
			SectionBoost:   2.0,
			ChunkMinChars:  1600,
			ChunkMaxChars:  2000,
			DefaultTopK:    5,
			NumVariations:  3,
		},
		Embeddings: EmbeddingsConfig{
			Host:       "http://localhost:11434",
			Model:      "bge-m3",
			Dimensions: 1024,
			BatchSize:  32,
			TimeoutSec: 60,
		},
		Generation: GenerationConfig{
			Host:        "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.7,
			TopP:        0.9,
			NumPredict:  100,
			TimeoutSec:  30,
		},
		Rerank: RerankConfig{
			Enabled:    false,
			Host:       "http://localhost:8787",
			TimeoutSec: 30,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      "127.0.0.1:8765",
		},
	}
}

// Load reads and merges a YAML config file over the defaults. A missing
// file is not an error — Default() is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, dserrors.Config(fmt.Sprintf("reading config file %q", path), err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, dserrors.Config(fmt.Sprintf("parsing config file %q", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the module relies on holding.
func (c Config) Validate() error {
	if c.Embeddings.Dimensions <= 0 {
		return dserrors.Config("embeddings.dimensions must be positive", nil)
	}
	if c.Search.RRFConstant <= 0 {
		return dserrors.Config("search.rrf_constant must be positive", nil)
	}
	if c.Search.ChunkMaxChars <= c.Search.ChunkMinChars {
		return dserrors.Config("search.chunk_max_chars must exceed chunk_min_chars", nil)
	}
	return nil
}
