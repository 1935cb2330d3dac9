// Package config loads the pipeline's configuration: required secrets from
// the environment (plus the optional LLM_PROVIDER selection and
// EMBEDDING_API_KEY) and an optional YAML file of non-secret tunables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GraphDB holds the connection details for the property-graph engine.
type GraphDB struct {
	URI      string `yaml:"-"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// LLM holds provider selection and credentials for the chat model.
type LLM struct {
	Provider       string  `yaml:"provider"` // "openai" | "anthropic"
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"-"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	Temperature    float64 `yaml:"temperature"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Embedding holds the embedding provider configuration.
type Embedding struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
	Dims     int    `yaml:"dims"`
}

// Vector configures the optional Qdrant-backed vector index fulfilling
// spec.md §6's "vector index named `vector`" requirement. It is entirely
// non-secret tunables (host/port), so — unlike GraphDB/LLM credentials —
// it lives in the YAML file, not the environment, per spec.md §6's "no
// other configuration is read from environment."
type Vector struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	APIKey  string `yaml:"api_key"`
}

// Chunker holds C2's tunables.
type Chunker struct {
	ChunkSize   int      `yaml:"chunk_size"`
	Overlap     int      `yaml:"overlap"`
	Terminators []string `yaml:"terminators"`
}

// Extraction holds C4's tunables.
type Extraction struct {
	RecordDelimiter     string `yaml:"record_delimiter"`
	CompletionDelimiter string `yaml:"completion_delimiter"`
	TupleDelimiter      string `yaml:"tuple_delimiter"`
	MaxConcurrency      int    `yaml:"max_concurrency"`
}

// Dedup holds C7's tunables.
type Dedup struct {
	SimilarityCutoff float64 `yaml:"similarity_cutoff"`
	WordEditDistance int     `yaml:"word_edit_distance"`
}

// Summarize holds C9's tunables.
type Summarize struct {
	TokenBudget    int `yaml:"token_budget"`
	MaxConcurrency int `yaml:"max_concurrency"`
	MinMembers     int `yaml:"min_members"`
}

// Retrieve holds C10/C11's tunables.
type Retrieve struct {
	TopEntities     int `yaml:"top_entities"`
	TopChunks       int `yaml:"top_chunks"`
	TopCommunities  int `yaml:"top_communities"`
	TopOutsideRels  int `yaml:"top_outside_rels"`
	TopInsideRels   int `yaml:"top_inside_rels"`
	ScoreThreshold  int `yaml:"score_threshold"`
	MapConcurrency  int `yaml:"map_concurrency"`
}

// Config is the fully resolved configuration passed to every component.
type Config struct {
	GraphDB    GraphDB
	LLM        LLM
	Embedding  Embedding
	Vector     Vector     `yaml:"vector"`
	Chunker    Chunker    `yaml:"chunker"`
	Extraction Extraction `yaml:"extraction"`
	Dedup      Dedup      `yaml:"dedup"`
	Summarize  Summarize  `yaml:"summarize"`
	Retrieve   Retrieve   `yaml:"retrieve"`
	LogLevel   string     `yaml:"log_level"`
}

// Defaults returns a Config populated with every default named in spec.md.
func Defaults() Config {
	return Config{
		LLM: LLM{
			Provider:       "openai",
			MaxConcurrency: 12,
			Temperature:    1.0,
			RequestTimeout: 10 * time.Second,
		},
		Vector: Vector{
			Port: 6334,
		},
		Chunker: Chunker{
			ChunkSize:   512,
			Overlap:     64,
			Terminators: []string{"。", "!", "?"},
		},
		Extraction: Extraction{
			RecordDelimiter:     "\n",
			CompletionDelimiter: "\n\n",
			TupleDelimiter:      " : ",
			MaxConcurrency:      12,
		},
		Dedup: Dedup{
			SimilarityCutoff: 0.94,
			WordEditDistance: 3,
		},
		Summarize: Summarize{
			TokenBudget:    120000,
			MaxConcurrency: 12,
			MinMembers:     4,
		},
		Retrieve: Retrieve{
			TopEntities:    10,
			TopChunks:      3,
			TopCommunities: 3,
			TopOutsideRels: 10,
			TopInsideRels:  10,
			ScoreThreshold: 60,
			MapConcurrency: 12,
		},
		LogLevel: "info",
	}
}

// Load reads .env (if present), then an optional YAML file at path, then
// overlays the required environment variables. Missing required
// environment variables are a configuration error (spec.md §7: "a full
// driver abort only occurs on configuration errors").
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if yamlPath != "" {
		b, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", yamlPath, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", yamlPath, err)
		}
	}

	cfg.GraphDB.URI = os.Getenv("GRAPH_DB_URI")
	cfg.GraphDB.Username = os.Getenv("GRAPH_DB_USERNAME")
	cfg.GraphDB.Password = os.Getenv("GRAPH_DB_PASSWORD")
	cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		cfg.LLM.Provider = p
	}
	if cfg.Embedding.APIKey = os.Getenv("EMBEDDING_API_KEY"); cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	var missing []string
	if cfg.GraphDB.URI == "" {
		missing = append(missing, "GRAPH_DB_URI")
	}
	if cfg.GraphDB.Username == "" {
		missing = append(missing, "GRAPH_DB_USERNAME")
	}
	if cfg.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}
	return cfg, nil
}
